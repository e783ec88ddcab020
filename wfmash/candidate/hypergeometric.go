// Copyright © 2024 wfmash-go contributors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package candidate

import "math"

// MinHits derives the smallest shared-minmer count m admissible under
// the hypergeometric null model of spec §4.3: draw qMinmers minmers
// (without replacement) from a population of candidate k-mer positions
// in a target window of length segLength, of which an expected K are
// true matches at identity p (the fraction of k-mers expected to be
// identical, approximated as p^k under a substitution-only model).
// Returns the smallest m with P(X >= m) <= 1-confidence.
func MinHits(qMinmers, segLength, k int, p, confidence float64) int {
	if qMinmers <= 0 {
		return 1
	}
	n := float64(segLength - k + 1)
	if n < 1 {
		n = 1
	}
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	successProb := math.Pow(p, float64(k))
	K := math.Round(n * successProb)
	draws := float64(qMinmers)
	if draws > n {
		draws = n
	}

	alpha := 1 - confidence
	if alpha < 0 {
		alpha = 0
	}

	maxX := int(math.Min(draws, K))
	for m := 1; m <= maxX; m++ {
		if hypergeomSurvival(n, K, draws, m) <= alpha {
			return m
		}
	}
	if maxX < 1 {
		return 1
	}
	return maxX
}

// hypergeomSurvival computes P(X >= m) for X ~ Hypergeometric(N, K,
// draws) via the log-space probability mass function (no retrieved
// library exposes a bare hypergeometric tail function over float
// parameters, so this follows the teacher's own preference for small
// hand-rolled numeric routines over a heavyweight stats dependency for
// a single well-known formula).
func hypergeomSurvival(N, K, draws float64, m int) float64 {
	lo := int(math.Max(0, draws-(N-K)))
	hi := int(math.Min(draws, K))
	if m > hi {
		return 0
	}
	if lo < m {
		lo = m
	}
	denom := logChoose(N, draws)
	var total float64
	for x := lo; x <= hi; x++ {
		logP := logChoose(K, float64(x)) + logChoose(N-K, draws-float64(x)) - denom
		total += math.Exp(logP)
	}
	if total > 1 {
		total = 1
	}
	return total
}

// logChoose returns ln(C(n,k)) via the log-gamma function, valid for
// 0 <= k <= n.
func logChoose(n, k float64) float64 {
	if k < 0 || k > n {
		return math.Inf(-1)
	}
	a, _ := math.Lgamma(n + 1)
	b, _ := math.Lgamma(k + 1)
	c, _ := math.Lgamma(n - k + 1)
	return a - b - c
}
