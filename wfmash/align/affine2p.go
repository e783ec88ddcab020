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

package align

// Affine2pPenalties is the dual-cost affine-2p penalty set spec §4.5
// step 5 uses for PATCH regions: a low-open, steep-extend curve that is
// cheaper for short gaps and a high-open, shallow-extend curve that is
// cheaper for long ones, charging whichever of the two open+extend
// costs is lower for a given run length.
type Affine2pPenalties struct {
	Mismatch             uint32
	GapOpen1, GapExtend1 uint32 // low open, steep extend: short indels
	GapOpen2, GapExtend2 uint32 // high open, shallow extend: long indels
}

// gapCost2p returns the cheaper of the two affine costs for a gap run
// of length n, the textbook dual-affine scoring rule (take the min over
// both cost curves at every run length, rather than switching once at a
// fixed breakpoint).
func gapCost2p(n int, open1, ext1, open2, ext2 uint32) int {
	c1 := int(open1) + n*int(ext1)
	c2 := int(open2) + n*int(ext2)
	if c2 < c1 {
		return c2
	}
	return c1
}

// approxSingleCost picks the single-affine (open,extend) pair from a
// dual-affine-2p set that best approximates it over a representative gap
// length, since github.com/shenwei356/wfa's Aligner only exposes a
// single-cost affine Penalties struct (confirmed from its exported
// type — no dual-affine variant exists in the retrieved source). This
// is a deliberate engine-shaped approximation: the patch loop in
// wfmash/wflign compensates by re-scoring the returned CIGAR against the
// true dual-affine cost model (gapCost2p) and rejecting patches whose
// true cost exceeds the caller's score cap, rather than trusting the
// single-affine score the engine itself reports.
func approxSingleCost(p Affine2pPenalties, representativeGapLen int) Penalties {
	c1 := gapCost2p(representativeGapLen, p.GapOpen1, p.GapExtend1, p.GapOpen1, p.GapExtend1)
	c2 := gapCost2p(representativeGapLen, p.GapOpen2, p.GapExtend2, p.GapOpen2, p.GapExtend2)
	if c2 < c1 {
		return Penalties{Mismatch: p.Mismatch, GapOpen: p.GapOpen2, GapExtend: p.GapExtend2}
	}
	return Penalties{Mismatch: p.Mismatch, GapOpen: p.GapOpen1, GapExtend: p.GapExtend1}
}

// TrueCost recomputes a Result's score under a dual-affine-2p penalty
// set, using each CIGAR run's actual length to pick the cheaper of the
// two gap cost curves per run rather than the single-affine cost the
// engine scored it with.
func (r *Result) TrueCost(p Affine2pPenalties) int {
	cost := 0
	for _, op := range r.Ops {
		switch op.Code {
		case 'X':
			cost += op.Len * int(p.Mismatch)
		case 'I', 'D':
			cost += gapCost2p(op.Len, p.GapOpen1, p.GapExtend1, p.GapOpen2, p.GapExtend2)
		}
	}
	return cost
}

// AlignAffine2pCapped aligns q against t under a dual-affine-2p penalty
// set with a hard score cap (spec §4.5 step 5: "a score cap derived from
// gap penalties and region length"). It runs the underlying engine once
// with the single-affine approximation of the penalty set (see
// approxSingleCost), then rescales the result's score with the true
// dual-affine cost model; ok is false when that true cost exceeds cap,
// signalling the caller to fall back to a pure I/D block.
func AlignAffine2pCapped(q, t []byte, p Affine2pPenalties, scoreCap int) (r *Result, ok bool, err error) {
	representative := len(q) - len(t)
	if representative < 0 {
		representative = -representative
	}
	if representative == 0 {
		representative = 1
	}
	single := approxSingleCost(p, representative)
	a := New(single, DefaultOptions)

	res, alignErr := a.Align(q, t)
	if alignErr != nil {
		return nil, false, alignErr
	}

	trueCost := res.TrueCost(p)
	if trueCost > scoreCap {
		RecycleResult(res)
		return nil, false, nil
	}
	res.Score = trueCost
	return res, true, nil
}
