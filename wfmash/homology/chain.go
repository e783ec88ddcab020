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

package homology

import (
	"math"
	"sort"
	"sync"

	"github.com/pangenome/wfmash-go/wfmash/candidate"
	"github.com/pangenome/wfmash-go/wfmash/seqid"
)

// ChainOptions configures chaining of colinear Mappings.
type ChainOptions struct {
	ChainGap     float64
	MergeMappings bool
}

// Chainer links colinear Mappings sharing (Query,Target,Strand) into
// chains, using a triangular DP score matrix over pooled scratch
// slices — the same shape as the teacher's substring-pair chainer,
// generalized from seed weight/gap scoring to spec §4.3's
// gap-and-slope admissibility rule.
type Chainer struct {
	opts ChainOptions

	scores        []float64
	maxScores     []float64
	maxScoreIdxs  []int
	visited       []bool
}

// NewChainer creates a reusable Chainer.
func NewChainer(opts ChainOptions) *Chainer {
	return &Chainer{
		opts:         opts,
		scores:       make([]float64, 0, 128),
		maxScores:    make([]float64, 0, 128),
		maxScoreIdxs: make([]int, 0, 128),
		visited:      make([]bool, 0, 128),
	}
}

var poolChains = &sync.Pool{New: func() interface{} {
	tmp := make([][]int, 0, 8)
	return &tmp
}}

var poolChain = &sync.Pool{New: func() interface{} {
	tmp := make([]int, 0, 32)
	return &tmp
}}

// RecyclePaths returns chain index slices to the pool. Call after the
// caller is done reading the result of Chain.
func RecyclePaths(paths *[][]int) {
	for _, p := range *paths {
		pp := p
		poolChain.Put(&pp)
	}
	poolChains.Put(paths)
}

// Chain groups mappings (already filtered to one (Query,Target,Strand)
// group and sorted by QStart) into colinear chains, returning each
// chain as a slice of indices into mappings in increasing QStart order.
func (c *Chainer) Chain(mappings []*Mapping) *[][]int {
	n := len(mappings)
	paths := poolChains.Get().(*[][]int)
	*paths = (*paths)[:0]
	if n == 0 {
		return paths
	}
	if n == 1 {
		path := poolChain.Get().(*[]int)
		*path = append((*path)[:0], 0)
		*paths = append(*paths, *path)
		return paths
	}

	scores := c.scores[:0]
	for k := 0; k < n*(n+1)>>1; k++ {
		scores = append(scores, 0)
	}
	maxScores := c.maxScores[:0]
	maxScoreIdxs := c.maxScoreIdxs[:0]
	for i := 0; i < n; i++ {
		maxScores = append(maxScores, 0)
		maxScoreIdxs = append(maxScoreIdxs, 0)
	}

	for i, m := range mappings {
		j0 := i * (i + 1) >> 1
		scores[j0+i] = weight(m)
	}
	maxScores[0] = scores[0]
	maxScoreIdxs[0] = 0

	for i := 1; i < n; i++ {
		j0 := i * (i + 1) >> 1
		k := j0 + i
		m := scores[k]
		mj := i

		for j := 0; j < i; j++ {
			k = j0 + j
			a, b := mappings[i], mappings[j]

			if !admissible(b, a, c.opts.ChainGap) {
				continue
			}
			dq, dr := gapAxes(a, b)
			g := math.Max(dq, dr)
			d := math.Max(dq, dr)

			s := maxScores[j] + weight(a) - distanceScore(d) - gapScore(g)
			scores[k] = s
			if s >= m {
				m = s
				mj = j
			}
		}
		maxScores[i] = m
		maxScoreIdxs[i] = mj
	}

	visited := c.visited[:0]
	for i := 0; i < n; i++ {
		visited = append(visited, false)
	}

	path := poolChain.Get().(*[]int)
	*path = (*path)[:0]
	i := n - 1
	for {
		for ; i >= 0; i-- {
			if !visited[i] {
				break
			}
		}
		if i == -1 {
			break
		}
		j := maxScoreIdxs[i]
		if visited[j] {
			i--
			continue
		}
		*path = append(*path, i)
		visited[i] = true
		if i != j {
			i = j
		} else {
			reverseInts(*path)
			*paths = append(*paths, *path)
			path = poolChain.Get().(*[]int)
			*path = (*path)[:0]
			i = n - 1
		}
	}

	c.scores, c.maxScores, c.maxScoreIdxs, c.visited = scores, maxScores, maxScoreIdxs, visited
	return paths
}

func weight(m *Mapping) float64 {
	return float64(m.BlockLength)
}

// admissible tests spec §4.3's chaining rule: gap on both axes ≤
// chainGap, and the joint coordinate slope lies in [0.5, 2.0].
func admissible(prev, cur *Mapping, chainGap float64) bool {
	dq, dr := gapAxes(cur, prev)
	if dq > chainGap || dr > chainGap {
		return false
	}
	denomQ := float64(cur.QStart - prev.QStart)
	denomR := float64(cur.TStart - prev.TStart)
	if denomQ <= 0 {
		return false
	}
	if prev.Strand != cur.Strand {
		return false
	}
	slope := denomR / denomQ
	if prev.Strand == candidate.Reverse {
		slope = -slope
	}
	return slope >= 0.5 && slope <= 2.0
}

func gapAxes(cur, prev *Mapping) (dq, dr float64) {
	dq = math.Abs(float64(cur.QStart - prev.QEnd))
	dr = math.Abs(float64(cur.TStart - prev.TEnd))
	return
}

func distanceScore(d float64) float64 { return 0.01 * d }

func gapScore(g float64) float64 {
	if g <= 0 {
		return 0
	}
	return 0.1*g + 0.5*math.Log2(g)
}

func reverseInts(s []int) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// AssignChainIDs walks the chains produced by Chain, assigning each
// mapping its chain's id (1-based, in chain discovery order) and
// returning, for MergeMappings, a replacement single Mapping per chain
// spanning the outer hull with a block-length-weighted mean identity.
func AssignChainIDs(mappings []*Mapping, paths *[][]int, mergeMappings bool) []*Mapping {
	var out []*Mapping
	for ci, path := range *paths {
		chainID := ci + 1
		var totalBlock int
		var weightedID, weightedJaccard float64
		first := mappings[path[0]]
		qStart, qEnd := first.QStart, first.QEnd
		tStart, tEnd := first.TStart, first.TEnd

		for _, idx := range path {
			m := mappings[idx]
			m.ChainID = chainID
			if m.QStart < qStart {
				qStart = m.QStart
			}
			if m.QEnd > qEnd {
				qEnd = m.QEnd
			}
			if m.TStart < tStart {
				tStart = m.TStart
			}
			if m.TEnd > tEnd {
				tEnd = m.TEnd
			}
			totalBlock += m.BlockLength
			weightedID += m.EstIdentity * float64(m.BlockLength)
			weightedJaccard += m.Jaccard * float64(m.BlockLength)
			if !mergeMappings {
				out = append(out, m)
			}
		}

		if mergeMappings {
			meanID, meanJaccard := 0.0, 0.0
			if totalBlock > 0 {
				meanID = weightedID / float64(totalBlock)
				meanJaccard = weightedJaccard / float64(totalBlock)
			}
			out = append(out, &Mapping{
				Query:       first.Query,
				QStart:      qStart,
				QEnd:        qEnd,
				Target:      first.Target,
				TStart:      tStart,
				TEnd:        tEnd,
				Strand:      first.Strand,
				EstIdentity: meanID,
				BlockLength: minInt(qEnd-qStart, tEnd-tStart),
				ChainID:     chainID,
				Jaccard:     meanJaccard,
			})
		}
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// GroupAndChain is the convenience entry point: sort mappings by
// QStart within each (Query,Target,Strand) group and chain each group
// independently.
func GroupAndChain(mappings []*Mapping, opts ChainOptions) []*Mapping {
	groups := make(map[groupKey][]*Mapping)
	for _, m := range mappings {
		k := groupKey{m.Query, m.Target, m.Strand}
		groups[k] = append(groups[k], m)
	}

	chainer := NewChainer(opts)
	var out []*Mapping
	for _, group := range groups {
		sort.Slice(group, func(i, j int) bool { return group[i].QStart < group[j].QStart })
		paths := chainer.Chain(group)
		out = append(out, AssignChainIDs(group, paths, opts.MergeMappings)...)
		RecyclePaths(paths)
	}
	return out
}

type groupKey struct {
	query  seqid.ID
	target seqid.ID
	strand candidate.Strand
}
