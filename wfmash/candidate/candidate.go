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

// Package candidate implements L1 candidate region discovery (spec
// §4.3): for a query segment, find target windows that share enough
// minmers with the query to pass a hypergeometric admissibility test.
package candidate

import (
	"sort"

	"github.com/pangenome/wfmash-go/wfmash/minmerindex"
	"github.com/pangenome/wfmash-go/wfmash/seqid"
	"github.com/pangenome/wfmash-go/wfmash/sketch"
)

// Strand of a candidate window, combining query minmer strand with
// target hit strand: Forward means the query segment maps onto the
// target in the same orientation, Reverse means a reverse-complement
// mapping.
type Strand = sketch.Strand

const (
	Forward = sketch.Forward
	Reverse = sketch.Reverse
)

// QuerySegment is a contiguous slice of a query sequence, per spec §3.
type QuerySegment struct {
	Query seqid.ID
	Start int
	End   int
}

func (s QuerySegment) Len() int { return s.End - s.Start }

// L1Candidate is an admissible target window paired with the query
// segment that produced it.
type L1Candidate struct {
	Query       seqid.ID
	QStart      int
	QEnd        int
	Target      seqid.ID
	TStart      int
	TEnd        int
	Strand      Strand
	SharedCount int
}

// Options configures L1 discovery for one query segment.
type Options struct {
	K              int
	Density        float64
	Complexity     float64
	SegLength      int
	PStar          float64 // target identity (MapPctID / 100)
	ANIDiff        float64
	ANIDiffConf    float64
	MinHitsOverride int // if > 0, used directly, bypassing the hypergeometric test
}

type hit struct {
	target seqid.ID
	pos    int
	strand Strand
	hash   uint64
}

// Find runs L1 candidate discovery for one query segment against idx,
// returning merged L1Candidates.
func Find(seg QuerySegment, qSeq []byte, idx *minmerindex.Index, opts Options) []L1Candidate {
	minmers := sketch.Sketch(qSeq, seg.Start, seg.Len(), sketch.Options{
		K:          opts.K,
		Density:    opts.Density,
		Complexity: opts.Complexity,
	})
	if len(minmers) == 0 {
		return nil
	}

	distinctQueryMinmers := countDistinctHashes(minmers)
	minHits := opts.MinHitsOverride
	if minHits <= 0 {
		minHits = MinHits(distinctQueryMinmers, opts.SegLength, opts.K, opts.PStar-opts.ANIDiff, opts.ANIDiffConf)
	}

	// collect hits grouped by (target, combined strand)
	type groupKey struct {
		target seqid.ID
		strand Strand
	}
	groups := make(map[groupKey][]hit)

	for _, m := range minmers {
		list := idx.Query(m.Hash)
		for _, h := range list {
			combined := Forward
			if (m.Strand == sketch.Reverse) != (h.Strand == 1) {
				combined = Reverse
			}
			k := groupKey{target: h.Target, strand: combined}
			groups[k] = append(groups[k], hit{target: h.Target, pos: int(h.Pos), strand: combined, hash: m.Hash})
		}
	}

	var out []L1Candidate
	for key, hits := range groups {
		sort.Slice(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })
		windows := admissibleWindows(hits, opts.SegLength, minHits)
		for _, w := range windows {
			out = append(out, L1Candidate{
				Query:       seg.Query,
				QStart:      seg.Start,
				QEnd:        seg.End,
				Target:      key.target,
				TStart:      w.start,
				TEnd:        w.end,
				Strand:      key.strand,
				SharedCount: w.count,
			})
		}
	}
	return out
}

func countDistinctHashes(ms []sketch.Minmer) int {
	seen := make(map[uint64]struct{}, len(ms))
	for _, m := range ms {
		seen[m.Hash] = struct{}{}
	}
	return len(seen)
}

type window struct {
	start, end, count int
}

// admissibleWindows slides a window of length segLength over hits
// (sorted by target position) and records every window whose distinct
// shared-minmer count reaches minHits, merging overlapping/adjacent
// admissible windows into a single L1Candidate window per spec §4.3
// step 4.
func admissibleWindows(hits []hit, segLength, minHits int) []window {
	n := len(hits)
	if n == 0 {
		return nil
	}

	var admissible []window

	// two-pointer sliding window over sorted positions
	left := 0
	counts := make(map[uint64]int)
	distinct := 0
	for right := 0; right < n; right++ {
		counts[hits[right].hash]++
		if counts[hits[right].hash] == 1 {
			distinct++
		}
		for hits[right].pos-hits[left].pos >= segLength {
			counts[hits[left].hash]--
			if counts[hits[left].hash] == 0 {
				distinct--
			}
			left++
		}
		if distinct >= minHits {
			start := hits[left].pos
			end := start + segLength
			if len(admissible) > 0 && start <= admissible[len(admissible)-1].end {
				last := &admissible[len(admissible)-1]
				if end > last.end {
					last.end = end
				}
				if distinct > last.count {
					last.count = distinct
				}
			} else {
				admissible = append(admissible, window{start: start, end: end, count: distinct})
			}
		}
	}
	return admissible
}
