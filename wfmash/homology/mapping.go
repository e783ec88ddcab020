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

// Package homology implements L2 candidate refinement (spec §4.3): exact
// shared-minmer recount, Jaccard/Mash-distance/ANI estimation, boundary
// refinement, and chaining of colinear mappings.
package homology

import (
	"math"
	"sort"

	"github.com/pangenome/wfmash-go/wfmash/candidate"
	"github.com/pangenome/wfmash-go/wfmash/seqid"
	"github.com/pangenome/wfmash-go/wfmash/sketch"
)

// Mapping is a refined, ANI-estimated homology interval, per spec §3.
type Mapping struct {
	Query       seqid.ID
	QStart      int
	QEnd        int
	Target      seqid.ID
	TStart      int
	TEnd        int
	Strand      candidate.Strand
	EstIdentity float64
	BlockLength int
	ChainID     int
	// Jaccard is the shared/union minmer ratio EstIdentity was derived
	// from (spec §6.2's jc:f: tag); kept alongside EstIdentity so
	// RecordWriter callers don't need to re-derive it from ANI.
	Jaccard float64
}

// Options configures L2 refinement.
type Options struct {
	K              int
	Density        float64
	Complexity     float64
	PStar          float64 // target identity, MapPctID/100
	ANIDiff        float64
	KeepLowPctID   bool
}

// EstimateANI computes Jaccard, Mash distance, and ANI from a shared
// minmer count and the two sketches' sizes, per spec §4.3 step 2 and
// the GLOSSARY's Mash distance formula.
func EstimateANI(shared, qMinmers, tMinmers, k int) (jaccard, dist, ani float64) {
	union := qMinmers + tMinmers - shared
	if union <= 0 {
		return 0, 1, 0
	}
	j := float64(shared) / float64(union)
	if j <= 0 {
		return 0, 1, 0
	}
	d := -1.0 / float64(k) * math.Log(2*j/(1+j))
	if d < 0 {
		d = 0
	}
	return j, d, 1 - d
}

// Refine recounts exact shared minmers between a query segment and a
// target window, estimates ANI, rejects low-identity candidates unless
// KeepLowPctID, and refines the window boundaries by trimming outward
// while the rolling shared-minmer density stays below half its peak.
//
// qSeq/tSeq are the full sequences the candidate's coordinates index
// into; canonical k-mer hashing is strand-symmetric (the hash of a
// k-mer is identical regardless of which strand it was read from), so
// no reverse-complementing is needed here — only candidate.Strand,
// already resolved by L1, is carried through to the emitted Mapping.
func Refine(cand candidate.L1Candidate, qSeq, tSeq []byte, opts Options) (*Mapping, bool) {
	sOpts := sketch.Options{K: opts.K, Density: opts.Density, Complexity: opts.Complexity}

	qLen := cand.QEnd - cand.QStart
	qMinmers := sketch.Sketch(qSeq, cand.QStart, qLen, sOpts)

	tLen := cand.TEnd - cand.TStart
	if cand.TEnd > len(tSeq) {
		tLen = len(tSeq) - cand.TStart
	}
	if tLen <= 0 {
		return nil, false
	}
	tMinmers := sketch.Sketch(tSeq, cand.TStart, tLen, sOpts)

	qSet := distinctSet(qMinmers)
	tSet := distinctSet(tMinmers)

	shared := 0
	for h := range qSet {
		if _, ok := tSet[h]; ok {
			shared++
		}
	}

	jaccard, _, ani := EstimateANI(shared, len(qSet), len(tSet), opts.K)
	if ani < opts.PStar-opts.ANIDiff && !opts.KeepLowPctID {
		return nil, false
	}

	qStart, qEnd := refineBoundary(qMinmers, qSet, tSet, cand.QStart, cand.QEnd)
	tStart, tEnd := refineBoundary(tMinmers, tSet, qSet, cand.TStart, cand.TEnd)

	blockLen := qEnd - qStart
	if rl := tEnd - tStart; rl < blockLen {
		blockLen = rl
	}
	if blockLen <= 0 {
		return nil, false
	}

	return &Mapping{
		Query:       cand.Query,
		QStart:      qStart,
		QEnd:        qEnd,
		Target:      cand.Target,
		TStart:      tStart,
		TEnd:        tEnd,
		Strand:      cand.Strand,
		EstIdentity: ani,
		BlockLength: blockLen,
		Jaccard:     jaccard,
	}, true
}

func distinctSet(ms []sketch.Minmer) map[uint64]struct{} {
	set := make(map[uint64]struct{}, len(ms))
	for _, m := range ms {
		set[m.Hash] = struct{}{}
	}
	return set
}

// refineBoundary scans the minmers of one axis (own set, keyed by
// position) and keeps only the span between the outermost minmers
// whose hash is shared with the other axis, after trimming sparse
// flanks where the local shared-minmer density falls below half its
// peak, per spec §4.3 step 4.
func refineBoundary(minmers []sketch.Minmer, ownSet, otherSet map[uint64]struct{}, origStart, origEnd int) (int, int) {
	var supportPos []int
	for _, m := range minmers {
		if _, ok := otherSet[m.Hash]; ok {
			// m.Pos is relative to the sketched window, which starts at origStart
			supportPos = append(supportPos, origStart+m.Pos)
		}
	}
	if len(supportPos) == 0 {
		return origStart, origEnd
	}
	sort.Ints(supportPos)

	const numBins = 20
	span := supportPos[len(supportPos)-1] - supportPos[0] + 1
	binSize := span / numBins
	if binSize < 1 {
		binSize = 1
	}
	nBins := span/binSize + 1
	bins := make([]int, nBins)
	for _, p := range supportPos {
		b := (p - supportPos[0]) / binSize
		if b >= nBins {
			b = nBins - 1
		}
		bins[b]++
	}

	peak := 0
	for _, c := range bins {
		if c > peak {
			peak = c
		}
	}
	halfPeak := float64(peak) / 2

	lo, hi := 0, nBins-1
	for lo < hi && float64(bins[lo]) < halfPeak {
		lo++
	}
	for hi > lo && float64(bins[hi]) < halfPeak {
		hi--
	}

	start := supportPos[0] + lo*binSize
	end := supportPos[0] + (hi+1)*binSize
	if start < origStart {
		start = origStart
	}
	if end > origEnd {
		end = origEnd
	}
	if end <= start {
		return origStart, origEnd
	}
	return start, end
}
