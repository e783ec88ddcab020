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

package wflign

import (
	"math"

	"github.com/pangenome/wfmash-go/wfmash/align"
	"github.com/pangenome/wfmash-go/wfmash/candidate"
	"github.com/pangenome/wfmash-go/wfmash/sketch"
)

// fragment is one query-axis tile of a padded mapping window, in
// coordinates relative to the padded query slice passed to tile.
type fragment struct {
	qs, qe int
}

// tile splits [0,qLen) into overlapping windows of length segLen with
// step (segLen/2 by default), the "tile the mapping into overlapping
// fragments" of spec §4.5 step 2.
func tile(qLen, segLen, step int) []fragment {
	if segLen <= 0 || qLen <= 0 {
		return nil
	}
	if step <= 0 {
		step = segLen / 2
	}
	if qLen <= segLen {
		return []fragment{{0, qLen}}
	}
	var out []fragment
	for qs := 0; qs < qLen; qs += step {
		qe := minInt(qs+segLen, qLen)
		out = append(out, fragment{qs, qe})
		if qe == qLen {
			break
		}
	}
	return out
}

// revComp returns the reverse complement of seq.
func revComp(seq []byte) []byte {
	out := make([]byte, len(seq))
	n := len(seq)
	for i, b := range seq {
		var c byte
		switch b {
		case 'A', 'a':
			c = 'T'
		case 'C', 'c':
			c = 'G'
		case 'G', 'g':
			c = 'C'
		case 'T', 't':
			c = 'A'
		default:
			c = b
		}
		out[n-1-i] = c
	}
	return out
}

// jaccard is the set-intersection-over-union of two minmer sets (their
// order does not matter), recomputed directly rather than via the L2 shared-count
// path since fragments are sketched independently of the minmer index.
func jaccard(a, b []sketch.Minmer) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	seen := make(map[uint64]struct{}, len(a))
	for _, m := range a {
		seen[m.Hash] = struct{}{}
	}
	shared := 0
	for _, m := range b {
		if _, ok := seen[m.Hash]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	if union <= 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// aniToJaccard inverts the Mash distance formula (spec/GLOSSARY:
// D = -1/k * ln(2J/(1+J)), ANI = 1-D) to find the Jaccard value that
// corresponds to a target ANI, used to set the fragment-acceptance
// threshold from the mapping's already-estimated identity.
func aniToJaccard(ani float64, k int) float64 {
	d := 1 - ani
	if d < 0 {
		d = 0
	}
	e := math.Exp(-float64(k) * d)
	denom := 2 - e
	if denom <= 0 {
		return 1
	}
	j := e / denom
	if j < 0 {
		return 0
	}
	if j > 1 {
		return 1
	}
	return j
}

// fragmentAlignment is one accepted or rejected fragment pair.
type fragmentAlignment struct {
	qs, qe int // query-axis span, relative to the padded query window
	ts, te int // target-axis span, relative to the padded target window
	result *align.Result
	ok     bool
}

// alignFragments runs spec §4.5 steps 2-3: tile paddedQuery into
// fragments, locate each fragment's target counterpart by sketch
// Jaccard within a chainGap search radius around the position the
// mapping's overall slope predicts, and run the end-to-end aligner on
// fragment pairs that clear the ANI-derived Jaccard threshold. Fragment
// pairs that don't clear it are returned with ok=false, leaving a gap
// for the stitch step to mark PATCH.
func alignFragments(paddedQuery, paddedTarget []byte, strand candidate.Strand, estANI float64, opts Options) []fragmentAlignment {
	frags := tile(len(paddedQuery), opts.SegmentLength, opts.StepSize)
	if len(frags) == 0 {
		return nil
	}

	qLen := len(paddedQuery)
	tLen := len(paddedTarget)
	slope := float64(tLen) / float64(maxInt(qLen, 1))
	minJaccard := aniToJaccard(estANI, opts.FragmentK) - opts.JaccardSlack
	if minJaccard < 0 {
		minJaccard = 0
	}

	aligner := align.New(opts.EndToEnd, align.DefaultOptions)
	sketchOpts := sketch.Options{K: opts.FragmentK, Density: sketch.DensityForSketchSize(opts.FragmentMinmers, opts.SegmentLength-opts.FragmentK)}

	out := make([]fragmentAlignment, 0, len(frags))
	searchStep := maxInt(opts.SegmentLength/4, 1)

	for _, f := range frags {
		qSeg := paddedQuery[f.qs:f.qe]
		qSketch := sketch.Sketch(qSeg, 0, len(qSeg), sketchOpts)

		var tEstStart int
		if strand == candidate.Forward {
			tEstStart = int(float64(f.qs) * slope)
		} else {
			tEstStart = tLen - int(float64(f.qe)*slope)
		}

		bestJ := -1.0
		bestTS, bestTE := -1, -1
		// start on a multiple of searchStep so the predicted position
		// itself (offset 0) is among the offsets tried.
		for off := -(opts.ChainGap / searchStep) * searchStep; off <= opts.ChainGap; off += searchStep {
			ts := tEstStart + off
			te := ts + (f.qe - f.qs)
			if ts < 0 || te > tLen {
				continue
			}
			tSeg := paddedTarget[ts:te]
			tSketch := sketch.Sketch(tSeg, 0, len(tSeg), sketchOpts)
			j := jaccard(qSketch, tSketch)
			if j > bestJ {
				bestJ = j
				bestTS, bestTE = ts, te
			}
		}

		if bestTS < 0 || bestJ < minJaccard {
			out = append(out, fragmentAlignment{qs: f.qs, qe: f.qe, ok: false})
			continue
		}

		res, err := aligner.Align(qSeg, paddedTarget[bestTS:bestTE])
		if err != nil {
			out = append(out, fragmentAlignment{qs: f.qs, qe: f.qe, ts: bestTS, te: bestTE, ok: false})
			continue
		}
		out = append(out, fragmentAlignment{qs: f.qs, qe: f.qe, ts: bestTS, te: bestTE, result: res, ok: true})
	}
	return out
}
