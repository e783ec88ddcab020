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
	"github.com/pangenome/wfmash-go/wfmash/candidate"
	"github.com/pangenome/wfmash-go/wfmash/homology"
)

// Orchestrate runs the full C8 state machine (spec §4.5) over one
// accepted Mapping: pad, tile, sketch-match and align fragments,
// stitch, patch, erode, and report the final Alignment. querySeq and
// targetSeq are the full sequences the mapping's coordinates index
// into; targetSeq is reverse-complemented internally when the mapping
// is on the reverse strand, matching the convention established by
// wfmash/homology and wfmash/candidate that Mapping.TStart/TEnd always
// denote the forward-strand target interval.
func Orchestrate(m *homology.Mapping, querySeq, targetSeq []byte, opts Options) *Alignment {
	aln := fromMapping(m)

	// step 1: pad
	padQS := maxInt(0, m.QStart-opts.MaxLenMinor)
	padQE := minInt(len(querySeq), m.QEnd+opts.MaxLenMinor)
	padTS := maxInt(0, m.TStart-opts.MaxLenMinor)
	padTE := minInt(len(targetSeq), m.TEnd+opts.MaxLenMinor)

	if padQE-padQS > opts.MaxLenMajor || padTE-padTS > opts.MaxLenMajor {
		// guard: padding blew the window past the sanity cap, fall back
		// to the unpadded mapping span.
		padQS, padQE = m.QStart, m.QEnd
		padTS, padTE = m.TStart, m.TEnd
	}

	paddedQuery := querySeq[padQS:padQE]
	var paddedTarget []byte
	if m.Strand == candidate.Reverse {
		paddedTarget = revComp(targetSeq[padTS:padTE])
	} else {
		paddedTarget = targetSeq[padTS:padTE]
	}
	aln.State = Tiled

	// steps 2-3: tile + sketch-match + align fragments
	frags := alignFragments(paddedQuery, paddedTarget, m.Strand, m.EstIdentity, opts)
	aln.State = AlignedFragments

	// step 4: stitch
	segs := stitch(frags, len(paddedQuery), len(paddedTarget))
	aln.State = Stitched

	// step 5: patch, resolved in place so the trace stays in query order
	tr := &trace{}
	for _, seg := range segs {
		if !seg.isPatch {
			tr.append(seg.ops)
			continue
		}
		isEnd := seg.region.qs == 0 || seg.region.qe == len(paddedQuery)
		ops := patchWithFallback(paddedQuery, paddedTarget, seg.region, isEnd, opts)
		tr.append(ops)
	}
	aln.State = Patched

	// step 6: erode
	finalOps := erode(tr.ops, opts.ErodeK)
	matches, mismatches, insertions, deletions := recount(finalOps)

	// step 7: emit. QStart/QEnd/TStart/TEnd are widened to the padded
	// window Ops actually spans (the mapping's original span can be
	// narrower once patching resolves boundary corrections).
	aln.QStart, aln.QEnd = padQS, padQE
	aln.TStart, aln.TEnd = padTS, padTE
	aln.QueryWindow = paddedQuery
	aln.TargetWindow = paddedTarget
	aln.Ops = finalOps
	aln.Matches = matches
	aln.Mismatches = mismatches
	aln.Insertions = insertions
	aln.Deletions = deletions
	total := matches + mismatches + insertions + deletions
	if total > 0 {
		aln.Identity = float64(matches) / float64(total)
	}

	if aln.Identity < opts.MinIdentity {
		aln.State = Failed
	} else {
		aln.State = Emitted
	}
	return aln
}
