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

import "github.com/pangenome/wfmash-go/wfmash/align"

// patchRegion is a gap stitch left behind, in coordinates relative to
// the padded query/target windows.
type patchRegion struct {
	qs, qe int
	ts, te int
}

// trace accumulates run-length CIGAR ops and their base-count tallies
// as fragments and patches are spliced in, merging a new op into the
// last one when their codes match (keeps the trace compact the way a
// single aligned pass over the whole window would have produced it).
type trace struct {
	ops                                         []align.Op
	matches, mismatches, insertions, deletions int
}

func (t *trace) append(ops []align.Op) {
	for _, op := range ops {
		t.appendOne(op)
	}
}

func (t *trace) appendOne(op align.Op) {
	if op.Len <= 0 {
		return
	}
	if n := len(t.ops); n > 0 && t.ops[n-1].Code == op.Code {
		t.ops[n-1].Len += op.Len
	} else {
		t.ops = append(t.ops, op)
	}
	switch op.Code {
	case 'M':
		t.matches += op.Len
	case 'X':
		t.mismatches += op.Len
	case 'I':
		t.insertions += op.Len
	case 'D':
		t.deletions += op.Len
	}
}

// trimOpsPrefix drops the first qBases query-consuming bases (M, X, or
// I ops) from ops, splitting an op if the cut falls inside it. D ops
// encountered before the cut point are dropped entirely since they
// don't advance the query axis and belong to the overlap being
// discarded.
func trimOpsPrefix(ops []align.Op, qBases int) []align.Op {
	if qBases <= 0 {
		return ops
	}
	i := 0
	remaining := qBases
	for i < len(ops) && remaining > 0 {
		op := ops[i]
		consumesQuery := op.Code == 'M' || op.Code == 'X' || op.Code == 'I'
		if !consumesQuery {
			i++
			continue
		}
		if op.Len <= remaining {
			remaining -= op.Len
			i++
			continue
		}
		// split: keep the tail of this op
		tail := make([]align.Op, 0, len(ops)-i)
		tail = append(tail, align.Op{Code: op.Code, Len: op.Len - remaining})
		tail = append(tail, ops[i+1:]...)
		return tail
	}
	return ops[i:]
}

// segment is one ordered piece of the stitched trace: either a resolved
// run of CIGAR ops from an accepted fragment, or a PATCH placeholder
// still needing step 5's patch attempt.
type segment struct {
	isPatch bool
	ops     []align.Op // valid when !isPatch
	region  patchRegion // valid when isPatch
}

// stitch implements spec §4.5 step 4: walk tiled fragment alignments in
// query order, splicing in the non-overlapping suffix of each accepted
// fragment and recording a PATCH placeholder wherever a fragment was
// rejected (step 3's Jaccard gate) or an unexpected gap remains. The
// returned segments preserve query-coordinate order so step 5 can
// resolve each patch in place rather than appending it out of order.
func stitch(frags []fragmentAlignment, qLen, tLen int) []segment {
	var segs []segment

	qPos, tPos := 0, 0
	for _, f := range frags {
		if !f.ok || f.result == nil {
			if f.qe > qPos {
				ts := tPos
				te := tPos + (f.qe - qPos)
				if f.ts >= 0 {
					ts, te = f.ts, f.te
				}
				segs = append(segs, segment{isPatch: true, region: patchRegion{qs: qPos, qe: f.qe, ts: ts, te: te}})
				qPos = f.qe
				tPos = te
			}
			continue
		}

		if f.qs < qPos {
			segs = append(segs, segment{ops: trimOpsPrefix(f.result.Ops, qPos-f.qs)})
		} else {
			if f.qs > qPos {
				segs = append(segs, segment{isPatch: true, region: patchRegion{qs: qPos, qe: f.qs, ts: tPos, te: tPos + (f.qs - qPos)}})
			}
			segs = append(segs, segment{ops: f.result.Ops})
		}
		qPos = f.qe
		tPos = f.te
	}

	if qPos < qLen {
		segs = append(segs, segment{isPatch: true, region: patchRegion{qs: qPos, qe: qLen, ts: tPos, te: minInt(tPos+(qLen-qPos), tLen)}})
	}
	return segs
}

// patchWithFallback implements spec §4.5 step 5: try the patch
// penalties at a sequence of progressively looser score caps (the
// multi-attempt strategy original_source/.../wflign_patch.hpp's
// do_wfa_patch_alignment declares but whose tuning constants aren't in
// the retrieved header), accepting the first attempt that stays within
// its cap. If every attempt fails, the region is emitted as a pure I/D
// block (or a soft clip if it falls at either end of the mapping).
func patchWithFallback(query, target []byte, region patchRegion, isEnd bool, opts Options) []align.Op {
	qLen := region.qe - region.qs
	tLen := region.te - region.ts
	if qLen <= 0 && tLen <= 0 {
		return nil
	}

	baseLen := maxInt(qLen, tLen)
	if qLen > 0 && tLen > 0 {
		for _, mult := range opts.PatchCapMultipliers {
			scoreCap := int(float64(baseLen) * mult)
			if scoreCap < 1 {
				scoreCap = 1
			}
			res, ok, err := align.AlignAffine2pCapped(
				query[region.qs:region.qe], target[region.ts:region.te], opts.Patch, scoreCap)
			if err == nil && ok {
				ops := res.Ops
				align.RecycleResult(res)
				return ops
			}
			if res != nil {
				align.RecycleResult(res)
			}
		}
	}

	// fall through: pure I/D block (or soft clip at the mapping's ends).
	var ops []align.Op
	if isEnd {
		if qLen > 0 {
			ops = append(ops, align.Op{Code: 'S', Len: qLen})
		}
		return ops
	}
	if qLen > 0 {
		ops = append(ops, align.Op{Code: 'I', Len: qLen})
	}
	if tLen > 0 {
		ops = append(ops, align.Op{Code: 'D', Len: tLen})
	}
	return ops
}

// erode implements spec §4.5 step 6: match runs shorter than erodeK
// sitting between two indel-or-mismatch runs are artifacts of stitching
// independently aligned fragments at arbitrary boundaries, not real
// shared sequence, so they're re-expressed as mismatches.
func erode(ops []align.Op, erodeK int) []align.Op {
	if erodeK <= 0 {
		return ops
	}
	out := make([]align.Op, 0, len(ops))
	for i, op := range ops {
		if op.Code == 'M' && op.Len < erodeK && i > 0 && i < len(ops)-1 {
			prev, next := ops[i-1].Code, ops[i+1].Code
			if prev != 'M' && next != 'M' {
				op = align.Op{Code: 'X', Len: op.Len}
			}
		}
		if n := len(out); n > 0 && out[n-1].Code == op.Code {
			out[n-1].Len += op.Len
		} else {
			out = append(out, op)
		}
	}
	return out
}

// recount rebuilds matches/mismatches/insertions/deletions from a final
// ops slice, used after erode rewrites some M runs to X.
func recount(ops []align.Op) (matches, mismatches, insertions, deletions int) {
	for _, op := range ops {
		switch op.Code {
		case 'M':
			matches += op.Len
		case 'X':
			mismatches += op.Len
		case 'I':
			insertions += op.Len
		case 'D':
			deletions += op.Len
		}
	}
	return
}
