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

// Package record implements the RecordWriter spec.md §1 names as an
// external collaborator: PAF and SAM serialization of Mappings and
// Alignments, per spec §6.2. One Writer is owned by the single writer
// goroutine of wfmash/pipeline (spec §4.6) — callers must not share a
// Writer across goroutines.
package record

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/pangenome/wfmash-go/wfmash/align"
	"github.com/pangenome/wfmash-go/wfmash/candidate"
	"github.com/pangenome/wfmash-go/wfmash/homology"
	"github.com/pangenome/wfmash-go/wfmash/wflign"
)

// Format selects PAF or SAM output, spec §6.1's sam_format flag.
type Format uint8

const (
	PAF Format = iota
	SAM
)

// Options configures a Writer, mirroring spec §6.1's sam_format,
// emit_md_tag, no_seq_in_sam flags.
type Options struct {
	Format     Format
	EmitMDTag  bool
	NoSeqInSAM bool
}

// Writer serializes records to an underlying stream. Not safe for
// concurrent use — matches the teacher's single-writer-goroutine
// convention (cmd/map.go's outputter goroutine).
type Writer struct {
	w    *bufio.Writer
	opts Options
}

// NewWriter wraps w, optionally emitting a SAM header first.
func NewWriter(w io.Writer, opts Options) *Writer {
	rw := &Writer{w: bufio.NewWriterSize(w, 1<<16), opts: opts}
	if opts.Format == SAM {
		fmt.Fprintf(rw.w, "@HD\tVN:1.6\tSO:unsorted\n")
	}
	return rw
}

// Flush flushes the underlying buffered writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}

func strandChar(s candidate.Strand) byte {
	if s == candidate.Reverse {
		return '-'
	}
	return '+'
}

// WriteMapping emits one approx-mode record (no CIGAR): a Mapping plus
// the query/target names and lengths it was matched against, and the
// sketch Jaccard the mapping was estimated from. samSeq, if non-nil,
// is used verbatim as the SAM SEQ field (the caller's responsibility
// to have already reverse-complemented it for Reverse-strand mappings,
// per SAM convention); nil yields SAM's "*" placeholder and is ignored
// entirely in PAF mode.
func (w *Writer) WriteMapping(queryName string, qLen int, targetName string, tLen int, m *homology.Mapping, jaccard float64, samSeq []byte) error {
	blockLen := m.QEnd - m.QStart
	numMatches := int(m.EstIdentity * float64(blockLen))
	mapq := mapqFromIdentity(m.EstIdentity)

	switch w.opts.Format {
	case SAM:
		// no CIGAR yet in approx mode, so FLAG reflects strand only.
		flag := 0
		if m.Strand == candidate.Reverse {
			flag = 16
		}
		seqField := "*"
		if !w.opts.NoSeqInSAM && samSeq != nil {
			seqField = string(samSeq)
		}
		fmt.Fprintf(w.w, "%s\t%d\t%s\t%d\t%d\t*\t*\t0\t0\t%s\t*\tgi:f:%.4f\tjc:f:%.4f\n",
			queryName, flag, targetName, m.TStart+1, mapq, seqField, m.EstIdentity, jaccard)
		return nil
	default:
		_, err := fmt.Fprintf(w.w, "%s\t%d\t%d\t%d\t%c\t%s\t%d\t%d\t%d\t%d\t%d\t%d\tgi:f:%.4f\tmd:f:%.4f\tjc:f:%.4f\n",
			queryName, qLen, m.QStart, m.QEnd, strandChar(m.Strand),
			targetName, tLen, m.TStart, m.TEnd,
			numMatches, blockLen, mapq,
			m.EstIdentity, m.EstIdentity, jaccard)
		return err
	}
}

// WriteAlignment emits one align-mode record: a base-level Alignment,
// with soft-clips for the unaligned query prefix/suffix (spec §6.2),
// and the optional cg:Z:/MD:Z: tags. samSeq, if non-nil, is used
// verbatim as the SAM SEQ field in place of aln.QueryWindow — the
// caller's pre-reverse-complemented query bases for Reverse-strand
// mappings, since aln.QueryWindow itself is always stored in the
// query's original forward orientation (only TargetWindow is
// reverse-complemented internally by wflign.Orchestrate).
func (w *Writer) WriteAlignment(queryName string, qLen int, targetName string, tLen int, m *homology.Mapping, aln *wflign.Alignment, jaccard float64, samSeq []byte) error {
	ops := clipOps(aln.Ops, aln.QStart, aln.QEnd, qLen)
	cigar := cigarString(ops)
	blockLen := aln.Matches + aln.Mismatches + aln.Insertions + aln.Deletions
	mapq := mapqFromIdentity(aln.Identity)

	switch w.opts.Format {
	case SAM:
		flag := 0
		if aln.Strand == candidate.Reverse {
			flag = 16
		}
		seqField := "*"
		if !w.opts.NoSeqInSAM {
			switch {
			case samSeq != nil:
				seqField = string(samSeq)
			case aln.QueryWindow != nil:
				seqField = string(aln.QueryWindow)
			}
		}
		if _, err := fmt.Fprintf(w.w, "%s\t%d\t%s\t%d\t%d\t%s\t*\t0\t0\t%s\t*\tgi:f:%.4f\tjc:f:%.4f",
			queryName, flag, targetName, aln.TStart+1, mapq, cigar, seqField, aln.Identity, jaccard); err != nil {
			return err
		}
		if w.opts.EmitMDTag && aln.TargetWindow != nil {
			fmt.Fprintf(w.w, "\tMD:Z:%s", computeMD(aln.Ops, aln.TargetWindow))
		}
		fmt.Fprintln(w.w)
		return nil
	default:
		if _, err := fmt.Fprintf(w.w, "%s\t%d\t%d\t%d\t%c\t%s\t%d\t%d\t%d\t%d\t%d\t%d\tgi:f:%.4f\tjc:f:%.4f\tcg:Z:%s",
			queryName, qLen, aln.QStart, aln.QEnd, strandChar(aln.Strand),
			targetName, tLen, aln.TStart, aln.TEnd,
			aln.Matches, blockLen, mapq,
			aln.Identity, jaccard, cigar); err != nil {
			return err
		}
		if w.opts.EmitMDTag && aln.TargetWindow != nil {
			fmt.Fprintf(w.w, "\tMD:Z:%s", computeMD(aln.Ops, aln.TargetWindow))
		}
		fmt.Fprintln(w.w)
		return nil
	}
}

// WriteAbortedMapping emits a mapping-only fallback record tagged
// zd:i:1, per spec §7's "alignment aborted" recovery policy.
func (w *Writer) WriteAbortedMapping(queryName string, qLen int, targetName string, tLen int, m *homology.Mapping, jaccard float64) error {
	blockLen := m.QEnd - m.QStart
	numMatches := int(m.EstIdentity * float64(blockLen))
	mapq := mapqFromIdentity(m.EstIdentity)
	_, err := fmt.Fprintf(w.w, "%s\t%d\t%d\t%d\t%c\t%s\t%d\t%d\t%d\t%d\t%d\t%d\tgi:f:%.4f\tjc:f:%.4f\tzd:i:1\n",
		queryName, qLen, m.QStart, m.QEnd, strandChar(m.Strand),
		targetName, tLen, m.TStart, m.TEnd,
		numMatches, blockLen, mapq,
		m.EstIdentity, jaccard)
	return err
}

// mapqFromIdentity maps an estimated identity to a MAPQ-like confidence
// in [0,60], the scale samtools/minimap2 readers expect; the spec
// leaves the exact mapping unspecified, so this is a monotone heuristic
// rather than a literal port.
func mapqFromIdentity(identity float64) int {
	q := int(identity * 60)
	if q < 0 {
		q = 0
	}
	if q > 60 {
		q = 60
	}
	return q
}

// clipOps prepends/appends soft-clip ops for the unaligned query
// prefix [0,qStart) and suffix [qEnd,qLen), spec §6.2's "soft-clips for
// unaligned prefixes/suffixes".
func clipOps(ops []align.Op, qStart, qEnd, qLen int) []align.Op {
	out := make([]align.Op, 0, len(ops)+2)
	if qStart > 0 {
		out = append(out, align.Op{Code: 'S', Len: qStart})
	}
	out = append(out, ops...)
	if qEnd < qLen {
		out = append(out, align.Op{Code: 'S', Len: qLen - qEnd})
	}
	return out
}

// cigarString renders a run-length op list in the M/X/I/D/H/S alphabet
// align.Result and wflign.Alignment already use internally.
func cigarString(ops []align.Op) string {
	var b strings.Builder
	for _, op := range ops {
		if op.Len <= 0 {
			continue
		}
		fmt.Fprintf(&b, "%d%c", op.Len, op.Code)
	}
	return b.String()
}
