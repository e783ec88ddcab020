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

// Package align is the public WavefrontAligner contract (spec §4.4's C7):
// given two byte strings and a gap-affine penalty set, produce an optimal
// CIGAR. The contract shape (Options/Result with a pooled, resettable
// Result and RecycleResult) follows index/align/nw.go's Aligner
// convention; the concrete engine underneath is
// github.com/shenwei356/wfa, a real gap-affine wavefront implementation.
package align

import (
	"sync"

	"github.com/shenwei356/wfa"

	"github.com/pangenome/wfmash-go/wfmash/errs"
)

// Penalties is the single-cost gap-affine penalty set used for
// end-to-end alignment (spec §4.5 step 3's default mismatch=2,
// gap_open=3, gap_extend=1).
type Penalties struct {
	Mismatch  uint32
	GapOpen   uint32
	GapExtend uint32
}

func (p Penalties) toWFA() *wfa.Penalties {
	return &wfa.Penalties{Mismatch: p.Mismatch, GapOpen: p.GapOpen, GapExt: p.GapExtend}
}

// Options configures one Aligner. Global selects end-to-end alignment
// (the only mode spec §4.5 step 3 calls for); Adaptive enables the
// library's wavefront-pruning heuristic for long fragments, left off by
// default so small patch regions stay exact.
type Options struct {
	Global   bool
	Adaptive *wfa.AdaptiveReductionOption
}

// DefaultOptions mirrors wfa.DefaultOptions: global (end-to-end)
// alignment, no adaptive reduction.
var DefaultOptions = Options{Global: true}

// Result holds the outcome of one alignment: the gap-affine score,
// matched/mismatched/inserted/deleted base counts recomputed from the
// returned extended CIGAR (M/X/I/D/H), and the query/target spans the
// CIGAR actually covers (it may be shorter than the input when the
// underlying engine soft/hard-clips a semi-global alignment).
type Result struct {
	Score        int
	QStart, QEnd int
	TStart, TEnd int
	Matches      int
	Mismatches   int
	Insertions   int
	Deletions    int
	CIGAR        string
	Ops          []Op
}

// Op is one run-length-encoded CIGAR operation.
type Op struct {
	Code byte // 'M', 'X', 'I', 'D', 'H', or 'S'
	Len  int
}

// Reset clears a Result for reuse from the pool.
func (r *Result) Reset() {
	r.Score = 0
	r.QStart, r.QEnd = 0, 0
	r.TStart, r.TEnd = 0, 0
	r.Matches, r.Mismatches, r.Insertions, r.Deletions = 0, 0, 0, 0
	r.CIGAR = ""
	if r.Ops != nil {
		r.Ops = r.Ops[:0]
	}
}

var poolResult = &sync.Pool{New: func() interface{} {
	return &Result{Ops: make([]Op, 0, 64)}
}}

// RecycleResult returns a Result to the pool.
func RecycleResult(r *Result) {
	if r != nil {
		poolResult.Put(r)
	}
}

// Aligner wraps one penalty/option configuration. It is not safe for
// concurrent use by multiple goroutines; C9 workers each own one.
type Aligner struct {
	penalties *wfa.Penalties
	opt       *wfa.Options
	ad        *wfa.AdaptiveReductionOption
}

// New creates an Aligner for the given penalties and options.
func New(p Penalties, opts Options) *Aligner {
	return &Aligner{
		penalties: p.toWFA(),
		opt:       &wfa.Options{GlobalAlignment: opts.Global},
		ad:        opts.Adaptive,
	}
}

// Align computes the optimal gap-affine alignment of q against t (the
// engine wants the shorter-or-equal sequence first; Align swaps the
// inputs itself when q is longer). The returned *Result must be
// released with RecycleResult after use.
func (a *Aligner) Align(q, t []byte) (*Result, error) {
	// wfa.Aligner.Align documents "the length of q should be <= that of
	// t"; swap here rather than push that requirement onto every caller,
	// and swap the reported spans back on the way out.
	swapped := len(q) > len(t)
	if swapped {
		q, t = t, q
	}

	algn := wfa.New(a.penalties, a.opt)
	defer wfa.RecycleAligner(algn)
	if a.ad != nil {
		if err := algn.AdaptiveReduction(a.ad); err != nil {
			return nil, errs.New(errs.Internal, err)
		}
	}

	cigar, err := algn.Align(q, t)
	if err != nil {
		return nil, errs.New(errs.AlignmentCapExceeded, err)
	}

	r := poolResult.Get().(*Result)
	r.Reset()
	r.CIGAR = cigar.CIGAR()
	if swapped {
		r.QStart, r.QEnd = cigar.TBegin, cigar.TEnd
		r.TStart, r.TEnd = cigar.QBegin, cigar.QEnd
	} else {
		r.QStart, r.QEnd = cigar.QBegin, cigar.QEnd
		r.TStart, r.TEnd = cigar.TBegin, cigar.TEnd
	}
	parseInto(r, r.CIGAR, a.penalties)
	if swapped {
		r.swapIndels()
	}
	return r, nil
}

// swapIndels exchanges I and D throughout a Result, correcting for an
// Align call that internally swapped q and t to satisfy the engine's
// length precondition: an insertion relative to the swapped "query" is
// a deletion relative to the real one, and vice versa.
func (r *Result) swapIndels() {
	r.Insertions, r.Deletions = r.Deletions, r.Insertions
	for i := range r.Ops {
		switch r.Ops[i].Code {
		case 'I':
			r.Ops[i].Code = 'D'
		case 'D':
			r.Ops[i].Code = 'I'
		}
	}
	buf := make([]byte, 0, len(r.CIGAR))
	for i := 0; i < len(r.CIGAR); i++ {
		c := r.CIGAR[i]
		switch c {
		case 'I':
			buf = append(buf, 'D')
		case 'D':
			buf = append(buf, 'I')
		default:
			buf = append(buf, c)
		}
	}
	r.CIGAR = string(buf)
}

// parseInto walks an extended CIGAR string (runs of digits followed by
// one of M/X/I/D/H, per wfa's wfaOps table: '.'=clip-none, I, D, X, M,
// H=hard-clip) accumulating base counts and the gap-affine score the
// library computed during backtrace (GapOpen charged once per run,
// GapExtend charged per base of the run, Mismatch charged per base).
func parseInto(r *Result, s string, p *wfa.Penalties) {
	n := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' {
			n = n*10 + int(c-'0')
			continue
		}
		if n == 0 {
			n = 1
		}
		r.Ops = append(r.Ops, Op{Code: c, Len: n})
		switch c {
		case 'M':
			r.Matches += n
		case 'X':
			r.Mismatches += n
			r.Score += n * int(p.Mismatch)
		case 'I':
			r.Insertions += n
			r.Score += int(p.GapOpen) + n*int(p.GapExt)
		case 'D':
			r.Deletions += n
			r.Score += int(p.GapOpen) + n*int(p.GapExt)
		case 'H':
			// hard clip, no score contribution
		}
		n = 0
	}
}

// AlignedQueryLen returns the number of query bases the CIGAR consumes
// (M + X + I), used by callers computing identity over a fragment.
func (r *Result) AlignedQueryLen() int {
	return r.Matches + r.Mismatches + r.Insertions
}

// Identity returns Matches / (Matches+Mismatches+Insertions+Deletions),
// the block-identity convention spec §6.2's gi tag uses.
func (r *Result) Identity() float64 {
	total := r.Matches + r.Mismatches + r.Insertions + r.Deletions
	if total == 0 {
		return 0
	}
	return float64(r.Matches) / float64(total)
}
