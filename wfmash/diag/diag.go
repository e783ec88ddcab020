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

// Package diag implements optional run diagnostics: an ANI-distribution
// histogram (PNG) and a raw TSV dump of every emitted mapping's
// estimated ANI, modeled on the original's WFA_PNG_TSV_TIMING debug
// dump (parse_args.hpp). No Non-goal excludes a one-shot diagnostic
// artifact, so this stays a small opt-in component rather than a
// dropped concern.
package diag

import (
	"bufio"
	"fmt"
	"os"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/pangenome/wfmash-go/wfmash/errs"
)

// Options gates and configures diagnostics collection. Disabled by
// default; enabling it costs one extra mutex-guarded append per
// emitted mapping, not per-candidate, so it stays cheap on the hot
// path.
type Options struct {
	Enabled  bool
	HistPath string
	TSVPath  string
	Bins     int
}

// Recorder accumulates estimated-ANI samples across worker goroutines
// for a post-run summary. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	samples []float64
	opts    Options
}

// New returns a Recorder configured by opts. When opts.Enabled is
// false, Record is a no-op and Flush writes nothing.
func New(opts Options) *Recorder {
	if opts.Bins <= 0 {
		opts.Bins = 50
	}
	return &Recorder{opts: opts}
}

// Record appends one estimated-ANI sample, typically called once per
// emitted mapping or alignment from wfmash/pipeline's writer role.
func (r *Recorder) Record(ani float64) {
	if !r.opts.Enabled {
		return
	}
	r.mu.Lock()
	r.samples = append(r.samples, ani)
	r.mu.Unlock()
}

// Flush writes the configured histogram PNG and/or TSV dump. A zero
// value for either path skips that artifact. No-op if disabled or if
// no samples were recorded.
func (r *Recorder) Flush() error {
	if !r.opts.Enabled {
		return nil
	}
	r.mu.Lock()
	samples := make([]float64, len(r.samples))
	copy(samples, r.samples)
	r.mu.Unlock()

	if len(samples) == 0 {
		return nil
	}
	if r.opts.TSVPath != "" {
		if err := writeTSV(r.opts.TSVPath, samples); err != nil {
			return err
		}
	}
	if r.opts.HistPath != "" {
		if err := writeHistogram(r.opts.HistPath, samples, r.opts.Bins); err != nil {
			return err
		}
	}
	return nil
}

func writeTSV(path string, samples []float64) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.New(errs.IO, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, v := range samples {
		fmt.Fprintf(w, "%.6f\n", v)
	}
	if err := w.Flush(); err != nil {
		return errs.New(errs.IO, err)
	}
	return nil
}

func writeHistogram(path string, samples []float64, bins int) error {
	values := make(plotter.Values, len(samples))
	copy(values, samples)

	p := plot.New()
	p.Title.Text = "estimated ANI distribution"
	p.X.Label.Text = "ANI"
	p.Y.Label.Text = "count"

	hist, err := plotter.NewHist(values, bins)
	if err != nil {
		return errs.New(errs.Internal, err)
	}
	p.Add(hist)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return errs.New(errs.IO, err)
	}
	return nil
}
