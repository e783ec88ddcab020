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

// Package sketch turns a DNA window into a deterministic sample of
// hashed canonical k-mers ("minmers"), per spec §4.1.
package sketch

import "math"

// Strand records which encoding of a k-mer was canonical.
type Strand uint8

const (
	Forward Strand = iota
	Reverse
)

// Minmer is a single sampled, hashed canonical k-mer.
type Minmer struct {
	Hash   uint64
	Pos    int // 0-based offset into the sketched window
	Strand Strand
}

// Options configures a sketching pass.
type Options struct {
	K          int
	Density    float64 // σ: admit iff hash < Density * 2^64
	Complexity float64 // τ: minimum 2-mer entropy (bits), 0 disables the gate
}

// maxUint64f is 2^64 as a float64, used for the density threshold test.
const maxUint64f = 1.8446744073709552e19

// Sketch computes the minmers of seq[off:off+length] under opts,
// returning them sorted by position (the natural scan order).
func Sketch(seq []byte, off, length int, opts Options) []Minmer {
	k := opts.K
	if length < k {
		return nil
	}
	threshold := opts.Density * maxUint64f
	out := make([]Minmer, 0, length/8+1)

	for i := 0; i <= length-k; i++ {
		fwd, ok := packKmer(seq, off+i, k)
		if !ok {
			continue // window contains N or another non-ACGT base
		}
		canon, isFwd := canonical(fwd, k)

		if opts.Complexity > 0 && entropy2mer(canon, k) < opts.Complexity {
			continue
		}

		h := murmur3Finalizer64(canon)
		if float64(h) >= threshold {
			continue
		}

		strand := Forward
		if !isFwd {
			strand = Reverse
		}
		out = append(out, Minmer{Hash: h, Pos: i, Strand: strand})
	}
	return out
}

// HashOf returns the murmur3-mixed hash of the canonical encoding of a
// single k-mer at seq[off:off+k], or ok=false if it contains a non-ACGT
// base. The hash and strand match what Sketch assigns to the same
// k-mer, so a single k-mer's hash can be derived without sketching.
func HashOf(seq []byte, off, k int) (hash uint64, strand Strand, ok bool) {
	fwd, valid := packKmer(seq, off, k)
	if !valid {
		return 0, Forward, false
	}
	canon, isFwd := canonical(fwd, k)
	s := Forward
	if !isFwd {
		s = Reverse
	}
	return murmur3Finalizer64(canon), s, true
}

// DensityForSketchSize returns the σ that yields approximately
// targetMinmers over a window of the given effective length (segLength-k),
// i.e. the inverse of sketch_size = density*(segLength-k) from spec §6.1.
func DensityForSketchSize(targetMinmers int, effectiveLength int) float64 {
	if effectiveLength <= 0 {
		return 1
	}
	d := float64(targetMinmers) / float64(effectiveLength)
	return math.Min(d, 1)
}
