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

package minmerindex

import (
	"bufio"
	"encoding/binary"
	"hash/crc32"
	"io"
	"math"
	"os"

	"github.com/pangenome/wfmash-go/wfmash/errs"
	"github.com/pangenome/wfmash-go/wfmash/seqid"
)

// magic identifies an on-disk wfmash minmer index, version 1.
var magic = [6]byte{'W', 'F', 'M', 'X', '0', '1'}

// formatVersion is bumped whenever the on-disk layout changes
// incompatibly.
const formatVersion uint32 = 1

// crcWriter tees every Write through a running CRC32 checksum.
type crcWriter struct {
	w   io.Writer
	crc uint32
}

func newCRCWriter(w io.Writer) *crcWriter { return &crcWriter{w: w} }

func (c *crcWriter) Write(p []byte) (int, error) {
	c.crc = crc32.Update(c.crc, crc32.IEEETable, p)
	return c.w.Write(p)
}

type crcReader struct {
	r   io.Reader
	crc uint32
}

func newCRCReader(r io.Reader) *crcReader { return &crcReader{r: r} }

func (c *crcReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 {
		c.crc = crc32.Update(c.crc, crc32.IEEETable, p[:n])
	}
	return n, err
}

// WriteTo serializes the frozen index per the on-disk layout:
//
//	magic(6) version(u32) k(u32) density(f64) freqCap(u64)
//	nSeqs(u32) [nameLen(u32) name(nameLen) length(u64)]*nSeqs
//	nHashes(u64) [hash(u64) nHits(u32) [target(u32) pos(u32) strand(u8)]*nHits]*nHashes
//	crc32(u32)
//
// reg supplies the name/length for every target referenced by the
// index; it must already contain every such target.
func (idx *Index) WriteTo(w io.Writer, reg *seqid.Registry) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if !idx.frozen {
		return errs.Newf(errs.Internal, "minmerindex: WriteTo called before Freeze")
	}

	bw := bufio.NewWriter(w)
	cw := newCRCWriter(bw)

	if _, err := cw.Write(magic[:]); err != nil {
		return errs.New(errs.IO, err)
	}
	if err := writeU32(cw, formatVersion); err != nil {
		return err
	}
	if err := writeU32(cw, uint32(idx.K)); err != nil {
		return err
	}
	if err := writeF64(cw, idx.Density); err != nil {
		return err
	}
	if err := writeU64(cw, idx.FreqCap); err != nil {
		return err
	}

	n := reg.Len()
	if err := writeU32(cw, uint32(n)); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		id := seqid.ID(i)
		name := reg.Name(id)
		if err := writeU32(cw, uint32(len(name))); err != nil {
			return err
		}
		if _, err := cw.Write(name); err != nil {
			return errs.New(errs.IO, err)
		}
		if err := writeU64(cw, uint64(reg.Length(id))); err != nil {
			return err
		}
	}

	if err := writeU64(cw, uint64(len(idx.table))); err != nil {
		return err
	}
	for hash, list := range idx.table {
		if err := writeU64(cw, hash); err != nil {
			return err
		}
		if err := writeU32(cw, uint32(len(list))); err != nil {
			return err
		}
		for _, hit := range list {
			if err := writeU32(cw, uint32(hit.Target)); err != nil {
				return err
			}
			if err := writeU32(cw, hit.Pos); err != nil {
				return err
			}
			if _, err := cw.Write([]byte{hit.Strand}); err != nil {
				return errs.New(errs.IO, err)
			}
		}
	}

	if err := binary.Write(bw, binary.LittleEndian, cw.crc); err != nil {
		return errs.New(errs.IO, err)
	}
	if err := bw.Flush(); err != nil {
		return errs.New(errs.IO, err)
	}
	return nil
}

// ReadFrom deserializes an index previously written by WriteTo, also
// populating reg with the target names/lengths it carried. It returns
// IndexIncompatible if the magic or version does not match, or if k or
// density differ from want.
func ReadFrom(r io.Reader, reg *seqid.Registry, wantK int, wantDensity float64) (*Index, error) {
	br := bufio.NewReader(r)
	cr := newCRCReader(br)

	var gotMagic [6]byte
	if _, err := io.ReadFull(cr, gotMagic[:]); err != nil {
		return nil, errs.New(errs.IO, err)
	}
	if gotMagic != magic {
		return nil, errs.Newf(errs.IndexIncompatible, "minmerindex: bad magic %q", gotMagic)
	}

	version, err := readU32(cr)
	if err != nil {
		return nil, err
	}
	if version != formatVersion {
		return nil, errs.Newf(errs.IndexIncompatible, "minmerindex: version %d, want %d", version, formatVersion)
	}

	k, err := readU32(cr)
	if err != nil {
		return nil, err
	}
	if wantK > 0 && int(k) != wantK {
		return nil, errs.Newf(errs.IndexIncompatible, "minmerindex: k=%d, want %d", k, wantK)
	}

	density, err := readF64(cr)
	if err != nil {
		return nil, err
	}
	if wantDensity > 0 && math.Abs(density-wantDensity) > 1e-12 {
		return nil, errs.Newf(errs.IndexIncompatible, "minmerindex: density=%g, want %g", density, wantDensity)
	}

	freqCap, err := readU64(cr)
	if err != nil {
		return nil, err
	}

	idx := New(Config{K: int(k), Density: density, FreqCap: freqCap})

	nSeqs, err := readU32(cr)
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < nSeqs; i++ {
		nameLen, err := readU32(cr)
		if err != nil {
			return nil, err
		}
		name := make([]byte, nameLen)
		if _, err := io.ReadFull(cr, name); err != nil {
			return nil, errs.New(errs.IO, err)
		}
		length, err := readU64(cr)
		if err != nil {
			return nil, err
		}
		if _, err := reg.Register(name, int64(length)); err != nil {
			return nil, err
		}
	}

	nHashes, err := readU64(cr)
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < nHashes; i++ {
		hash, err := readU64(cr)
		if err != nil {
			return nil, err
		}
		nHits, err := readU32(cr)
		if err != nil {
			return nil, err
		}
		list := make(PosList, nHits)
		for j := uint32(0); j < nHits; j++ {
			target, err := readU32(cr)
			if err != nil {
				return nil, err
			}
			pos, err := readU32(cr)
			if err != nil {
				return nil, err
			}
			var strandBuf [1]byte
			if _, err := io.ReadFull(cr, strandBuf[:]); err != nil {
				return nil, errs.New(errs.IO, err)
			}
			list[j] = Hit{Target: seqid.ID(target), Pos: pos, Strand: strandBuf[0]}
		}
		idx.table[hash] = list
		idx.totalMinmers += int64(nHits)
	}

	wantCRC := cr.crc
	var gotCRC uint32
	if err := binary.Read(br, binary.LittleEndian, &gotCRC); err != nil {
		return nil, errs.New(errs.IO, err)
	}
	if gotCRC != wantCRC {
		return nil, errs.Newf(errs.IndexIncompatible, "minmerindex: crc32 mismatch, file is corrupt")
	}

	idx.frozen = true
	return idx, nil
}

// Save writes the index to a file at path, truncating any existing file.
func (idx *Index) Save(path string, reg *seqid.Registry) error {
	f, err := os.Create(path)
	if err != nil {
		return errs.New(errs.IO, err)
	}
	defer f.Close()
	if err := idx.WriteTo(f, reg); err != nil {
		return err
	}
	return nil
}

// Load reads an index previously written with Save.
func Load(path string, reg *seqid.Registry, wantK int, wantDensity float64) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.New(errs.IO, err)
	}
	defer f.Close()
	return ReadFrom(f, reg, wantK, wantDensity)
}

func writeU32(w io.Writer, v uint32) error {
	if err := binary.Write(w, binary.LittleEndian, v); err != nil {
		return errs.New(errs.IO, err)
	}
	return nil
}

func writeU64(w io.Writer, v uint64) error {
	if err := binary.Write(w, binary.LittleEndian, v); err != nil {
		return errs.New(errs.IO, err)
	}
	return nil
}

func writeF64(w io.Writer, v float64) error {
	if err := binary.Write(w, binary.LittleEndian, v); err != nil {
		return errs.New(errs.IO, err)
	}
	return nil
}

func readU32(r io.Reader) (uint32, error) {
	var v uint32
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, errs.New(errs.IO, err)
	}
	return v, nil
}

func readU64(r io.Reader) (uint64, error) {
	var v uint64
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, errs.New(errs.IO, err)
	}
	return v, nil
}

func readF64(r io.Reader) (float64, error) {
	var v float64
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return 0, errs.New(errs.IO, err)
	}
	return v, nil
}
