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

// Package minmerindex is the inverted index (hash -> PosList) described
// in spec §4.2, built per batch and queried read-only during that
// batch's mapping phase (§3 Ownership).
package minmerindex

import (
	"math"
	"runtime"
	"sync"

	"github.com/twotwotwo/sorts"

	"github.com/pangenome/wfmash-go/wfmash/errs"
	"github.com/pangenome/wfmash-go/wfmash/seqid"
)

// Hit is one occurrence of a hash in a target.
type Hit struct {
	Target seqid.ID
	Pos    uint32
	Strand uint8 // 0 forward, 1 reverse
}

// PosList is the sorted-by-(Target,Pos) occurrence list of one hash.
type PosList []Hit

func (p PosList) Len() int      { return len(p) }
func (p PosList) Swap(i, j int) { p[i], p[j] = p[j], p[i] }
func (p PosList) Less(i, j int) bool {
	if p[i].Target != p[j].Target {
		return p[i].Target < p[j].Target
	}
	return p[i].Pos < p[j].Pos
}

// Config carries the parameters baked into an index at build time.
type Config struct {
	K         int
	Density   float64
	FreqCap   uint64
}

// Index is the in-memory inverted minmer index for one batch of targets.
type Index struct {
	Config

	mu     sync.RWMutex
	table  map[uint64]PosList
	frozen bool

	totalMinmers int64
	perTarget    map[seqid.ID]int64
}

// New creates an empty, writable Index.
func New(cfg Config) *Index {
	return &Index{
		Config:    cfg,
		table:     make(map[uint64]PosList, 1<<20),
		perTarget: make(map[seqid.ID]int64),
	}
}

// FreqCap computes the runtime frequency cap from spec §4.2:
// max(2, ceil(|refs|*σ*numerator/k)).
func FreqCap(totalRefBases int64, density, numerator float64, k int) uint64 {
	v := math.Ceil(float64(totalRefBases) * density * numerator / float64(k))
	cap := uint64(v)
	if cap < 2 {
		cap = 2
	}
	return cap
}

// Insert adds one target's minmer occurrences. Must not be called after
// Freeze. Safe for concurrent callers inserting disjoint targets.
func (idx *Index) Insert(target seqid.ID, hash uint64, pos uint32, strand uint8) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.frozen {
		return errs.Newf(errs.Internal, "minmerindex: insert after freeze")
	}
	idx.table[hash] = append(idx.table[hash], Hit{Target: target, Pos: pos, Strand: strand})
	idx.totalMinmers++
	idx.perTarget[target]++
	return nil
}

// Freeze sorts every PosList and drops any hash whose PosList exceeds
// FreqCap, per spec §4.2's build-time invariant. After Freeze the index
// is read-only and safe for concurrent Query calls from many workers.
func (idx *Index) Freeze() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.frozen {
		return
	}

	type job struct {
		hash uint64
		list PosList
	}
	jobs := make(chan uint64, runtime.GOMAXPROCS(0))
	var wg sync.WaitGroup
	var mu sync.Mutex
	drop := make([]uint64, 0)

	worker := func() {
		defer wg.Done()
		for h := range jobs {
			list := idx.table[h]
			if uint64(len(list)) > idx.FreqCap {
				mu.Lock()
				drop = append(drop, h)
				mu.Unlock()
				continue
			}
			sorts.Quicksort(list)
		}
	}

	nw := runtime.GOMAXPROCS(0)
	wg.Add(nw)
	for i := 0; i < nw; i++ {
		go worker()
	}
	for h := range idx.table {
		jobs <- h
	}
	close(jobs)
	wg.Wait()

	for _, h := range drop {
		delete(idx.table, h)
	}
	idx.frozen = true
}

// Query returns the PosList for hash, or nil if absent.
func (idx *Index) Query(hash uint64) PosList {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.table[hash]
}

// NumHashes returns the number of distinct retained hashes.
func (idx *Index) NumHashes() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.table)
}

// TotalMinmers returns the number of minmers observed before frequency
// filtering, summed over every target in the batch.
func (idx *Index) TotalMinmers() int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.totalMinmers
}

// PerTargetMinmers returns the number of minmers contributed by target.
func (idx *Index) PerTargetMinmers(target seqid.ID) int64 {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.perTarget[target]
}

// CheckInvariant verifies every retained PosList respects the frequency
// cap — called after Freeze as a defensive check; a violation here is
// an Internal invariant failure (spec §7), not a recoverable condition.
func (idx *Index) CheckInvariant() error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	for h, list := range idx.table {
		if uint64(len(list)) > idx.FreqCap {
			return errs.Newf(errs.Internal, "minmerindex: hash %d has %d hits, exceeds freq cap %d", h, len(list), idx.FreqCap)
		}
	}
	return nil
}
