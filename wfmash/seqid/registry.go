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

// Package seqid assigns stable integer ids to sequence names and applies
// the name-prefix / name-list include-exclude rules from spec §6.1.
package seqid

import (
	"bufio"
	"os"
	"strings"
	"sync"

	"github.com/pangenome/wfmash-go/wfmash/errs"
)

// ID is a stable 32-bit sequence identifier, assigned in first-seen order.
type ID uint32

// Registry is the append-only id<->name<->length table, shared read-only
// across workers once indexing finishes (§3 Ownership).
type Registry struct {
	mu      sync.RWMutex
	names   [][]byte
	lengths []int64
	byName  map[string]ID
}

// New creates an empty Registry, sized for nHint sequences.
func New(nHint int) *Registry {
	if nHint <= 0 {
		nHint = 128
	}
	return &Registry{
		names:   make([][]byte, 0, nHint),
		lengths: make([]int64, 0, nHint),
		byName:  make(map[string]ID, nHint),
	}
}

// Register assigns a new id to name, or returns InputValidationError if
// name was already registered (duplicate sequence names are invalid input).
func (r *Registry) Register(name []byte, length int64) (ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := string(name)
	if _, ok := r.byName[key]; ok {
		return 0, errs.Newf(errs.InputValidation, "duplicate sequence name: %s", key)
	}
	id := ID(len(r.names))
	r.names = append(r.names, append([]byte(nil), name...))
	r.lengths = append(r.lengths, length)
	r.byName[key] = id
	return id, nil
}

// Lookup returns the id for name, and whether it was found.
func (r *Registry) Lookup(name []byte) (ID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[string(name)]
	return id, ok
}

// Name returns the registered name for id.
func (r *Registry) Name(id ID) []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.names[id]
}

// Length returns the registered length for id.
func (r *Registry) Length(id ID) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lengths[id]
}

// Len returns the number of registered sequences.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// NameFilter decides whether a sequence name is included in a role
// (target or query), combining prefix-delimiter group rules, an explicit
// prefix, and an explicit name-list file (parse_args.hpp's -R/-T/-Q/-A,
// restored in SPEC_FULL §6.1).
type NameFilter struct {
	delim    string
	prefixes []string
	list     map[string]struct{} // nil means "no list restriction"
}

// NewNameFilter builds a filter. prefixes is the comma-split set of
// acceptable name prefixes (empty means "any"); listFile, if non-empty,
// restricts to exactly the names it contains.
func NewNameFilter(delim string, prefixes []string, listFile string) (*NameFilter, error) {
	f := &NameFilter{delim: delim, prefixes: prefixes}
	if listFile == "" {
		return f, nil
	}
	fh, err := os.Open(listFile)
	if err != nil {
		return nil, errs.New(errs.IO, err)
	}
	defer fh.Close()

	f.list = make(map[string]struct{})
	sc := bufio.NewScanner(fh)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		f.list[line] = struct{}{}
	}
	if err := sc.Err(); err != nil {
		return nil, errs.New(errs.IO, err)
	}
	return f, nil
}

// Group returns the name-space group a sequence belongs to, i.e. the
// portion of the name before the first occurrence of the delimiter
// (spec §6.1 prefix_delim), or the whole name if the delimiter is unset
// or absent.
func (f *NameFilter) Group(name string) string {
	if f.delim == "" {
		return name
	}
	if i := strings.Index(name, f.delim); i >= 0 {
		return name[:i]
	}
	return name
}

// Allowed reports whether name passes the prefix and list restrictions.
func (f *NameFilter) Allowed(name string) bool {
	if f.list != nil {
		if _, ok := f.list[name]; !ok {
			return false
		}
	}
	if len(f.prefixes) == 0 {
		return true
	}
	for _, p := range f.prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// SkipSelfPair reports whether a (query,target) name pair should be
// skipped under skip_prefix/skip_self rules: skip_self requested and
// either identical sequence names or the same name-space group.
func SkipSelfPair(delim string, skipSelf bool, queryName, targetName string) bool {
	if queryName == targetName {
		return skipSelf
	}
	if delim == "" {
		return false
	}
	qi := strings.Index(queryName, delim)
	ti := strings.Index(targetName, delim)
	if qi < 0 || ti < 0 {
		return false
	}
	return skipSelf && queryName[:qi] == targetName[:ti]
}
