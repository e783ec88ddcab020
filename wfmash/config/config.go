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

// Package config holds the recognized configuration (spec §6.1) and its
// validation rules. Values are assembled from, in increasing priority:
// built-in defaults, an optional TOML file, then CLI flags.
package config

import (
	"math"
	"os"
	"strconv"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/pelletier/go-toml/v2"

	"github.com/pangenome/wfmash-go/wfmash/errs"
)

// FilterMode selects the plane-sweep filtering behavior of C6.
type FilterMode uint8

const (
	FilterNone FilterMode = iota
	FilterMap
	FilterOneToOne
)

func (m FilterMode) String() string {
	switch m {
	case FilterNone:
		return "none"
	case FilterOneToOne:
		return "one-to-one"
	default:
		return "map"
	}
}

// Config is the fully resolved, validated set of run parameters.
type Config struct {
	K            int     `toml:"k"`
	SegLength    int64   `toml:"seg_length"`
	BlockLength  int64   `toml:"block_length"`
	MapPctID     float64 `toml:"map_pct_id"`
	SketchSize   int64   `toml:"sketch_size"` // <=0 means auto
	NumMappings  int     `toml:"n"`
	ChainGap     int64   `toml:"chain_gap"`
	MaxMapLength int64   `toml:"max_mapping_length"`
	OverlapThr   float64 `toml:"overlap_threshold"`
	Filter       FilterMode

	HgNumerator float64 `toml:"hg_numerator"`
	ANIDiff     float64 `toml:"ani_diff"`
	ANIDiffConf float64 `toml:"ani_diff_conf"`
	MinHits     int     `toml:"min_hits"` // 0 means auto-derive

	KmerComplexity float64 `toml:"kmer_complexity"`

	Threads     int    `toml:"threads"`
	IndexBySize int64  `toml:"index_by_size"`
	TmpBase     string `toml:"tmp_base"`
	KeepTemp    bool   `toml:"keep_temp"`

	PrefixDelim string   `toml:"prefix_delim"`
	TargetPfx   string   `toml:"target_prefix"`
	QueryPfx    []string `toml:"query_prefix"`
	TargetList  string   `toml:"target_list"`
	QueryList   string   `toml:"query_list"`
	SkipSelf    bool     `toml:"skip_self"`

	LowerTriangular bool `toml:"lower_triangular"`
	NoSplit         bool `toml:"no_split"`
	NoMerge         bool `toml:"no_merge"`
	KeepLowPctID    bool `toml:"keep_low_pct_id"`

	WFAMismatch  int `toml:"wfa_mismatch"`
	WFAGapOpen   int `toml:"wfa_gap_open"`
	WFAGapExtend int `toml:"wfa_gap_extend"`

	SamFormat    bool `toml:"sam_format"`
	EmitMDTag    bool `toml:"emit_md_tag"`
	NoSeqInSam   bool `toml:"no_seq_in_sam"`
	ApproxOnly   bool `toml:"approx_mapping"`
	Sparsity     float64 `toml:"sparsification"`
}

// Default returns the table of defaults from spec §6.1.
func Default() Config {
	return Config{
		K:              15,
		SegLength:      1000,
		MapPctID:       70,
		NumMappings:    1,
		ChainGap:       2000,
		MaxMapLength:   50000,
		OverlapThr:     0.5,
		Filter:         FilterMap,
		HgNumerator:    1.0,
		ANIDiff:        0.0,
		ANIDiffConf:    0.999,
		KmerComplexity: 0,
		Threads:        1,
		IndexBySize:    4 << 30,
		PrefixDelim:    "#",
		WFAMismatch:    2,
		WFAGapOpen:     3,
		WFAGapExtend:   1,
		KeepLowPctID:   true,
		Sparsity:       1.0,
	}
}

// LoadFile layers a TOML config file over d. Missing file is not an error.
func LoadFile(path string, d Config) (Config, error) {
	if path == "" {
		return d, nil
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return d, errs.New(errs.Usage, err)
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		if os.IsNotExist(err) {
			return d, nil
		}
		return d, errs.New(errs.IO, err)
	}
	if err := toml.Unmarshal(data, &d); err != nil {
		return d, errs.New(errs.Usage, err)
	}
	return d, nil
}

// Finalize fills derived fields (block length, sketch size) and validates
// the whole configuration, returning a classified *errs.Error on failure.
func (c *Config) Finalize(alignMode bool) error {
	if c.SegLength < 100 {
		return errs.Newf(errs.InputValidation, "segment length must be >= 100bp, got %d", c.SegLength)
	}
	if alignMode && c.SegLength > 10000 {
		return errs.Newf(errs.InputValidation, "segment length must be <= 10000bp in align mode, got %d", c.SegLength)
	}
	if c.BlockLength == 0 {
		c.BlockLength = 3 * c.SegLength
	}
	if c.MapPctID < 50 {
		return errs.Newf(errs.InputValidation, "map-pct-id must be >= 50, got %g", c.MapPctID)
	}
	if c.SegLength >= c.MaxMapLength {
		return errs.Newf(errs.InputValidation, "segment length must be smaller than max mapping length")
	}
	if c.HgNumerator < 1.0 {
		return errs.Newf(errs.InputValidation, "hg-numerator must be >= 1.0, got %g", c.HgNumerator)
	}
	if c.Threads <= 0 {
		c.Threads = 1
	}
	if c.SketchSize <= 0 {
		md := 1 - c.MapPctID/100
		dens := 0.02 * (1 + (md / 0.05))
		c.SketchSize = int64(dens * float64(c.SegLength-int64(c.K)))
	}
	if c.Sparsity > 1.0 {
		return errs.Newf(errs.InputValidation, "sparsification factor must be <= 1.0, got %g", c.Sparsity)
	}
	return nil
}

// SparsityThreshold returns the uint64 threshold a hash must be below to
// survive sparsification, per Open Question #2: factor 1.0 folds to the
// full uint64 range rather than overflowing.
func (c *Config) SparsityThreshold() uint64 {
	if c.Sparsity >= 1.0 {
		return math.MaxUint64
	}
	return uint64(c.Sparsity * float64(math.MaxUint64))
}

// ParseSize parses a handy size literal like "4G", "500k", "1.5m" into an
// integer, mirroring parse_args.hpp's handy_parameter.
func ParseSize(v string) (int64, error) {
	if v == "" {
		return 0, errs.Newf(errs.Usage, "empty size value")
	}
	mult := int64(1)
	suffix := v[len(v)-1]
	numPart := v
	switch suffix {
	case 'k', 'K':
		mult = 1e3
		numPart = v[:len(v)-1]
	case 'm', 'M':
		mult = 1e6
		numPart = v[:len(v)-1]
	case 'g', 'G':
		mult = 1e9
		numPart = v[:len(v)-1]
	}
	f, err := strconv.ParseFloat(numPart, 64)
	if err != nil || f < 0 {
		return 0, errs.Newf(errs.Usage, "invalid size value: %q", v)
	}
	return int64(f * float64(mult)), nil
}

// SplitPrefixes splits a comma-separated prefix list, trimming blanks.
func SplitPrefixes(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
