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

// Package pipeline is the C9 driver: it owns the SequenceStore and
// Registry, builds the batched MinmerIndex (C1-C3), fans query
// segments out across a bounded worker pool for L1/L2 discovery
// (C4-C5), chains and filters each query's accepted mappings (C6),
// and, in align mode, runs C8's wflign orchestrator before handing
// everything to a single RecordWriter goroutine.
//
// The concurrency shape is the teacher's token-channel + WaitGroup
// worker pool (cmd/map.go) generalized to two back-to-back stages,
// mirroring computeAlignments.hpp's reader/worker/writer role split:
// a discovery stage whose workers append into a mutex-guarded
// per-query map (instead of computeAlignments.hpp's atomic_queue of
// seq_record_t), followed by a finalize stage whose workers
// feed the single writer goroutine that owns the RecordWriter.
package pipeline

import (
	"os"
	"sort"
	"sync"
	"time"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/pangenome/wfmash-go/wfmash/align"
	"github.com/pangenome/wfmash-go/wfmash/candidate"
	"github.com/pangenome/wfmash-go/wfmash/config"
	"github.com/pangenome/wfmash-go/wfmash/diag"
	"github.com/pangenome/wfmash-go/wfmash/errs"
	"github.com/pangenome/wfmash-go/wfmash/filter"
	"github.com/pangenome/wfmash-go/wfmash/homology"
	"github.com/pangenome/wfmash-go/wfmash/logutil"
	"github.com/pangenome/wfmash-go/wfmash/minmerindex"
	"github.com/pangenome/wfmash-go/wfmash/pafio"
	"github.com/pangenome/wfmash-go/wfmash/record"
	"github.com/pangenome/wfmash-go/wfmash/seqid"
	"github.com/pangenome/wfmash-go/wfmash/sketch"
	"github.com/pangenome/wfmash-go/wfmash/store"
	"github.com/pangenome/wfmash-go/wfmash/wflign"
)

// Driver coordinates one run: a shared SequenceStore/Registry, name
// filters for each role, and the parameters C4-C8 need.
type Driver struct {
	cfg     config.Config
	reg     *seqid.Registry
	store   *store.Store
	tFilter *seqid.NameFilter
	qFilter *seqid.NameFilter
	diagRec *diag.Recorder
	density float64
	verbose bool
}

// New builds a Driver. tFilter/qFilter select which registered names
// act as targets/queries (spec §6.1's prefix/list restrictions);
// diagRec may be a disabled Recorder (diag.New(diag.Options{})) if
// diagnostics are off.
func New(cfg config.Config, tFilter, qFilter *seqid.NameFilter, diagRec *diag.Recorder, verbose bool) *Driver {
	reg := seqid.New(1024)
	return &Driver{
		cfg:     cfg,
		reg:     reg,
		store:   store.New(reg),
		tFilter: tFilter,
		qFilter: qFilter,
		diagRec: diagRec,
		density: sketch.DensityForSketchSize(int(cfg.SketchSize), int(cfg.SegLength)-cfg.K),
		verbose: verbose,
	}
}

// Registry exposes the shared id<->name table, e.g. for a -i re-alignment
// driver that must resolve pafio.Record names back to seqid.IDs.
func (d *Driver) Registry() *seqid.Registry { return d.reg }

// Store exposes the shared sequence byte cache.
func (d *Driver) Store() *store.Store { return d.store }

// LoadSequences loads every (deduplicated) path in targetPaths and
// queryPaths into the shared store and freezes it — self-mapping runs
// pass the same path in both lists without triggering a duplicate-name
// registration error.
func (d *Driver) LoadSequences(targetPaths, queryPaths []string) error {
	seen := make(map[string]bool, len(targetPaths)+len(queryPaths))
	for _, p := range append(append([]string{}, targetPaths...), queryPaths...) {
		if seen[p] {
			continue
		}
		seen[p] = true
		if err := d.store.LoadFASTA(p); err != nil {
			return err
		}
	}
	d.store.Freeze()
	return nil
}

// LoadIndexedTargets hydrates a previously persisted MinmerIndex (spec
// §6.3) against targetFASTA's bytes: the index file already registered
// target names/lengths into the Registry, so target sequence content
// is attached via store.HydrateFASTA rather than store.LoadFASTA,
// which would reject the names as duplicates. Call LoadQueries and
// Freeze afterward, then run the query stage via RunWithIndex.
func (d *Driver) LoadIndexedTargets(indexPath, targetFASTA string) (*minmerindex.Index, error) {
	idx, err := minmerindex.Load(indexPath, d.reg, d.cfg.K, d.density)
	if err != nil {
		return nil, err
	}
	if err := d.store.HydrateFASTA(targetFASTA); err != nil {
		return nil, err
	}
	return idx, nil
}

// LoadQueries registers and caches query sequences without touching
// targets, the complement of LoadIndexedTargets for the persisted-index
// workflow. Call Freeze once every target and query is loaded.
func (d *Driver) LoadQueries(queryPaths []string) error {
	for _, p := range queryPaths {
		if err := d.store.LoadFASTA(p); err != nil {
			return err
		}
	}
	return nil
}

// Freeze finalizes the shared store once every target/query has been
// loaded or hydrated, for callers driving LoadIndexedTargets/LoadQueries
// directly instead of LoadSequences.
func (d *Driver) Freeze() { d.store.Freeze() }

// RunWithIndex executes C4-C8 and the write stage against a
// previously built or persisted MinmerIndex, skipping C1-C3's
// batched-build step entirely — the "index once, map many times"
// workflow spec §6.3's on-disk format exists to support.
func (d *Driver) RunWithIndex(idx *minmerindex.Index, w *record.Writer, alignMode bool) error {
	queryIDs := d.eligibleIDs(d.qFilter)
	perQuery := make(map[seqid.ID][]*homology.Mapping)
	var mu sync.Mutex

	numWorkers := d.cfg.Threads
	if numWorkers < 1 {
		numWorkers = 1
	}

	tokens := make(chan int, numWorkers)
	var wg sync.WaitGroup
	var firstErr error
	var errOnce sync.Once

	for _, qid := range queryIDs {
		tokens <- 1
		wg.Add(1)
		go func(qid seqid.ID) {
			defer func() {
				<-tokens
				wg.Done()
			}()
			mappings, err := d.discoverForQuery(qid, nil, idx)
			if err != nil {
				errOnce.Do(func() { firstErr = err })
				return
			}
			if len(mappings) == 0 {
				return
			}
			mu.Lock()
			perQuery[qid] = append(perQuery[qid], mappings...)
			mu.Unlock()
		}(qid)
	}
	wg.Wait()
	close(tokens)
	if firstErr != nil {
		return firstErr
	}

	return d.finalizeAndWrite(perQuery, queryIDs, w, alignMode)
}

func (d *Driver) eligibleIDs(nf *seqid.NameFilter) []seqid.ID {
	var ids []seqid.ID
	n := d.reg.Len()
	for i := 0; i < n; i++ {
		id := seqid.ID(i)
		if nf.Allowed(string(d.reg.Name(id))) {
			ids = append(ids, id)
		}
	}
	return ids
}

// batchTargets groups target ids into index_by_size-bounded batches, per spec
// §3's "MinmerIndex is built in batches" lifecycle.
func (d *Driver) batchTargets(targetIDs []seqid.ID) [][]seqid.ID {
	var batches [][]seqid.ID
	var cur []seqid.ID
	var curSize int64
	limit := d.cfg.IndexBySize
	for _, id := range targetIDs {
		length := d.reg.Length(id)
		if curSize > 0 && curSize+length > limit {
			batches = append(batches, cur)
			cur = nil
			curSize = 0
		}
		cur = append(cur, id)
		curSize += length
	}
	if len(cur) > 0 {
		batches = append(batches, cur)
	}
	return batches
}

// buildIndex sketches every target in ids and freezes a fresh
// minmerindex.Index for this batch, per spec §4.2.
func (d *Driver) buildIndex(ids []seqid.ID) (*minmerindex.Index, error) {
	var totalBases int64
	for _, id := range ids {
		totalBases += d.reg.Length(id)
	}
	freqCap := minmerindex.FreqCap(totalBases, d.density, d.cfg.HgNumerator, d.cfg.K)
	idx := minmerindex.New(minmerindex.Config{K: d.cfg.K, Density: d.density, FreqCap: freqCap})

	sOpts := sketch.Options{K: d.cfg.K, Density: d.density, Complexity: d.cfg.KmerComplexity}
	for _, id := range ids {
		seq := d.store.Seq(id)
		for _, m := range sketch.Sketch(seq, 0, len(seq), sOpts) {
			strand := uint8(0)
			if m.Strand == sketch.Reverse {
				strand = 1
			}
			if err := idx.Insert(id, m.Hash, uint32(m.Pos), strand); err != nil {
				return nil, err
			}
		}
	}
	idx.Freeze()
	return idx, nil
}

// BuildFullIndex sketches every eligible target into a single
// MinmerIndex, ignoring the index_by_size batching Run applies
// internally — the shape the `index` subcommand needs to persist one
// standalone file (spec §6.3). Returns InputValidation if the combined
// target size exceeds IndexBySize, since a persisted index is a single
// file rather than the batch sequence Run streams through.
func (d *Driver) BuildFullIndex() (*minmerindex.Index, error) {
	ids := d.eligibleIDs(d.tFilter)
	var totalBases int64
	for _, id := range ids {
		totalBases += d.reg.Length(id)
	}
	if totalBases > d.cfg.IndexBySize {
		return nil, errs.Newf(errs.InputValidation,
			"combined target size %d exceeds index_by_size %d; a persisted index must fit in one batch",
			totalBases, d.cfg.IndexBySize)
	}
	return d.buildIndex(ids)
}

// splitQuery returns the [start,end) segments a query of length qLen is
// tiled into: a single whole-sequence segment when NoSplit is set or
// the sequence is already shorter than one segment, else consecutive
// segLength-sized tiles (spec §6.1's no_split flag).
func splitQuery(qLen int, segLength int, noSplit bool) [][2]int {
	if qLen <= 0 {
		return nil
	}
	if noSplit || qLen <= segLength {
		return [][2]int{{0, qLen}}
	}
	var segs [][2]int
	for start := 0; start < qLen; start += segLength {
		end := start + segLength
		if end > qLen {
			end = qLen
		}
		segs = append(segs, [2]int{start, end})
		if end == qLen {
			break
		}
	}
	return segs
}

// Run executes the full build+map (+align) run and writes every
// accepted record through w. The registered sequences eligible under
// qFilter act as queries; those eligible under tFilter act as targets. alignMode selects C7/C8 base-level alignment
// in addition to C4-C6 approximate mapping.
func (d *Driver) Run(w *record.Writer, alignMode bool) error {
	targetIDs := d.eligibleIDs(d.tFilter)
	queryIDs := d.eligibleIDs(d.qFilter)
	batches := d.batchTargets(targetIDs)

	// per-query accumulated mappings across every batch, guarded by mu
	perQuery := make(map[seqid.ID][]*homology.Mapping)
	var mu sync.Mutex

	numWorkers := d.cfg.Threads
	if numWorkers < 1 {
		numWorkers = 1
	}

	var pbs *mpb.Progress
	var bar *mpb.Bar
	if d.verbose {
		pbs = mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
		bar = pbs.AddBar(int64(len(batches)*len(queryIDs)),
			mpb.PrependDecorators(
				decor.Name("mapping: ", decor.WC{W: len("mapping: "), C: decor.DindentRight}),
				decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
			),
			mpb.AppendDecorators(
				decor.Name("ETA: ", decor.WC{W: len("ETA: ")}),
				decor.EwmaETA(decor.ET_STYLE_GO, 3),
				decor.OnComplete(decor.Name(""), ". done"),
			),
		)
	}

	for _, batch := range batches {
		idx, err := d.buildIndex(batch)
		if err != nil {
			return err
		}

		tokens := make(chan int, numWorkers)
		var wg sync.WaitGroup
		var firstErr error
		var errOnce sync.Once

		for _, qid := range queryIDs {
			tokens <- 1
			wg.Add(1)
			go func(qid seqid.ID) {
				t0 := time.Now()
				defer func() {
					<-tokens
					wg.Done()
					if bar != nil {
						bar.EwmaIncrBy(1, time.Since(t0))
					}
				}()
				mappings, err := d.discoverForQuery(qid, batch, idx)
				if err != nil {
					errOnce.Do(func() { firstErr = err })
					return
				}
				if len(mappings) == 0 {
					return
				}
				mu.Lock()
				perQuery[qid] = append(perQuery[qid], mappings...)
				mu.Unlock()
			}(qid)
		}
		wg.Wait()
		close(tokens)
		if firstErr != nil {
			return firstErr
		}
	}
	if pbs != nil {
		pbs.Wait()
	}

	return d.finalizeAndWrite(perQuery, queryIDs, w, alignMode)
}

// discoverForQuery runs C4 (candidate.Find) then C5 (homology.Refine)
// for every segment of query qid against every target in batch.
func (d *Driver) discoverForQuery(qid seqid.ID, batch []seqid.ID, idx *minmerindex.Index) ([]*homology.Mapping, error) {
	qSeq := d.store.Seq(qid)
	qName := string(d.reg.Name(qid))
	segs := splitQuery(len(qSeq), int(d.cfg.SegLength), d.cfg.NoSplit)

	candOpts := candidate.Options{
		K:           d.cfg.K,
		Density:     d.density,
		Complexity:  d.cfg.KmerComplexity,
		SegLength:   int(d.cfg.SegLength),
		PStar:       d.cfg.MapPctID / 100,
		ANIDiff:     d.cfg.ANIDiff,
		ANIDiffConf: d.cfg.ANIDiffConf,
	}
	if d.cfg.MinHits > 0 {
		candOpts.MinHitsOverride = d.cfg.MinHits
	}
	homOpts := homology.Options{
		K:            d.cfg.K,
		Density:      d.density,
		Complexity:   d.cfg.KmerComplexity,
		PStar:        d.cfg.MapPctID / 100,
		ANIDiff:      d.cfg.ANIDiff,
		KeepLowPctID: d.cfg.KeepLowPctID,
	}

	var out []*homology.Mapping
	for _, seg := range segs {
		qs := candidate.QuerySegment{Query: qid, Start: seg[0], End: seg[1]}
		cands := candidate.Find(qs, qSeq, idx, candOpts)
		for _, c := range cands {
			tName := string(d.reg.Name(c.Target))
			if seqid.SkipSelfPair(d.cfg.PrefixDelim, d.cfg.SkipSelf, qName, tName) {
				continue
			}
			tSeq := d.store.Seq(c.Target)
			m, ok := homology.Refine(c, qSeq, tSeq, homOpts)
			if !ok {
				continue
			}
			out = append(out, m)
		}
	}
	return out, nil
}

// finalizeAndWrite chains and filters each query's accumulated
// mappings (C6), optionally runs C7/C8 alignment, and writes every
// surviving record through w from a single writer goroutine.
func (d *Driver) finalizeAndWrite(perQuery map[seqid.ID][]*homology.Mapping, queryIDs []seqid.ID, w *record.Writer, alignMode bool) error {
	resultCh := make(chan func() error, 256)
	var writerWG sync.WaitGroup
	writerWG.Add(1)
	var writeErr error
	go func() {
		defer writerWG.Done()
		for emit := range resultCh {
			if err := emit(); err != nil {
				writeErr = err
			}
		}
	}()

	numWorkers := d.cfg.Threads
	if numWorkers < 1 {
		numWorkers = 1
	}
	tokens := make(chan int, numWorkers)
	var wg sync.WaitGroup

	chainOpts := homology.ChainOptions{ChainGap: float64(d.cfg.ChainGap), MergeMappings: !d.cfg.NoMerge}
	filterOpts := filter.Options{
		Mode:                   d.cfg.Filter,
		OverlapThreshold:       d.cfg.OverlapThr,
		ChainGap:               int(d.cfg.ChainGap),
		FilterLengthMismatches: true,
	}
	wflignOpts := wflign.DefaultOptions(int(d.cfg.SegLength))
	wflignOpts.MinIdentity = d.cfg.MapPctID / 100
	wflignOpts.EndToEnd = align.Penalties{
		Mismatch:  uint32(d.cfg.WFAMismatch),
		GapOpen:   uint32(d.cfg.WFAGapOpen),
		GapExtend: uint32(d.cfg.WFAGapExtend),
	}

	for _, qid := range queryIDs {
		mappings := perQuery[qid]
		if len(mappings) == 0 {
			continue
		}
		tokens <- 1
		wg.Add(1)
		go func(qid seqid.ID, mappings []*homology.Mapping) {
			defer func() {
				<-tokens
				wg.Done()
			}()
			handle := store.NewHandle(d.store)
			d.finalizeQuery(handle, qid, mappings, chainOpts, filterOpts, wflignOpts, alignMode, w, resultCh)
		}(qid, mappings)
	}
	wg.Wait()
	close(tokens)
	close(resultCh)
	writerWG.Wait()
	return writeErr
}

// finalizeQuery chains+filters one query's mappings (C6) and enqueues a
// write closure per surviving mapping (and, in align mode, per
// alignment/aborted-alignment outcome) onto resultCh, for the single
// writer goroutine in finalizeAndWrite to run.
func (d *Driver) finalizeQuery(handle *store.Handle, qid seqid.ID, mappings []*homology.Mapping, chainOpts homology.ChainOptions, fopts filter.Options, wflignOpts wflign.Options, alignMode bool, w *record.Writer, resultCh chan<- func() error) {
	chained := homology.GroupAndChain(mappings, chainOpts)
	accepted := filter.Filter(chained, fopts)

	sort.Slice(accepted, func(i, j int) bool { return accepted[i].QStart < accepted[j].QStart })

	qName := string(d.reg.Name(qid))
	qLen := int(d.reg.Length(qid))
	qSeq := handle.Seq(qid)

	for _, m := range accepted {
		m := m
		tName := string(d.reg.Name(m.Target))
		tLen := int(d.reg.Length(m.Target))

		if !alignMode {
			var samSeq []byte
			if m.Strand == candidate.Reverse {
				if rc, err := handle.RevComp(qid, m.QStart, m.QEnd); err == nil {
					samSeq = append([]byte(nil), rc...)
				}
			}
			resultCh <- func() error {
				if d.diagRec != nil {
					d.diagRec.Record(m.EstIdentity)
				}
				return w.WriteMapping(qName, qLen, tName, tLen, m, m.Jaccard, samSeq)
			}
			continue
		}

		tSeq := handle.Seq(m.Target)
		aln := wflign.Orchestrate(m, qSeq, tSeq, wflignOpts)

		var samSeq []byte
		if aln.State != wflign.Failed && m.Strand == candidate.Reverse {
			if rc, err := handle.RevComp(qid, aln.QStart, aln.QEnd); err == nil {
				samSeq = append([]byte(nil), rc...)
			}
		}

		resultCh <- func() error {
			if d.diagRec != nil {
				d.diagRec.Record(aln.Identity)
			}
			if aln.State == wflign.Failed {
				return w.WriteAbortedMapping(qName, qLen, tName, tLen, m, m.Jaccard)
			}
			return w.WriteAlignment(qName, qLen, tName, tLen, m, aln, m.Jaccard, samSeq)
		}
	}
}

// RunFromPAF implements spec §6.1's -i/--input re-alignment path: it
// bypasses C1-C6 entirely, resolving a prior run's PAF rows straight
// into Mappings via the registry, and feeds them to the same
// finalize/align/write logic as Run's align-mode Stage B. The resolved
// mappings go through the same GroupAndChain and filter.Filter steps as
// discovered ones, so adjacent rows can be chained and merged again.
func (d *Driver) RunFromPAF(path string, w *record.Writer) error {
	rows, err := pafio.ReadAll(path, d.cfg.Threads)
	if err != nil {
		return err
	}
	logutil.Log.Infof("re-aligning %d PAF rows from %s", len(rows), path)

	perQuery := make(map[seqid.ID][]*homology.Mapping)
	for _, row := range rows {
		qid, ok := d.reg.Lookup([]byte(row.QueryName))
		if !ok {
			return errs.Newf(errs.InputValidation, "unknown query sequence in PAF: %s", row.QueryName)
		}
		tid, ok := d.reg.Lookup([]byte(row.TargetName))
		if !ok {
			return errs.Newf(errs.InputValidation, "unknown target sequence in PAF: %s", row.TargetName)
		}
		m := &homology.Mapping{
			Query:       qid,
			QStart:      row.QStart,
			QEnd:        row.QEnd,
			Target:      tid,
			TStart:      row.TStart,
			TEnd:        row.TEnd,
			Strand:      row.Strand,
			BlockLength: row.QEnd - row.QStart,
		}
		perQuery[qid] = append(perQuery[qid], m)
	}

	var queryIDs []seqid.ID
	for qid := range perQuery {
		queryIDs = append(queryIDs, qid)
	}

	return d.finalizeAndWrite(perQuery, queryIDs, w, true)
}
