package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pangenome/wfmash-go/wfmash/config"
	"github.com/pangenome/wfmash-go/wfmash/diag"
	"github.com/pangenome/wfmash-go/wfmash/record"
	"github.com/pangenome/wfmash-go/wfmash/seqid"
)

func TestSplitQueryNoSplitReturnsOneSegment(t *testing.T) {
	segs := splitQuery(5000, 1000, true)
	if len(segs) != 1 || segs[0] != [2]int{0, 5000} {
		t.Fatalf("expected a single whole-sequence segment, got %v", segs)
	}
}

func TestSplitQueryShorterThanSegmentReturnsOneSegment(t *testing.T) {
	segs := splitQuery(500, 1000, false)
	if len(segs) != 1 || segs[0] != [2]int{0, 500} {
		t.Fatalf("expected a single segment for a short query, got %v", segs)
	}
}

func TestSplitQueryTilesEvenly(t *testing.T) {
	segs := splitQuery(2500, 1000, false)
	want := [][2]int{{0, 1000}, {1000, 2000}, {2000, 2500}}
	if len(segs) != len(want) {
		t.Fatalf("expected %d segments, got %d: %v", len(want), len(segs), segs)
	}
	for i, w := range want {
		if segs[i] != w {
			t.Fatalf("segment %d: expected %v, got %v", i, w, segs[i])
		}
	}
}

func TestSplitQueryEmptyReturnsNil(t *testing.T) {
	if segs := splitQuery(0, 1000, false); segs != nil {
		t.Fatalf("expected nil segments for a zero-length query, got %v", segs)
	}
}

func newTestDriver(t *testing.T, indexBySize int64) *Driver {
	t.Helper()
	cfg := config.Default()
	cfg.IndexBySize = indexBySize
	cfg.Threads = 2
	if err := cfg.Finalize(false); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	allAllow, err := seqid.NewNameFilter("", nil, "")
	if err != nil {
		t.Fatalf("NewNameFilter: %v", err)
	}
	return New(cfg, allAllow, allAllow, diag.New(diag.Options{}), false)
}

func writeFASTA(t *testing.T, dir, name string, records map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	var buf []byte
	for id, seq := range records {
		buf = append(buf, []byte(">"+id+"\n"+seq+"\n")...)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func repeatACGT(n int) string {
	unit := "ACGT"
	out := make([]byte, n)
	for i := range out {
		out[i] = unit[i%len(unit)]
	}
	return string(out)
}

func TestBatchTargetsRespectsIndexBySize(t *testing.T) {
	dir := t.TempDir()
	path := writeFASTA(t, dir, "targets.fa", map[string]string{
		"t1": repeatACGT(100),
		"t2": repeatACGT(100),
		"t3": repeatACGT(100),
	})
	d := newTestDriver(t, 150)
	if err := d.LoadSequences([]string{path}, nil); err != nil {
		t.Fatalf("LoadSequences: %v", err)
	}

	allAllow, _ := seqid.NewNameFilter("", nil, "")
	ids := d.eligibleIDs(allAllow)
	if len(ids) != 3 {
		t.Fatalf("expected 3 registered sequences, got %d", len(ids))
	}

	batches := d.batchTargets(ids)
	if len(batches) < 2 {
		t.Fatalf("expected index_by_size=150 to force at least 2 batches for 3x100bp targets, got %d", len(batches))
	}
	var total int
	for _, b := range batches {
		total += len(b)
	}
	if total != 3 {
		t.Fatalf("expected every target to land in exactly one batch, got %d total placements", total)
	}
}

func TestLoadSequencesDeduplicatesSharedPath(t *testing.T) {
	dir := t.TempDir()
	path := writeFASTA(t, dir, "both.fa", map[string]string{
		"s1": "ACGTACGTACGTACGTACGT",
	})

	d := newTestDriver(t, int64(4)<<30)
	if err := d.LoadSequences([]string{path}, []string{path}); err != nil {
		t.Fatalf("LoadSequences: %v", err)
	}
	if d.reg.Len() != 1 {
		t.Fatalf("expected the shared path to be loaded exactly once, got %d registered sequences", d.reg.Len())
	}
}

func TestRunFromPAFRejectsUnknownQueryName(t *testing.T) {
	dir := t.TempDir()
	fa := writeFASTA(t, dir, "genome.fa", map[string]string{
		"ref": "ACGTACGTACGTACGTACGTACGTACGT",
	})

	d := newTestDriver(t, int64(4)<<30)
	if err := d.LoadSequences([]string{fa}, []string{fa}); err != nil {
		t.Fatalf("LoadSequences: %v", err)
	}

	pafPath := filepath.Join(dir, "in.paf")
	line := "missing\t28\t0\t10\t+\tref\t28\t0\t10\t10\t10\t60\n"
	if err := os.WriteFile(pafPath, []byte(line), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var buf discardWriter
	w := record.NewWriter(&buf, record.Options{Format: record.PAF})
	if err := d.RunFromPAF(pafPath, w); err == nil {
		t.Fatalf("expected an error for a PAF row naming an unregistered query")
	}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestBuildFullIndexRejectsOversizedCorpus(t *testing.T) {
	dir := t.TempDir()
	path := writeFASTA(t, dir, "targets.fa", map[string]string{
		"t1": repeatACGT(500),
	})
	d := newTestDriver(t, 100)
	if err := d.LoadSequences([]string{path}, nil); err != nil {
		t.Fatalf("LoadSequences: %v", err)
	}
	if _, err := d.BuildFullIndex(); err == nil {
		t.Fatalf("expected an error when the target corpus exceeds index_by_size")
	}
}

func TestPersistedIndexRoundTripMapsAgainstRehydratedTargets(t *testing.T) {
	dir := t.TempDir()
	targetPath := writeFASTA(t, dir, "targets.fa", map[string]string{
		"chr1": repeatACGT(3000),
	})

	builder := newTestDriver(t, int64(4)<<30)
	if err := builder.LoadSequences([]string{targetPath}, nil); err != nil {
		t.Fatalf("LoadSequences: %v", err)
	}
	idx, err := builder.BuildFullIndex()
	if err != nil {
		t.Fatalf("BuildFullIndex: %v", err)
	}
	indexPath := filepath.Join(dir, "index.wfmx")
	if err := idx.Save(indexPath, builder.Registry()); err != nil {
		t.Fatalf("Save: %v", err)
	}

	queryPath := writeFASTA(t, dir, "queries.fa", map[string]string{
		"chrQ": repeatACGT(3000),
	})

	mapper := newTestDriver(t, int64(4)<<30)
	loadedIdx, err := mapper.LoadIndexedTargets(indexPath, targetPath)
	if err != nil {
		t.Fatalf("LoadIndexedTargets: %v", err)
	}
	if err := mapper.LoadQueries([]string{queryPath}); err != nil {
		t.Fatalf("LoadQueries: %v", err)
	}
	mapper.Freeze()

	var buf discardWriter
	w := record.NewWriter(&buf, record.Options{Format: record.PAF})
	if err := mapper.RunWithIndex(loadedIdx, w, false); err != nil {
		t.Fatalf("RunWithIndex: %v", err)
	}
}
