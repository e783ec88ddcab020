package pafio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pangenome/wfmash-go/wfmash/candidate"
	"github.com/pangenome/wfmash-go/wfmash/errs"
)

func writePAF(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "in.paf")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadAllParsesCoreColumns(t *testing.T) {
	dir := t.TempDir()
	line := "q1\t5000\t100\t1100\t+\tt1\t6000\t200\t1200\t950\t1000\t60\tgi:f:0.9500\n"
	path := writePAF(t, dir, line)

	records, err := ReadAll(path, 1)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	r := records[0]
	if r.QueryName != "q1" || r.TargetName != "t1" || r.Strand != candidate.Forward {
		t.Fatalf("unexpected record: %+v", r)
	}
	if r.QStart != 100 || r.QEnd != 1100 || r.TStart != 200 || r.TEnd != 1200 {
		t.Fatalf("unexpected coordinates: %+v", r)
	}
}

func TestReadAllRejectsMalformedRow(t *testing.T) {
	dir := t.TempDir()
	path := writePAF(t, dir, "q1\t5000\t100\t1100\t+\tt1\n")

	_, err := ReadAll(path, 1)
	if err == nil {
		t.Fatal("expected an error for a row with fewer than 12 columns")
	}
	if errs.KindOf(err) != errs.InputValidation {
		t.Fatalf("expected InputValidation, got %v", errs.KindOf(err))
	}
}

func TestReadAllRejectsBadStrandColumn(t *testing.T) {
	dir := t.TempDir()
	path := writePAF(t, dir, "q1\t5000\t100\t1100\t?\tt1\t6000\t200\t1200\t950\t1000\t60\n")

	_, err := ReadAll(path, 1)
	if err == nil {
		t.Fatal("expected an error for an invalid strand column")
	}
}
