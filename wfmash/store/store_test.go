package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pangenome/wfmash-go/wfmash/seqid"
)

func writeFasta(t *testing.T, dir string, records map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, "seqs.fa")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	for name, seq := range records {
		if _, err := f.WriteString(">" + name + "\n" + seq + "\n"); err != nil {
			t.Fatal(err)
		}
	}
	return path
}

func TestLoadFASTARegistersAndUppercases(t *testing.T) {
	dir := t.TempDir()
	path := writeFasta(t, dir, map[string]string{"chr1": "acgtACGT"})

	reg := seqid.New(1)
	s := New(reg)
	if err := s.LoadFASTA(path); err != nil {
		t.Fatalf("LoadFASTA: %v", err)
	}

	id, ok := reg.Lookup([]byte("chr1"))
	if !ok {
		t.Fatal("expected chr1 to be registered")
	}
	got := string(s.Seq(id))
	want := "ACGTACGT"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestLoadFASTARejectsMostlyAmbiguousSequence(t *testing.T) {
	dir := t.TempDir()
	path := writeFasta(t, dir, map[string]string{"noisy": "NNNNNNNNNNACGT"})

	reg := seqid.New(1)
	s := New(reg)
	if err := s.LoadFASTA(path); err == nil {
		t.Fatal("expected an error for a mostly-ambiguous sequence")
	}
}

func TestHydrateFASTAAttachesBytesToPreRegisteredNames(t *testing.T) {
	dir := t.TempDir()
	path := writeFasta(t, dir, map[string]string{"chr1": "ACGTACGT"})

	reg := seqid.New(1)
	id, err := reg.Register([]byte("chr1"), 8)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	s := New(reg)
	if err := s.HydrateFASTA(path); err != nil {
		t.Fatalf("HydrateFASTA: %v", err)
	}
	if got := string(s.Seq(id)); got != "ACGTACGT" {
		t.Fatalf("expected ACGTACGT, got %q", got)
	}
	if reg.Len() != 1 {
		t.Fatalf("expected HydrateFASTA not to register a new id, got %d registered", reg.Len())
	}
}

func TestHydrateFASTARejectsUnregisteredName(t *testing.T) {
	dir := t.TempDir()
	path := writeFasta(t, dir, map[string]string{"unknown": "ACGT"})

	reg := seqid.New(1)
	s := New(reg)
	if err := s.HydrateFASTA(path); err == nil {
		t.Fatal("expected an error hydrating a name the registry has never seen")
	}
}

func TestSubSeqClampsToBounds(t *testing.T) {
	dir := t.TempDir()
	path := writeFasta(t, dir, map[string]string{"chr1": "ACGTACGTAC"})

	reg := seqid.New(1)
	s := New(reg)
	if err := s.LoadFASTA(path); err != nil {
		t.Fatalf("LoadFASTA: %v", err)
	}
	id, _ := reg.Lookup([]byte("chr1"))

	if got := string(s.SubSeq(id, 2, 6)); got != "GTAC" {
		t.Fatalf("expected GTAC, got %q", got)
	}
	if got := string(s.SubSeq(id, 8, 100)); got != "AC" {
		t.Fatalf("expected clamped AC, got %q", got)
	}
	if got := s.SubSeq(id, 20, 30); got != nil {
		t.Fatalf("expected nil for an out-of-range window, got %q", got)
	}
}

func TestHandleRevCompReversesAndComplements(t *testing.T) {
	dir := t.TempDir()
	path := writeFasta(t, dir, map[string]string{"chr1": "ACGTT"})

	reg := seqid.New(1)
	s := New(reg)
	if err := s.LoadFASTA(path); err != nil {
		t.Fatalf("LoadFASTA: %v", err)
	}
	id, _ := reg.Lookup([]byte("chr1"))
	s.Freeze()

	h := NewHandle(s)
	got, err := h.RevComp(id, 0, 5)
	if err != nil {
		t.Fatalf("RevComp: %v", err)
	}
	want := "AACGT"
	if string(got) != want {
		t.Fatalf("expected %q, got %q", want, string(got))
	}
}
