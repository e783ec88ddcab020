package seqid

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRegisterAssignsStableIDs(t *testing.T) {
	r := New(0)
	id0, err := r.Register([]byte("chr1"), 1000)
	if err != nil {
		t.Fatal(err)
	}
	id1, err := r.Register([]byte("chr2"), 2000)
	if err != nil {
		t.Fatal(err)
	}
	if id0 != 0 || id1 != 1 {
		t.Fatalf("expected ids 0,1 got %d,%d", id0, id1)
	}
	if r.Length(id1) != 2000 {
		t.Fatalf("expected length 2000, got %d", r.Length(id1))
	}
}

func TestRegisterRejectsDuplicateNames(t *testing.T) {
	r := New(0)
	if _, err := r.Register([]byte("chr1"), 10); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Register([]byte("chr1"), 20); err == nil {
		t.Fatalf("expected error on duplicate name")
	}
}

func TestNameFilterPrefixAndList(t *testing.T) {
	dir := t.TempDir()
	listFile := filepath.Join(dir, "names.txt")
	if err := os.WriteFile(listFile, []byte("a#1\nb#2\n"), 0644); err != nil {
		t.Fatal(err)
	}

	f, err := NewNameFilter("#", []string{"a"}, listFile)
	if err != nil {
		t.Fatal(err)
	}
	if !f.Allowed("a#1") {
		t.Errorf("expected a#1 allowed")
	}
	if f.Allowed("b#2") {
		t.Errorf("expected b#2 rejected (fails prefix filter)")
	}
	if f.Allowed("a#3") {
		t.Errorf("expected a#3 rejected (not in list)")
	}
}

func TestGroupUsesDelimiter(t *testing.T) {
	f, _ := NewNameFilter("#", nil, "")
	if g := f.Group("sample1#chr1"); g != "sample1" {
		t.Errorf("expected group sample1, got %s", g)
	}
	if g := f.Group("nodlimiter"); g != "nodlimiter" {
		t.Errorf("expected whole name, got %s", g)
	}
}

func TestSkipSelfPair(t *testing.T) {
	if !SkipSelfPair("#", true, "s1#c1", "s1#c2") {
		t.Errorf("expected same-group pair skipped")
	}
	if SkipSelfPair("#", true, "s1#c1", "s2#c2") {
		t.Errorf("expected different-group pair not skipped")
	}
	if !SkipSelfPair("#", true, "x", "x") {
		t.Errorf("expected identical names skipped when skipSelf")
	}
	if SkipSelfPair("#", false, "x", "x") {
		t.Errorf("expected identical names kept when !skipSelf")
	}
}
