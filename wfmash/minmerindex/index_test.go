package minmerindex

import (
	"bytes"
	"testing"

	"github.com/pangenome/wfmash-go/wfmash/errs"
	"github.com/pangenome/wfmash-go/wfmash/seqid"
)

func buildSmallIndex(t *testing.T) (*Index, *seqid.Registry) {
	t.Helper()
	reg := seqid.New(2)
	id0, _ := reg.Register([]byte("ref1"), 1000)
	id1, _ := reg.Register([]byte("ref2"), 2000)

	idx := New(Config{K: 15, Density: 0.1, FreqCap: 10})
	if err := idx.Insert(id0, 111, 5, 0); err != nil {
		t.Fatal(err)
	}
	if err := idx.Insert(id0, 111, 3, 0); err != nil {
		t.Fatal(err)
	}
	if err := idx.Insert(id1, 111, 50, 1); err != nil {
		t.Fatal(err)
	}
	if err := idx.Insert(id1, 222, 9, 0); err != nil {
		t.Fatal(err)
	}
	idx.Freeze()
	return idx, reg
}

func TestFreezeSortsPosLists(t *testing.T) {
	idx, _ := buildSmallIndex(t)
	list := idx.Query(111)
	if len(list) != 3 {
		t.Fatalf("expected 3 hits for hash 111, got %d", len(list))
	}
	// ref1 (id 0) entries must come before ref2 (id 1), and within ref1
	// entries must be ordered by position.
	if list[0].Target != 0 || list[1].Target != 0 || list[2].Target != 1 {
		t.Fatalf("unexpected target ordering: %+v", list)
	}
	if list[0].Pos != 3 || list[1].Pos != 5 {
		t.Fatalf("unexpected position ordering: %+v", list)
	}
}

func TestFreqCapDropsOverfullHashes(t *testing.T) {
	idx := New(Config{K: 15, Density: 1.0, FreqCap: 2})
	for i := 0; i < 5; i++ {
		if err := idx.Insert(seqid.ID(0), 999, uint32(i), 0); err != nil {
			t.Fatal(err)
		}
	}
	if err := idx.Insert(seqid.ID(0), 1000, 0, 0); err != nil {
		t.Fatal(err)
	}
	idx.Freeze()

	if got := idx.Query(999); got != nil {
		t.Fatalf("expected hash 999 dropped (5 hits > cap 2), got %d hits", len(got))
	}
	if got := idx.Query(1000); len(got) != 1 {
		t.Fatalf("expected hash 1000 retained with 1 hit, got %d", len(got))
	}
	if err := idx.CheckInvariant(); err != nil {
		t.Fatalf("invariant check failed: %v", err)
	}
}

func TestInsertAfterFreezeRejected(t *testing.T) {
	idx, _ := buildSmallIndex(t)
	if err := idx.Insert(seqid.ID(0), 1, 1, 0); err == nil {
		t.Fatal("expected error inserting after freeze")
	}
}

func TestFreqCapFormula(t *testing.T) {
	// max(2, ceil(refs*density*numerator/k))
	if got := FreqCap(1000, 0.01, 1.0, 15); got != 2 {
		t.Fatalf("expected floor of 2, got %d", got)
	}
	if got := FreqCap(1_000_000, 0.01, 1.0, 15); got != 667 {
		t.Fatalf("expected 667, got %d", got)
	}
}

func TestSerializationRoundTrip(t *testing.T) {
	idx, reg := buildSmallIndex(t)

	var buf bytes.Buffer
	if err := idx.WriteTo(&buf, reg); err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}

	reg2 := seqid.New(0)
	idx2, err := ReadFrom(bytes.NewReader(buf.Bytes()), reg2, 15, 0.1)
	if err != nil {
		t.Fatalf("ReadFrom failed: %v", err)
	}

	if idx2.NumHashes() != idx.NumHashes() {
		t.Fatalf("hash count mismatch: %d vs %d", idx2.NumHashes(), idx.NumHashes())
	}
	if idx2.FreqCap != idx.FreqCap {
		t.Fatalf("freq cap mismatch: %d vs %d", idx2.FreqCap, idx.FreqCap)
	}
	if reg2.Len() != reg.Len() {
		t.Fatalf("registry size mismatch: %d vs %d", reg2.Len(), reg.Len())
	}
	if !bytes.Equal(reg2.Name(0), reg.Name(0)) {
		t.Fatalf("name mismatch: %q vs %q", reg2.Name(0), reg.Name(0))
	}

	got := idx2.Query(111)
	want := idx.Query(111)
	if len(got) != len(want) {
		t.Fatalf("hit count mismatch for hash 111: %d vs %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("hit %d mismatch: %+v vs %+v", i, got[i], want[i])
		}
	}
}

func TestDeserializationRejectsBadMagic(t *testing.T) {
	buf := bytes.Repeat([]byte{0xAA}, 64)
	reg := seqid.New(0)
	_, err := ReadFrom(bytes.NewReader(buf), reg, 15, 0.1)
	if err == nil {
		t.Fatal("expected error for bad magic")
	}
	if errs.KindOf(err) != errs.IndexIncompatible {
		t.Fatalf("expected IndexIncompatible, got %v", errs.KindOf(err))
	}
}

func TestDeserializationRejectsKMismatch(t *testing.T) {
	idx, reg := buildSmallIndex(t)
	var buf bytes.Buffer
	if err := idx.WriteTo(&buf, reg); err != nil {
		t.Fatal(err)
	}
	reg2 := seqid.New(0)
	_, err := ReadFrom(bytes.NewReader(buf.Bytes()), reg2, 21, 0.1)
	if err == nil {
		t.Fatal("expected error for k mismatch")
	}
	if errs.KindOf(err) != errs.IndexIncompatible {
		t.Fatalf("expected IndexIncompatible, got %v", errs.KindOf(err))
	}
}

func TestDeserializationRejectsCorruptedCRC(t *testing.T) {
	idx, reg := buildSmallIndex(t)
	var buf bytes.Buffer
	if err := idx.WriteTo(&buf, reg); err != nil {
		t.Fatal(err)
	}
	corrupted := buf.Bytes()
	corrupted[len(corrupted)-1] ^= 0xFF

	reg2 := seqid.New(0)
	_, err := ReadFrom(bytes.NewReader(corrupted), reg2, 15, 0.1)
	if err == nil {
		t.Fatal("expected crc mismatch error")
	}
	if errs.KindOf(err) != errs.IndexIncompatible {
		t.Fatalf("expected IndexIncompatible, got %v", errs.KindOf(err))
	}
}
