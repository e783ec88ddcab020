package record

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pangenome/wfmash-go/wfmash/align"
	"github.com/pangenome/wfmash-go/wfmash/candidate"
	"github.com/pangenome/wfmash-go/wfmash/homology"
	"github.com/pangenome/wfmash-go/wfmash/wflign"
)

func TestWriteMappingPAFHasExpectedColumns(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, Options{Format: PAF})

	m := &homology.Mapping{
		QStart: 100, QEnd: 1100,
		TStart: 200, TEnd: 1200,
		Strand: candidate.Forward, EstIdentity: 0.95,
	}
	if err := w.WriteMapping("q1", 5000, "t1", 6000, m, 0.8, nil); err != nil {
		t.Fatalf("WriteMapping: %v", err)
	}
	w.Flush()

	line := strings.TrimRight(buf.String(), "\n")
	fields := strings.Split(line, "\t")
	if len(fields) < 12 {
		t.Fatalf("expected at least 12 PAF columns, got %d: %q", len(fields), line)
	}
	if fields[0] != "q1" || fields[5] != "t1" || fields[4] != "+" {
		t.Fatalf("unexpected core columns: %v", fields[:6])
	}
	if !strings.Contains(line, "gi:f:0.9500") {
		t.Fatalf("expected a gi:f: identity tag, got %q", line)
	}
}

func TestWriteAlignmentEmitsCIGARAndSoftClips(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, Options{Format: PAF})

	m := &homology.Mapping{Strand: candidate.Forward}
	aln := &wflign.Alignment{
		QStart: 10, QEnd: 20,
		TStart: 0, TEnd: 10,
		Strand:   candidate.Forward,
		Matches:  10,
		Ops:      []align.Op{{Code: 'M', Len: 10}},
		Identity: 1.0,
	}
	if err := w.WriteAlignment("q1", 30, "t1", 10, m, aln, 0.9, nil); err != nil {
		t.Fatalf("WriteAlignment: %v", err)
	}
	w.Flush()

	line := buf.String()
	if !strings.Contains(line, "cg:Z:10S10M10S") {
		t.Fatalf("expected soft-clipped CIGAR cg:Z:10S10M10S, got %q", line)
	}
}

func TestWriteAlignmentSAMIncludesMDTagWhenRequested(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, Options{Format: SAM, EmitMDTag: true, NoSeqInSAM: true})

	target := []byte("ACGTACGTAC")
	m := &homology.Mapping{Strand: candidate.Forward}
	aln := &wflign.Alignment{
		QStart: 0, QEnd: 10,
		TStart: 0, TEnd: 10,
		Strand:       candidate.Forward,
		Matches:      9,
		Mismatches:   1,
		Ops:          []align.Op{{Code: 'M', Len: 5}, {Code: 'X', Len: 1}, {Code: 'M', Len: 4}},
		Identity:     0.9,
		TargetWindow: target,
	}
	if err := w.WriteAlignment("q1", 10, "t1", 10, m, aln, 0.85, nil); err != nil {
		t.Fatalf("WriteAlignment: %v", err)
	}
	w.Flush()

	line := buf.String()
	if !strings.Contains(line, "MD:Z:5C4") {
		t.Fatalf("expected MD:Z:5C4 (the target base at the mismatch position), got %q", line)
	}
	if !strings.Contains(line, "\t*\tgi:f:") {
		t.Fatalf("expected SEQ to be '*' when NoSeqInSAM is set, got %q", line)
	}
}

func TestWriteAlignmentSAMUsesProvidedSeqOverride(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, Options{Format: SAM})

	m := &homology.Mapping{Strand: candidate.Reverse}
	aln := &wflign.Alignment{
		QStart: 0, QEnd: 5,
		TStart: 0, TEnd: 5,
		Strand:       candidate.Reverse,
		Matches:      5,
		Ops:          []align.Op{{Code: 'M', Len: 5}},
		Identity:     1.0,
		QueryWindow:  []byte("ACGTT"),
	}
	if err := w.WriteAlignment("q1", 5, "t1", 5, m, aln, 0.9, []byte("AACGT")); err != nil {
		t.Fatalf("WriteAlignment: %v", err)
	}
	w.Flush()

	line := buf.String()
	if !strings.Contains(line, "\tAACGT\t") {
		t.Fatalf("expected the provided seq override AACGT to take precedence over QueryWindow, got %q", line)
	}
}

func TestComputeMDHandlesDeletions(t *testing.T) {
	target := []byte("AACCGGTT")
	ops := []align.Op{{Code: 'M', Len: 2}, {Code: 'D', Len: 2}, {Code: 'M', Len: 4}}
	got := computeMD(ops, target)
	want := "2^CC4"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}
