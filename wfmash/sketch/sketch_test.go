package sketch

import (
	"math/rand"
	"strings"
	"testing"
)

func randSeq(n int, seed int64) []byte {
	r := rand.New(rand.NewSource(seed))
	bases := []byte("ACGT")
	s := make([]byte, n)
	for i := range s {
		s[i] = bases[r.Intn(4)]
	}
	return s
}

func TestSketchDeterministic(t *testing.T) {
	seq := randSeq(2000, 42)
	opts := Options{K: 15, Density: 0.1}
	a := Sketch(seq, 0, len(seq), opts)
	b := Sketch(seq, 0, len(seq), opts)
	if len(a) != len(b) {
		t.Fatalf("non-deterministic lengths: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("non-deterministic minmer at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestSketchSortedByPosition(t *testing.T) {
	seq := randSeq(2000, 7)
	out := Sketch(seq, 0, len(seq), Options{K: 15, Density: 0.2})
	for i := 1; i < len(out); i++ {
		if out[i].Pos <= out[i-1].Pos {
			t.Fatalf("minmers not sorted by position: %d then %d", out[i-1].Pos, out[i].Pos)
		}
	}
}

func TestSketchSkipsN(t *testing.T) {
	seq := []byte(strings.Repeat("ACGT", 10) + "NNNNNNNNNNNNNNN" + strings.Repeat("ACGT", 10))
	out := Sketch(seq, 0, len(seq), Options{K: 15, Density: 1.0})
	for _, m := range out {
		for i := 0; i < 15; i++ {
			if seq[m.Pos+i] == 'N' {
				t.Fatalf("minmer at %d overlaps an N", m.Pos)
			}
		}
	}
}

func TestSketchHomopolymerFailsComplexityGate(t *testing.T) {
	seq := []byte(strings.Repeat("A", 5000))
	out := Sketch(seq, 0, len(seq), Options{K: 15, Density: 1.0, Complexity: 0.5})
	if len(out) != 0 {
		t.Fatalf("expected zero minmers for homopolymer with complexity gate, got %d", len(out))
	}
}

func TestCanonicalIsMinOfForwardAndRevComp(t *testing.T) {
	fwd, ok := packKmer([]byte("ACGTACGTACGTACG"), 0, 15)
	if !ok {
		t.Fatal("expected valid k-mer")
	}
	rc := revCompPacked(fwd, 15)
	canon, _ := canonical(fwd, 15)
	if canon != fwd && canon != rc {
		t.Fatalf("canonical value is neither forward nor revcomp")
	}
	if canon > fwd || canon > rc {
		t.Fatalf("canonical value is not the minimum")
	}
}

func TestDensityApproximatelyTargetsSketchSize(t *testing.T) {
	seq := randSeq(100000, 99)
	target := 64
	density := DensityForSketchSize(target, len(seq)-15)
	out := Sketch(seq, 0, len(seq), Options{K: 15, Density: density})
	// allow generous tolerance: sampling is probabilistic
	if len(out) < target/4 || len(out) > target*4 {
		t.Fatalf("expected roughly %d minmers, got %d", target, len(out))
	}
}
