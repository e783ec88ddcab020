package align

import (
	"strings"
	"testing"
)

func TestAlignIdenticalSequencesAreAllMatches(t *testing.T) {
	seq := []byte("ACGTACGTACGTACGTACGTACGTACGTACGT")
	a := New(Penalties{Mismatch: 4, GapOpen: 6, GapExtend: 2}, DefaultOptions)
	r, err := a.Align(seq, seq)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer RecycleResult(r)

	if r.Mismatches != 0 || r.Insertions != 0 || r.Deletions != 0 {
		t.Fatalf("expected a pure match alignment, got X=%d I=%d D=%d", r.Mismatches, r.Insertions, r.Deletions)
	}
	if r.Matches != len(seq) {
		t.Fatalf("expected %d matches, got %d", len(seq), r.Matches)
	}
	if r.Identity() != 1.0 {
		t.Fatalf("expected identity 1.0, got %v", r.Identity())
	}
}

func TestAlignSingleSubstitutionScoresOneMismatch(t *testing.T) {
	a := New(Penalties{Mismatch: 4, GapOpen: 6, GapExtend: 2}, DefaultOptions)
	q := []byte("ACGTACGTACGTACGTACGT")
	tgt := make([]byte, len(q))
	copy(tgt, q)
	// flip a single base that differs from its neighbor in q, a pure
	// substitution with no length change.
	if tgt[10] == 'A' {
		tgt[10] = 'C'
	} else {
		tgt[10] = 'A'
	}

	r, err := a.Align(q, tgt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer RecycleResult(r)

	if r.Mismatches != 1 {
		t.Fatalf("expected exactly 1 mismatch, got %d", r.Mismatches)
	}
	if r.Score != 4 {
		t.Fatalf("expected score 4 (one mismatch penalty), got %d", r.Score)
	}
}

func TestAlignSwapsLongerQueryAgainstShorterTarget(t *testing.T) {
	a := New(Penalties{Mismatch: 4, GapOpen: 6, GapExtend: 2}, DefaultOptions)
	// q longer than t forces the internal swap path.
	q := []byte("ACGTACGTACGTACGTACGTACGT")
	tgt := []byte("ACGTACGTACGTACGTACGT")

	r, err := a.Align(q, tgt)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer RecycleResult(r)

	if r.Insertions == 0 && len(q) != len(tgt) {
		// q is longer, so aligning it against a shorter target must
		// consume the extra query bases as insertions (I consumes the
		// query), not deletions.
		t.Fatalf("expected insertions to account for the length difference, got I=%d D=%d", r.Insertions, r.Deletions)
	}
}

func TestParseIntoCountsRunLengths(t *testing.T) {
	r := &Result{}
	p := Penalties{Mismatch: 4, GapOpen: 6, GapExtend: 2}
	parseInto(r, "10M2X3I1D5M", p.toWFA())

	if r.Matches != 15 {
		t.Fatalf("expected 15 matches, got %d", r.Matches)
	}
	if r.Mismatches != 2 {
		t.Fatalf("expected 2 mismatches, got %d", r.Mismatches)
	}
	if r.Insertions != 3 {
		t.Fatalf("expected 3 insertions, got %d", r.Insertions)
	}
	if r.Deletions != 1 {
		t.Fatalf("expected 1 deletion, got %d", r.Deletions)
	}
	wantScore := 2*4 + (6 + 3*2) + (6 + 1*2)
	if r.Score != wantScore {
		t.Fatalf("expected score %d, got %d", wantScore, r.Score)
	}
}

func TestSwapIndelsExchangesInsertionsAndDeletions(t *testing.T) {
	r := &Result{CIGAR: "5M3I2D4M", Insertions: 3, Deletions: 2}
	r.Ops = []Op{{'M', 5}, {'I', 3}, {'D', 2}, {'M', 4}}
	r.swapIndels()

	if r.Insertions != 2 || r.Deletions != 3 {
		t.Fatalf("expected swapped counts I=2 D=3, got I=%d D=%d", r.Insertions, r.Deletions)
	}
	if !strings.Contains(r.CIGAR, "3D") || !strings.Contains(r.CIGAR, "2I") {
		t.Fatalf("expected CIGAR ops swapped, got %q", r.CIGAR)
	}
}

func TestAffine2pTrueCostPicksCheaperCurve(t *testing.T) {
	r := &Result{Ops: []Op{{'M', 100}, {'I', 20}}}
	p := Affine2pPenalties{
		Mismatch:    4,
		GapOpen1:    6, GapExtend1: 2,
		GapOpen2: 20, GapExtend2: 1,
	}
	// cost1 = 6+20*2 = 46, cost2 = 20+20*1 = 40, cheaper is cost2.
	if got := r.TrueCost(p); got != 40 {
		t.Fatalf("expected true cost 40 (cheaper dual-affine curve), got %d", got)
	}
}

func TestAlignAffine2pCappedRejectsOverBudgetPatch(t *testing.T) {
	q := []byte("ACGTACGTACGTACGTACGTACGTACGTACGTACGTACGT")
	tgt := []byte("TTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTTT")
	p := Affine2pPenalties{Mismatch: 4, GapOpen1: 6, GapExtend1: 2, GapOpen2: 20, GapExtend2: 1}

	_, ok, err := AlignAffine2pCapped(q, tgt, p, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected a near-unrelated pair under a tiny score cap to be rejected")
	}
}
