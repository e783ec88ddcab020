package wflign

import (
	"math/rand"
	"testing"

	"github.com/pangenome/wfmash-go/wfmash/align"
	"github.com/pangenome/wfmash-go/wfmash/candidate"
	"github.com/pangenome/wfmash-go/wfmash/homology"
	"github.com/pangenome/wfmash-go/wfmash/seqid"
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

func TestTileCoversWholeRangeWithOverlap(t *testing.T) {
	frags := tile(1000, 256, 128)
	if len(frags) == 0 {
		t.Fatal("expected at least one fragment")
	}
	if frags[0].qs != 0 {
		t.Fatalf("expected first fragment to start at 0, got %d", frags[0].qs)
	}
	last := frags[len(frags)-1]
	if last.qe != 1000 {
		t.Fatalf("expected last fragment to reach the end (1000), got %d", last.qe)
	}
	for i := 1; i < len(frags); i++ {
		if frags[i].qs >= frags[i-1].qe {
			t.Fatalf("expected consecutive fragments to overlap, got [%d,%d) then [%d,%d)",
				frags[i-1].qs, frags[i-1].qe, frags[i].qs, frags[i].qe)
		}
	}
}

func TestTileShortSequenceReturnsSingleFragment(t *testing.T) {
	frags := tile(100, 256, 128)
	if len(frags) != 1 || frags[0].qs != 0 || frags[0].qe != 100 {
		t.Fatalf("expected a single [0,100) fragment, got %+v", frags)
	}
}

func TestRevCompReversesAndComplements(t *testing.T) {
	got := string(revComp([]byte("ACGTT")))
	want := "AACGT"
	if got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestAniToJaccardMonotonicWithIdentity(t *testing.T) {
	low := aniToJaccard(0.8, 17)
	high := aniToJaccard(0.99, 17)
	if !(high > low) {
		t.Fatalf("expected higher ANI to imply higher Jaccard, got low=%v high=%v", low, high)
	}
	if aniToJaccard(1.0, 17) != 1 {
		t.Fatalf("expected ANI=1 to imply Jaccard=1, got %v", aniToJaccard(1.0, 17))
	}
}

func TestTrimOpsPrefixSplitsMidOp(t *testing.T) {
	ops := []align.Op{{Code: 'M', Len: 10}, {Code: 'I', Len: 3}, {Code: 'M', Len: 5}}
	trimmed := trimOpsPrefix(ops, 4)
	if trimmed[0].Code != 'M' || trimmed[0].Len != 6 {
		t.Fatalf("expected the first op trimmed to M:6, got %+v", trimmed[0])
	}
}

func TestTrimOpsPrefixDropsLeadingDeletion(t *testing.T) {
	ops := []align.Op{{Code: 'D', Len: 4}, {Code: 'M', Len: 10}}
	trimmed := trimOpsPrefix(ops, 5)
	if trimmed[0].Code != 'M' || trimmed[0].Len != 5 {
		t.Fatalf("expected D dropped and M trimmed to 5, got %+v", trimmed[0])
	}
}

func TestErodeRewritesShortIsolatedMatchRunsAsMismatches(t *testing.T) {
	ops := []align.Op{{Code: 'I', Len: 5}, {Code: 'M', Len: 2}, {Code: 'D', Len: 5}}
	out := erode(ops, 4)
	if len(out) != 3 || out[1].Code != 'X' {
		t.Fatalf("expected the short M run surrounded by indels to become X, got %+v", out)
	}
}

func TestErodeLeavesLongMatchRunsAlone(t *testing.T) {
	ops := []align.Op{{Code: 'I', Len: 5}, {Code: 'M', Len: 20}, {Code: 'D', Len: 5}}
	out := erode(ops, 4)
	if out[1].Code != 'M' || out[1].Len != 20 {
		t.Fatalf("expected a long match run untouched, got %+v", out[1])
	}
}

func TestOrchestrateIdenticalSequencesEmitsHighIdentity(t *testing.T) {
	seq := randSeq(4000, 7)
	q, _ := seqid.New(1).Register([]byte("q"), int64(len(seq)))
	tgt, _ := seqid.New(1).Register([]byte("t"), int64(len(seq)))

	m := &homology.Mapping{
		Query: q, QStart: 500, QEnd: 1500,
		Target: tgt, TStart: 500, TEnd: 1500,
		Strand: candidate.Forward, EstIdentity: 0.99, BlockLength: 1000,
	}
	opts := DefaultOptions(1000)
	opts.MinIdentity = 0.9

	aln := Orchestrate(m, seq, seq, opts)
	if aln.State != Emitted {
		t.Fatalf("expected state Emitted for an identical-sequence mapping, got %v", aln.State)
	}
	if aln.Identity < 0.95 {
		t.Fatalf("expected near-1.0 identity, got %v", aln.Identity)
	}
	if aln.Mismatches != 0 || aln.Insertions != 0 || aln.Deletions != 0 {
		t.Fatalf("expected a pure-match alignment, got X=%d I=%d D=%d", aln.Mismatches, aln.Insertions, aln.Deletions)
	}
}

func TestOrchestrateUnrelatedSequencesFails(t *testing.T) {
	qSeq := randSeq(3000, 11)
	tSeq := randSeq(3000, 13)
	q, _ := seqid.New(1).Register([]byte("q"), int64(len(qSeq)))
	tgt, _ := seqid.New(1).Register([]byte("t"), int64(len(tSeq)))

	m := &homology.Mapping{
		Query: q, QStart: 500, QEnd: 1500,
		Target: tgt, TStart: 500, TEnd: 1500,
		Strand: candidate.Forward, EstIdentity: 0.99, BlockLength: 1000,
	}
	opts := DefaultOptions(1000)
	opts.MinIdentity = 0.9

	aln := Orchestrate(m, qSeq, tSeq, opts)
	if aln.State != Failed {
		t.Fatalf("expected state Failed for unrelated sequences, got %v", aln.State)
	}
}
