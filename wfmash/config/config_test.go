package config

import "testing"

func TestFinalizeDerivesBlockLength(t *testing.T) {
	c := Default()
	c.SegLength = 2000
	if err := c.Finalize(false); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if c.BlockLength != 6000 {
		t.Fatalf("expected block length 6000, got %d", c.BlockLength)
	}
}

func TestFinalizeRejectsShortSegment(t *testing.T) {
	c := Default()
	c.SegLength = 50
	if err := c.Finalize(false); err == nil {
		t.Fatalf("expected error for segment length < 100")
	}
}

func TestFinalizeRejectsLongSegmentInAlignMode(t *testing.T) {
	c := Default()
	c.SegLength = 20000
	if err := c.Finalize(true); err == nil {
		t.Fatalf("expected error for segment length > 10000 in align mode")
	}
}

func TestSparsityThresholdFoldsAtOne(t *testing.T) {
	c := Default()
	c.Sparsity = 1.0
	if c.SparsityThreshold() != ^uint64(0) {
		t.Fatalf("expected max uint64 threshold at factor 1.0")
	}
}

func TestFinalizeRejectsSparsityAboveOne(t *testing.T) {
	c := Default()
	c.Sparsity = 1.5
	if err := c.Finalize(false); err == nil {
		t.Fatalf("expected error for sparsification factor > 1.0")
	}
}

func TestParseSize(t *testing.T) {
	cases := map[string]int64{
		"4G":    4_000_000_000,
		"500k":  500_000,
		"1.5M":  1_500_000,
		"1000":  1000,
	}
	for in, want := range cases {
		got, err := ParseSize(in)
		if err != nil {
			t.Fatalf("ParseSize(%q): %s", in, err)
		}
		if got != want {
			t.Errorf("ParseSize(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestSplitPrefixes(t *testing.T) {
	got := SplitPrefixes("a, b ,c")
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
