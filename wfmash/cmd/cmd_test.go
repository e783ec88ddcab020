package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func writeFASTAFile(t *testing.T, dir, name, id, seq string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	content := ">" + id + "\n" + seq + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
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

func TestMapCommandSelfMapsAndWritesPAF(t *testing.T) {
	dir := t.TempDir()
	target := writeFASTAFile(t, dir, "genome.fa", "chr1", repeatACGT(3000))
	out := filepath.Join(dir, "out.paf")

	RootCmd.SetArgs([]string{"map", target, "-o", out, "--approx-map", "-q"})
	if err := RootCmd.Execute(); err != nil {
		t.Fatalf("map command failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected non-empty PAF output for a self-mapping run")
	}
}

func TestIndexCommandPersistsIndexFile(t *testing.T) {
	dir := t.TempDir()
	target := writeFASTAFile(t, dir, "genome.fa", "chr1", repeatACGT(3000))
	out := filepath.Join(dir, "index.wfmx")

	RootCmd.SetArgs([]string{"index", target, "-o", out, "-q"})
	if err := RootCmd.Execute(); err != nil {
		t.Fatalf("index command failed: %v", err)
	}

	info, err := os.Stat(out)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}
	if info.Size() == 0 {
		t.Fatalf("expected a non-empty persisted index file")
	}
}

func TestMapCommandReusesPersistedIndex(t *testing.T) {
	dir := t.TempDir()
	target := writeFASTAFile(t, dir, "genome.fa", "chr1", repeatACGT(3000))
	indexPath := filepath.Join(dir, "index.wfmx")

	RootCmd.SetArgs([]string{"index", target, "-o", indexPath, "-q"})
	if err := RootCmd.Execute(); err != nil {
		t.Fatalf("index command failed: %v", err)
	}

	out := filepath.Join(dir, "out.paf")
	RootCmd.SetArgs([]string{"map", target, "-o", out, "--index", indexPath, "--approx-map", "-q"})
	if err := RootCmd.Execute(); err != nil {
		t.Fatalf("map --index command failed: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected non-empty PAF output when mapping against a persisted index")
	}
}

func TestGetFlagSizeParsesHandyLiterals(t *testing.T) {
	c := &cobra.Command{Use: "scratch", Run: func(*cobra.Command, []string) {}}
	c.Flags().String("budget", "4G", "")
	if err := c.Flags().Set("budget", "500k"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := getFlagSize(c, "budget"); got != 500_000 {
		t.Fatalf("expected 500000, got %d", got)
	}
}

func TestIsStdinRecognizesDashAndEmpty(t *testing.T) {
	for _, v := range []string{"-", ""} {
		if !isStdin(v) {
			t.Fatalf("expected isStdin(%q) to be true", v)
		}
	}
	if isStdin("out.paf") {
		t.Fatalf("expected isStdin(\"out.paf\") to be false")
	}
}
