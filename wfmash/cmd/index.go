// Copyright © 2024 wfmash-go contributors
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.

package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pangenome/wfmash-go/wfmash/diag"
	"github.com/pangenome/wfmash-go/wfmash/pipeline"
	"github.com/pangenome/wfmash-go/wfmash/seqid"
)

var indexCmd = &cobra.Command{
	Use:   "index [flags] <target.fa> [target2.fa ...]",
	Short: "build and persist a MinmerIndex for repeated mapping runs",
	Long: `index builds the sketch-and-sample MinmerIndex (C1-C3) over one or more
target FASTA files and writes it to disk (spec's persisted index file
layout), so later "map --index" runs can skip re-sketching the targets.

The combined target size must fit in a single index_by_size batch;
split larger corpora across multiple index files.
`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)
		if len(args) == 0 {
			checkError(fmt.Errorf("at least one target FASTA file is required"))
		}

		timeStart := time.Now()
		defer func() {
			if opt.Verbose {
				log.Infof("elapsed time: %s", time.Since(timeStart))
			}
		}()

		cfg := buildConfigFromFlags(cmd)
		checkError(cfg.Finalize(false))
		cfg.Threads = opt.NumCPUs

		allAllow, err := seqid.NewNameFilter("", nil, "")
		checkError(err)

		drv := pipeline.New(cfg, allAllow, allAllow, diag.New(diag.Options{}), opt.Verbose)
		checkError(drv.LoadSequences(args, nil))

		if opt.Verbose {
			log.Infof("sketching %d target file(s) ...", len(args))
		}
		idx, err := drv.BuildFullIndex()
		checkError(err)

		outPath := getFlagString(cmd, "out-file")
		checkError(idx.Save(outPath, drv.Registry()))

		if opt.Verbose {
			log.Infof("index written to %s (%d hashes)", outPath, idx.NumHashes())
		}
	},
}

func init() {
	RootCmd.AddCommand(indexCmd)

	f := indexCmd.Flags()
	f.String("config", "", formatFlagUsage(`TOML configuration file, layered under CLI flags.`))
	f.StringP("out-file", "o", "index.wfmx", formatFlagUsage(`Path to write the persisted index to.`))
	f.IntP("kmer", "k", 0, formatFlagUsage(`k-mer size.`))
	f.Int64P("segment-length", "s", 0, formatFlagUsage(`Query segment length in bp, used to derive the sketch density.`))
	f.Float64P("map-pct-id", "p", 0, formatFlagUsage(`Target identity floor, percent (>=50); affects the auto-derived sketch size.`))
	f.Int64("sketch-size", 0, formatFlagUsage(`Override the auto-derived sketch size.`))
	f.Float64("hg-numerator", 0, formatFlagUsage(`Hypergeometric admission numerator (>=1.0); affects the frequency cap.`))
	f.Float64("kmer-complexity", 0, formatFlagUsage(`Minimum k-mer entropy gate.`))
	f.String("index-by-size", "", formatFlagUsage(`Target batch byte budget, e.g. "4G".`))

	indexCmd.SetUsageTemplate(usageTemplate("<target.fa> [target2.fa ...]"))
}
