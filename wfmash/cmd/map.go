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
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pangenome/wfmash-go/wfmash/config"
	"github.com/pangenome/wfmash-go/wfmash/diag"
	"github.com/pangenome/wfmash-go/wfmash/minmerindex"
	"github.com/pangenome/wfmash-go/wfmash/pipeline"
	"github.com/pangenome/wfmash-go/wfmash/record"
	"github.com/pangenome/wfmash-go/wfmash/seqid"
)

var mapCmd = &cobra.Command{
	Use:   "map [flags] <target.fa> [query.fa]",
	Short: "map (and optionally align) query sequences against target sequences",
	Long: `map sequences against each other: sketch-and-sample candidate discovery
(C4), Mash-distance refinement and chaining (C5/C6), optionally followed
by base-level wavefront alignment with recursive patching (C7/C8).

Attentions:
  1. Input should be (optionally gzipped) FASTA.
  2. Positions in PAF/SAM output are as specified by those formats.
`,
	Run: func(cmd *cobra.Command, args []string) {
		opt := getOptions(cmd)

		var fhLog interface{ Close() error }
		if opt.Log2File {
			fhLog = addLog(opt.LogFile, opt.Verbose)
		}
		outputLog := opt.Verbose || opt.Log2File

		timeStart := time.Now()
		defer func() {
			if outputLog {
				log.Info()
				log.Infof("elapsed time: %s", time.Since(timeStart))
			}
			if opt.Log2File && fhLog != nil {
				fhLog.Close()
			}
		}()

		if len(args) < 1 {
			checkError(fmt.Errorf("a target FASTA file is required"))
		}
		targetFile := args[0]
		queryFile := targetFile
		selfMap := true
		if len(args) >= 2 {
			queryFile = args[1]
			selfMap = false
		}

		alignMode := !getFlagBool(cmd, "approx-map")
		cfg := buildConfigFromFlags(cmd)
		if err := cfg.Finalize(alignMode); err != nil {
			checkError(err)
		}
		cfg.Threads = opt.NumCPUs

		tFilter, err := seqid.NewNameFilter(cfg.PrefixDelim, config.SplitPrefixes(cfg.TargetPfx), cfg.TargetList)
		checkError(err)
		qPrefixes := cfg.QueryPfx
		if len(qPrefixes) == 0 && cfg.TargetPfx != "" && selfMap {
			qPrefixes = config.SplitPrefixes(cfg.TargetPfx)
		}
		qFilter, err := seqid.NewNameFilter(cfg.PrefixDelim, qPrefixes, cfg.QueryList)
		checkError(err)

		diagRec := diag.New(diag.Options{
			Enabled:  getFlagString(cmd, "diag-tsv") != "" || getFlagString(cmd, "diag-png") != "",
			TSVPath:  getFlagString(cmd, "diag-tsv"),
			HistPath: getFlagString(cmd, "diag-png"),
		})

		drv := pipeline.New(cfg, tFilter, qFilter, diagRec, outputLog)

		persistedIndex := getFlagString(cmd, "index")
		var idx *minmerindex.Index
		if outputLog {
			log.Infof("loading sequences ...")
		}
		if persistedIndex != "" {
			if outputLog {
				log.Infof("loading persisted index: %s", persistedIndex)
			}
			idx, err = drv.LoadIndexedTargets(persistedIndex, targetFile)
			checkError(err)
			// in a self-map the hydrated targets are already registered
			// and double as the queries; registering them again fails.
			if !selfMap {
				checkError(drv.LoadQueries([]string{queryFile}))
			}
			drv.Freeze()
		} else if selfMap {
			checkError(drv.LoadSequences([]string{targetFile}, []string{targetFile}))
		} else {
			checkError(drv.LoadSequences([]string{targetFile}, []string{queryFile}))
		}

		outFile := getFlagString(cmd, "out-file")
		outfh, gw, w, err := outStream(outFile, strings.HasSuffix(outFile, ".gz"), -1)
		checkError(err)
		defer func() {
			outfh.Flush()
			if gw != nil {
				gw.Close()
			}
			w.Close()
		}()

		recOpts := record.Options{EmitMDTag: cfg.EmitMDTag, NoSeqInSAM: cfg.NoSeqInSam}
		if cfg.SamFormat {
			recOpts.Format = record.SAM
		}
		rw := record.NewWriter(outfh, recOpts)

		inputPAF := getFlagString(cmd, "input")
		switch {
		case inputPAF != "":
			checkError(drv.RunFromPAF(inputPAF, rw))
		case idx != nil:
			checkError(drv.RunWithIndex(idx, rw, alignMode))
		default:
			checkError(drv.Run(rw, alignMode))
		}
		checkError(rw.Flush())
		checkError(diagRec.Flush())
	},
}

// buildConfigFromFlags layers defaults, an optional TOML file, then CLI
// flags, mirroring the priority order documented in wfmash/config.
func buildConfigFromFlags(cmd *cobra.Command) config.Config {
	cfg, err := config.LoadFile(getFlagString(cmd, "config"), config.Default())
	checkError(err)

	if cmd.Flags().Changed("kmer") {
		cfg.K = getFlagPositiveInt(cmd, "kmer")
	}
	if cmd.Flags().Changed("segment-length") {
		cfg.SegLength = getFlagInt64(cmd, "segment-length")
	}
	if cmd.Flags().Changed("block-length") {
		cfg.BlockLength = getFlagInt64(cmd, "block-length")
	}
	if cmd.Flags().Changed("map-pct-id") {
		cfg.MapPctID = getFlagFloat64(cmd, "map-pct-id")
	}
	if cmd.Flags().Changed("sketch-size") {
		cfg.SketchSize = getFlagInt64(cmd, "sketch-size")
	}
	if cmd.Flags().Changed("mappings") {
		cfg.NumMappings = getFlagPositiveInt(cmd, "mappings")
	}
	if cmd.Flags().Changed("chain-gap") {
		cfg.ChainGap = getFlagInt64(cmd, "chain-gap")
	}
	if cmd.Flags().Changed("max-mapping-length") {
		cfg.MaxMapLength = getFlagInt64(cmd, "max-mapping-length")
	}
	if cmd.Flags().Changed("overlap-threshold") {
		cfg.OverlapThr = getFlagFloat64(cmd, "overlap-threshold")
	}
	if cmd.Flags().Changed("filter-mode") {
		switch getFlagString(cmd, "filter-mode") {
		case "none":
			cfg.Filter = config.FilterNone
		case "one-to-one":
			cfg.Filter = config.FilterOneToOne
		default:
			cfg.Filter = config.FilterMap
		}
	}
	if cmd.Flags().Changed("hg-numerator") {
		cfg.HgNumerator = getFlagFloat64(cmd, "hg-numerator")
	}
	if cmd.Flags().Changed("ani-diff") {
		cfg.ANIDiff = getFlagFloat64(cmd, "ani-diff")
	}
	if cmd.Flags().Changed("ani-diff-conf") {
		cfg.ANIDiffConf = getFlagFloat64(cmd, "ani-diff-conf")
	}
	if cmd.Flags().Changed("kmer-complexity") {
		cfg.KmerComplexity = getFlagFloat64(cmd, "kmer-complexity")
	}
	if cmd.Flags().Changed("index-by-size") {
		cfg.IndexBySize = getFlagSize(cmd, "index-by-size")
	}
	if cmd.Flags().Changed("prefix-delim") {
		cfg.PrefixDelim = getFlagString(cmd, "prefix-delim")
	}
	if cmd.Flags().Changed("target-prefix") {
		cfg.TargetPfx = getFlagString(cmd, "target-prefix")
	}
	if cmd.Flags().Changed("query-prefix") {
		cfg.QueryPfx = getFlagStringSlice(cmd, "query-prefix")
	}
	if cmd.Flags().Changed("target-list") {
		cfg.TargetList = getFlagString(cmd, "target-list")
	}
	if cmd.Flags().Changed("query-list") {
		cfg.QueryList = getFlagString(cmd, "query-list")
	}
	if cmd.Flags().Changed("skip-self") {
		cfg.SkipSelf = getFlagBool(cmd, "skip-self")
	}
	if cmd.Flags().Changed("lower-triangular") {
		cfg.LowerTriangular = getFlagBool(cmd, "lower-triangular")
	}
	if cmd.Flags().Changed("no-split") {
		cfg.NoSplit = getFlagBool(cmd, "no-split")
	}
	if cmd.Flags().Changed("no-merge") {
		cfg.NoMerge = getFlagBool(cmd, "no-merge")
	}
	if cmd.Flags().Changed("keep-low-pct-id") {
		cfg.KeepLowPctID = getFlagBool(cmd, "keep-low-pct-id")
	}
	if cmd.Flags().Changed("wfa-mismatch") {
		cfg.WFAMismatch = getFlagPositiveInt(cmd, "wfa-mismatch")
	}
	if cmd.Flags().Changed("wfa-gap-open") {
		cfg.WFAGapOpen = getFlagPositiveInt(cmd, "wfa-gap-open")
	}
	if cmd.Flags().Changed("wfa-gap-extend") {
		cfg.WFAGapExtend = getFlagPositiveInt(cmd, "wfa-gap-extend")
	}
	if cmd.Flags().Changed("sam-format") {
		cfg.SamFormat = getFlagBool(cmd, "sam-format")
	}
	if cmd.Flags().Changed("emit-md-tag") {
		cfg.EmitMDTag = getFlagBool(cmd, "emit-md-tag")
	}
	if cmd.Flags().Changed("no-seq-in-sam") {
		cfg.NoSeqInSam = getFlagBool(cmd, "no-seq-in-sam")
	}
	if cmd.Flags().Changed("sparsity") {
		cfg.Sparsity = getFlagFloat64(cmd, "sparsity")
	}
	return cfg
}

func init() {
	RootCmd.AddCommand(mapCmd)

	f := mapCmd.Flags()
	f.String("config", "", formatFlagUsage(`TOML configuration file, layered under CLI flags.`))
	f.StringP("out-file", "o", "-", formatFlagUsage(`Output file ("-" for stdout, ".gz" suffix compresses).`))
	f.String("input", "", formatFlagUsage(`Re-align an existing PAF file instead of discovering mappings (spec's -i/--input path).`))
	f.String("index", "", formatFlagUsage(`Reuse a persisted MinmerIndex built by "wfmash index" instead of re-sketching targets.`))
	f.Bool("approx-map", false, formatFlagUsage(`Skip C7/C8 base-level alignment, emitting approximate mappings only.`))

	f.IntP("kmer", "k", 0, formatFlagUsage(`k-mer size.`))
	f.Int64P("segment-length", "s", 0, formatFlagUsage(`Query segment length in bp (>=100, <=10000 in align mode).`))
	f.Int64("block-length", 0, formatFlagUsage(`Minimum reported block length (default 3x segment-length).`))
	f.Float64P("map-pct-id", "p", 0, formatFlagUsage(`Target identity floor, percent (>=50).`))
	f.Int64("sketch-size", 0, formatFlagUsage(`Override the auto-derived sketch size.`))
	f.IntP("mappings", "n", 0, formatFlagUsage(`Mappings to keep per query/target pair.`))
	f.Int64("chain-gap", 0, formatFlagUsage(`Maximum chain gap in bp.`))
	f.Int64("max-mapping-length", 0, formatFlagUsage(`Split chains larger than this.`))
	f.Float64("overlap-threshold", 0, formatFlagUsage(`Plane-sweep overlap cap.`))
	f.String("filter-mode", "", formatFlagUsage(`Plane-sweep filter: none, map, one-to-one.`))
	f.Float64("hg-numerator", 0, formatFlagUsage(`Hypergeometric admission numerator (>=1.0).`))
	f.Float64("ani-diff", 0, formatFlagUsage(`Hypergeometric admission ANI difference tolerance.`))
	f.Float64("ani-diff-conf", 0, formatFlagUsage(`Hypergeometric admission confidence.`))
	f.Float64("kmer-complexity", 0, formatFlagUsage(`Minimum k-mer entropy gate.`))
	f.String("index-by-size", "", formatFlagUsage(`Target batch byte budget, e.g. "4G".`))
	f.String("prefix-delim", "#", formatFlagUsage(`Delimiter separating a name-space group from a sequence name.`))
	f.String("target-prefix", "", formatFlagUsage(`Restrict targets to this comma-separated set of prefixes.`))
	f.StringSlice("query-prefix", nil, formatFlagUsage(`Restrict queries to this set of prefixes.`))
	f.String("target-list", "", formatFlagUsage(`Restrict targets to the names listed in this file.`))
	f.String("query-list", "", formatFlagUsage(`Restrict queries to the names listed in this file.`))
	f.Bool("skip-self", false, formatFlagUsage(`Skip mappings within the same name-space group.`))
	f.Bool("lower-triangular", false, formatFlagUsage(`Emit each unordered target/query pair only once.`))
	f.Bool("no-split", false, formatFlagUsage(`Do not tile queries into segments.`))
	f.Bool("no-merge", false, formatFlagUsage(`Skip the chain-to-single-mapping merge.`))
	f.Bool("keep-low-pct-id", true, formatFlagUsage(`Keep mappings below map-pct-id rather than dropping them.`))
	f.Int("wfa-mismatch", 0, formatFlagUsage(`Wavefront mismatch penalty.`))
	f.Int("wfa-gap-open", 0, formatFlagUsage(`Wavefront gap-open penalty.`))
	f.Int("wfa-gap-extend", 0, formatFlagUsage(`Wavefront gap-extend penalty.`))
	f.Bool("sam-format", false, formatFlagUsage(`Emit SAM instead of PAF.`))
	f.Bool("emit-md-tag", false, formatFlagUsage(`Emit the MD:Z tag (alignment mode only).`))
	f.Bool("no-seq-in-sam", false, formatFlagUsage(`Omit SEQ in SAM output.`))
	f.Float64("sparsity", 0, formatFlagUsage(`Sub-sample minmers below this fraction of the hash space (<=1.0).`))
	f.String("diag-tsv", "", formatFlagUsage(`Write a TSV dump of every emitted mapping's estimated ANI.`))
	f.String("diag-png", "", formatFlagUsage(`Write a histogram PNG of the estimated-ANI distribution.`))

	mapCmd.SetUsageTemplate(usageTemplate("<target.fa> [query.fa]"))
}
