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

// Package cmd wires wfmash's packages into a cobra CLI: map (the main
// sketch/chain/filter/align pipeline), index (build and persist a
// standalone MinmerIndex for later reuse), and the shared global flags
// every subcommand reads through getOptions.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// VERSION is the reported tool version.
const VERSION = "0.1.0"

// RootCmd is the entry point cmd/wfmash/main.go executes.
var RootCmd = &cobra.Command{
	Use:   "wfmash",
	Short: "base-accurate DNA homology mapper and aligner",
	Long: `wfmash maps and aligns query sequences against target sequences:
approximate mapping via minmer sketching and hypergeometric admission,
followed by optional base-level wavefront alignment.
`,
	Version: VERSION,
}

func init() {
	RootCmd.PersistentFlags().IntP("threads", "t", 0,
		formatFlagUsage(`Number of worker threads (0 = number of CPUs).`))
	RootCmd.PersistentFlags().BoolP("quiet", "q", false,
		formatFlagUsage(`Suppress informational log output.`))
	RootCmd.PersistentFlags().String("log", "",
		formatFlagUsage(`Duplicate log output to this file.`))

	RootCmd.CompletionOptions.DisableDefaultCmd = true
}

// Execute runs the root command, exiting the process on error per the
// exit code table (spec §6.4).
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
