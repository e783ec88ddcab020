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
	"bufio"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/klauspost/pgzip"
	"github.com/spf13/cobra"
	"github.com/twotwotwo/sorts"

	"github.com/pangenome/wfmash-go/wfmash/config"
	"github.com/pangenome/wfmash-go/wfmash/errs"
	"github.com/pangenome/wfmash-go/wfmash/logutil"
)

// log is the package-level logger every subcommand writes through,
// mirroring the teacher's single shared `log` variable.
var log = logutil.Log

// checkError mirrors the teacher's checkError(err) convention used at
// nearly every call site in cmd/*.go.
func checkError(err error) {
	logutil.CheckError(err)
}

// addLog wires Setup into the cobra flow, returning the open log file
// handle (if any) for the caller to defer-close.
func addLog(logfile string, verbose bool) *os.File {
	return logutil.Setup(verbose, logfile)
}

// Options carries the persistent flags shared by every subcommand.
type Options struct {
	NumCPUs int
	Verbose bool

	LogFile  string
	Log2File bool
}

func getOptions(cmd *cobra.Command) *Options {
	threads := getFlagNonNegativeInt(cmd, "threads")
	if threads == 0 {
		threads = runtime.NumCPU()
	}

	sorts.MaxProcs = threads
	runtime.GOMAXPROCS(threads)

	logfile := getFlagString(cmd, "log")
	return &Options{
		NumCPUs: threads,
		Verbose: !getFlagBool(cmd, "quiet"),

		LogFile:  logfile,
		Log2File: logfile != "",
	}
}

func wrapUsage(err error) {
	if err != nil {
		checkError(errs.New(errs.Usage, err))
	}
}

func getFlagString(cmd *cobra.Command, flag string) string {
	v, err := cmd.Flags().GetString(flag)
	wrapUsage(err)
	return v
}

func getFlagStringSlice(cmd *cobra.Command, flag string) []string {
	v, err := cmd.Flags().GetStringSlice(flag)
	wrapUsage(err)
	return v
}

func getFlagBool(cmd *cobra.Command, flag string) bool {
	v, err := cmd.Flags().GetBool(flag)
	wrapUsage(err)
	return v
}

func getFlagInt(cmd *cobra.Command, flag string) int {
	v, err := cmd.Flags().GetInt(flag)
	wrapUsage(err)
	return v
}

func getFlagPositiveInt(cmd *cobra.Command, flag string) int {
	v := getFlagInt(cmd, flag)
	if v <= 0 {
		checkError(errs.Newf(errs.Usage, "flag --%s must be a positive integer", flag))
	}
	return v
}

func getFlagNonNegativeInt(cmd *cobra.Command, flag string) int {
	v := getFlagInt(cmd, flag)
	if v < 0 {
		checkError(errs.Newf(errs.Usage, "flag --%s must be >= 0", flag))
	}
	return v
}

func getFlagInt64(cmd *cobra.Command, flag string) int64 {
	v, err := cmd.Flags().GetInt64(flag)
	wrapUsage(err)
	return v
}

func getFlagFloat64(cmd *cobra.Command, flag string) float64 {
	v, err := cmd.Flags().GetFloat64(flag)
	wrapUsage(err)
	return v
}

// getFlagSize parses a flag value through config.ParseSize's handy
// size-literal grammar ("4G", "500k", ...), as cmd/map.go's
// --index-by-size flag uses it.
func getFlagSize(cmd *cobra.Command, flag string) int64 {
	v := getFlagString(cmd, flag)
	n, err := config.ParseSize(v)
	if err != nil {
		checkError(err)
	}
	return n
}

func isStdin(file string) bool {
	return file == "-" || file == ""
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// outStream opens file for writing (or stdout for "-"/""), optionally
// wrapping it in a parallel gzip writer (github.com/klauspost/pgzip,
// generalizing the teacher's compressed-output convention from a
// single-threaded gzip writer to a worker-pool-friendly one since
// wfmash's output volume scales with the worker count). w is the
// underlying sink the caller must Close after gw; gw is nil when
// gzipped is false.
func outStream(file string, gzipped bool, level int) (outfh *bufio.Writer, gw io.WriteCloser, w io.WriteCloser, err error) {
	if isStdin(file) {
		w = nopWriteCloser{os.Stdout}
	} else {
		f, ferr := os.Create(file)
		if ferr != nil {
			return nil, nil, nil, errs.New(errs.IO, ferr)
		}
		w = f
	}

	target := io.Writer(w)
	if gzipped {
		if level == 0 {
			level = pgzip.DefaultCompression
		}
		gzw, gzerr := pgzip.NewWriterLevel(w, level)
		if gzerr != nil {
			w.Close()
			return nil, nil, nil, errs.New(errs.IO, gzerr)
		}
		gw = gzw
		target = gzw
	}
	return bufio.NewWriterSize(target, 1<<16), gw, w, nil
}

// formatFlagUsage is a no-op wrapper point for future line-wrapping of
// long flag help text, kept symmetric with the teacher's
// formatFlagUsage call sites.
func formatFlagUsage(s string) string {
	return s
}

func usageTemplate(argsLine string) string {
	return fmt.Sprintf(`Usage:{{if .Runnable}}
  {{.UseLine}} %s{{end}}{{if .HasAvailableSubCommands}}
  {{.CommandPath}} [command]{{end}}

{{if .HasAvailableLocalFlags}}Flags:
{{.LocalFlags.FlagUsages | trimTrailingWhitespaces}}{{end}}
`, argsLine)
}
