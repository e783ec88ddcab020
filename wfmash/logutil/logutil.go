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

package logutil

import (
	"fmt"
	"os"

	logging "github.com/shenwei356/go-logging"

	"github.com/mattn/go-colorable"

	"github.com/pangenome/wfmash-go/wfmash/errs"
)

// Log is the package-level logger, mirroring the single shared `log`
// variable convention used throughout the teacher's cmd package.
var Log = logging.MustGetLogger("wfmash")

var stderrIsTTY = isatty(os.Stderr)

func init() {
	Setup(false, "")
}

// Setup configures the logger backend. When logfile is non-empty,
// messages are duplicated to that file; verbose gates DEBUG/INFO level.
func Setup(verbose bool, logfile string) *os.File {
	var backends []logging.Backend

	out := colorable.NewColorable(os.Stderr)
	if !stderrIsTTY {
		out = os.Stderr
	}
	fmtr := logging.MustStringFormatter(
		`%{color}[%{level:.4s}]%{color:reset} %{message}`,
	)
	consoleBackend := logging.NewBackendFormatter(logging.NewLogBackend(out, "", 0), fmtr)
	backends = append(backends, consoleBackend)

	var fh *os.File
	if logfile != "" {
		var err error
		fh, err = os.Create(logfile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "[wfmash] cannot create log file %s: %s\n", logfile, err)
			os.Exit(errs.IO.ExitCode())
		}
		fileFmtr := logging.MustStringFormatter(`[%{level:.4s}] %{time:2006-01-02 15:04:05} %{message}`)
		backends = append(backends, logging.NewBackendFormatter(logging.NewLogBackend(fh, "", 0), fileFmtr))
	}

	logging.SetBackend(backends...)
	if verbose {
		logging.SetLevel(logging.DEBUG, "wfmash")
	} else {
		logging.SetLevel(logging.NOTICE, "wfmash")
	}

	return fh
}

func isatty(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

// CheckError logs err as fatal and exits with the code appropriate to
// its taxonomy Kind, mirroring the teacher's checkError(err) convention
// used at nearly every call site in cmd/*.go.
func CheckError(err error) {
	if err == nil {
		return
	}
	Log.Errorf("%s", err)
	os.Exit(errs.KindOf(err).ExitCode())
}
