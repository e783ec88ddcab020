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

package record

import (
	"strconv"
	"strings"

	"github.com/pangenome/wfmash-go/wfmash/align"
)

// computeMD renders the SAM MD:Z tag from a run-length op list and the
// target window it was aligned against: a run of matches as a decimal
// count, a mismatch as the single reference base it replaces (with an
// explicit "0" run between adjacent mismatches), and a deletion as
// '^' followed by the deleted reference bases.
func computeMD(ops []align.Op, targetWindow []byte) string {
	var b strings.Builder
	var matchRun int
	var tPos int

	flush := func() {
		b.WriteString(strconv.Itoa(matchRun))
		matchRun = 0
	}

	for _, op := range ops {
		switch op.Code {
		case 'M':
			matchRun += op.Len
			tPos += op.Len
		case 'X':
			for i := 0; i < op.Len; i++ {
				flush()
				if tPos < len(targetWindow) {
					b.WriteByte(targetWindow[tPos])
				}
				tPos++
			}
		case 'D':
			flush()
			b.WriteByte('^')
			end := tPos + op.Len
			if end > len(targetWindow) {
				end = len(targetWindow)
			}
			b.Write(targetWindow[tPos:end])
			tPos += op.Len
		case 'I', 'S', 'H':
			// query-consuming only; does not advance the reference axis.
		}
	}
	flush()
	return b.String()
}
