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

// Package pafio reads PAF records back in for the -i re-alignment path
// (spec §6.1's `-i`/`--input` flag, spec §8's round-trip property:
// running the aligner on PAF emitted by a prior approx-mapping run
// yields the same CIGARs as a single-pass run with the same
// parameters). Parsing uses github.com/shenwei356/breader, the
// teacher ecosystem's buffered/worker-pool line reader (an indirect
// dependency of the teacher's own go.mod, promoted here to a direct
// one since this package is the one place that actually calls it).
package pafio

import (
	"strconv"
	"strings"

	"github.com/shenwei356/breader"

	"github.com/pangenome/wfmash-go/wfmash/candidate"
	"github.com/pangenome/wfmash-go/wfmash/errs"
)

// Record is a single parsed PAF row, carrying just enough to re-drive
// C7/C8 alignment for a previously emitted mapping: query/target names
// and lengths, the mapped interval, and strand. Tag columns beyond the
// 12 mandatory PAF fields are ignored on read.
type Record struct {
	QueryName  string
	QLen       int
	QStart     int
	QEnd       int
	Strand     candidate.Strand
	TargetName string
	TLen       int
	TStart     int
	TEnd       int
}

// minPAFColumns is the mandatory PAF column count; rows with fewer
// columns fail with an InputValidation error, per spec §8 scenario 6:
// the process must exit with code 2 after a single stderr diagnostic,
// with no partial stdout.
const minPAFColumns = 12

func parseLine(line string) (interface{}, bool, error) {
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return nil, false, nil
	}
	cols := strings.Split(line, "\t")
	if len(cols) < minPAFColumns {
		return nil, false, errs.Newf(errs.InputValidation,
			"malformed PAF row: expected at least %d columns, got %d", minPAFColumns, len(cols))
	}

	qLen, err := strconv.Atoi(cols[1])
	if err != nil {
		return nil, false, errs.New(errs.InputValidation, err)
	}
	qStart, err := strconv.Atoi(cols[2])
	if err != nil {
		return nil, false, errs.New(errs.InputValidation, err)
	}
	qEnd, err := strconv.Atoi(cols[3])
	if err != nil {
		return nil, false, errs.New(errs.InputValidation, err)
	}
	var strand candidate.Strand
	switch cols[4] {
	case "+":
		strand = candidate.Forward
	case "-":
		strand = candidate.Reverse
	default:
		return nil, false, errs.Newf(errs.InputValidation, "malformed PAF row: strand column must be + or -, got %q", cols[4])
	}
	tLen, err := strconv.Atoi(cols[6])
	if err != nil {
		return nil, false, errs.New(errs.InputValidation, err)
	}
	tStart, err := strconv.Atoi(cols[7])
	if err != nil {
		return nil, false, errs.New(errs.InputValidation, err)
	}
	tEnd, err := strconv.Atoi(cols[8])
	if err != nil {
		return nil, false, errs.New(errs.InputValidation, err)
	}

	return Record{
		QueryName:  cols[0],
		QLen:       qLen,
		QStart:     qStart,
		QEnd:       qEnd,
		Strand:     strand,
		TargetName: cols[5],
		TLen:       tLen,
		TStart:     tStart,
		TEnd:       tEnd,
	}, true, nil
}

// ReadAll reads every PAF record from path, stopping at the first
// malformed row rather than skipping it: spec §8 scenario 6 requires
// the whole run to abort with no partial output once one bad row is
// seen, so this is not a best-effort streaming reader.
func ReadAll(path string, numWorkers int) ([]Record, error) {
	if numWorkers < 1 {
		numWorkers = 1
	}
	reader, err := breader.NewBufferedReader(path, numWorkers, 64, parseLine)
	if err != nil {
		return nil, errs.New(errs.IO, err)
	}

	var records []Record
	for chunk := range reader.Ch {
		if chunk.Err != nil {
			return nil, chunk.Err
		}
		for _, data := range chunk.Data {
			if data == nil {
				continue
			}
			records = append(records, data.(Record))
		}
	}
	return records, nil
}
