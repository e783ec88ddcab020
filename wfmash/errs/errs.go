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

// Package errs defines the error taxonomy shared across the pipeline and
// the exit codes the cmd layer maps them to.
package errs

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
)

// Kind classifies an error into one of the taxonomy buckets from the
// error handling design. The cmd layer uses it to pick an exit code.
type Kind uint8

const (
	Usage Kind = iota
	InputValidation
	IndexIncompatible
	IO
	AlignmentCapExceeded
	Internal
)

// ExitCode returns the process exit code for a Kind, per the exit code table.
func (k Kind) ExitCode() int {
	switch k {
	case Usage:
		return 1
	case InputValidation:
		return 2
	case IndexIncompatible:
		return 3
	case IO:
		return 4
	case Internal:
		return 5
	default:
		return 0
	}
}

// Error wraps a Kind with a cause, preserving the original error for
// logging via %+v (github.com/pkg/errors formats stack traces for wrapped causes).
type Error struct {
	Kind  Kind
	cause error
}

func (e *Error) Error() string { return e.cause.Error() }
func (e *Error) Unwrap() error { return e.cause }

// New builds a classified error, wrapping the cause with errors.WithStack so
// callers retain a stack trace at the point of classification.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, cause: pkgerrors.WithStack(cause)}
}

// Newf builds a classified error from a format string.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, cause: pkgerrors.Errorf(format, args...)}
}

// KindOf extracts the Kind of err, defaulting to Internal for
// unclassified errors — an invariant violation we did not anticipate
// is exactly the case the design calls "truly unrecoverable".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}
