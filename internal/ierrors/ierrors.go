// Package ierrors gives every failure surfaced by the builders and readers
// one of a small fixed set of kinds, so callers (and CLI mains) can decide
// how to report a failure without string-matching error messages.
package ierrors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a failure into one of the categories the core promises to
// surface; see spec section 7.
type Kind int

const (
	// BadInput covers malformed JSON manifests and bad CLI arguments.
	BadInput Kind = iota
	// PeParse covers bad magic, truncated headers, and invalid RVAs.
	PeParse
	// NoExports covers a missing or zero-sized export directory.
	NoExports
	// BadName covers member names over 15 bytes and section names over 8.
	BadName
	// Io covers open/write/map failures.
	Io
	// OutOfMemory covers allocation failure translating a low-level panic
	// or runtime error into a reportable kind.
	OutOfMemory
)

func (k Kind) String() string {
	switch k {
	case BadInput:
		return "bad input"
	case PeParse:
		return "PE parse error"
	case NoExports:
		return "no exports"
	case BadName:
		return "bad name"
	case Io:
		return "I/O error"
	case OutOfMemory:
		return "out of memory"
	default:
		return "unknown error"
	}
}

// Error is the concrete error type returned by every package under
// internal/. Op names the operation that failed (e.g. "AddObject",
// "OpenPE"); Err is the underlying cause, which may be nil when the kind
// itself is the whole story.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err (which may be nil) under the given kind and operation name.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Wrap attaches op as context to err using github.com/pkg/errors, then
// tags the result with kind. Use this instead of New when err already
// carries useful detail that should not be discarded.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.WithMessage(err, op)}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
