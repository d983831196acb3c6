package flatsurf

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrorKind classifies failures surfaced by the core.
type ErrorKind uint8

const (
	// ErrLoad is a malformed or incomplete surface description.
	ErrLoad ErrorKind = iota + 1
	// ErrCompile is a code generation failure: unsupported edge kind mix or degenerate geometry.
	ErrCompile
	// ErrNumeric is a numeric edge case that could not be resolved to a finite value.
	ErrNumeric
	// ErrTeleport is reported when a crossing had to fall back to the last good position.
	ErrTeleport
)

func (k ErrorKind) String() string {
	switch k {
	case ErrLoad:
		return "load"
	case ErrCompile:
		return "compile"
	case ErrNumeric:
		return "numeric"
	case ErrTeleport:
		return "teleport"
	}
	return "ErrorKind(" + strconv.Itoa(int(k)) + ")"
}

// Error is the structured error returned across the package boundary.
type Error struct {
	Kind ErrorKind
	// Context names what was being processed, usually a surface id or file name.
	Context string
	Err     error
}

func (e *Error) Error() string {
	if e.Context == "" {
		return e.Kind.String() + " error: " + e.Err.Error()
	}
	return e.Kind.String() + " error in " + strconv.Quote(e.Context) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err wraps an [*Error] of kind k.
func IsKind(err error, k ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

// ErrSuperseded is returned for a surface swap replaced by a newer request before it was applied.
var ErrSuperseded = errors.New("surface swap superseded by newer request")

func newError(kind ErrorKind, context string, err error) *Error {
	return &Error{Kind: kind, Context: context, Err: err}
}

func loadErrorf(context, format string, args ...any) *Error {
	return newError(ErrLoad, context, fmt.Errorf(format, args...))
}

func compileErrorf(context, format string, args ...any) *Error {
	return newError(ErrCompile, context, fmt.Errorf(format, args...))
}

// errorList accumulates problems so all of them are reported at once.
type errorList struct {
	errs []error
}

func (l *errorList) errorf(format string, args ...any) {
	l.errs = append(l.errs, fmt.Errorf(format, args...))
}

func (l *errorList) err() error {
	return errors.Join(l.errs...)
}
