// Package errkind provides a closed taxonomy of error categories shared
// across the gnsscore packages, so callers can branch on failure class with
// errors.Is/errors.As without depending on package-specific sentinel types.
//
// Grounded on the status/return-code conventions in FengXuebin-gnssgo's
// pntpos.go (ValSol) and rtkpos.go (ValidPos), generalized into an
// idiomatic wrapped-error taxonomy rather than the teacher's integer codes.
package errkind

import (
	"errors"
	"fmt"
)

// Kind is one of a closed set of failure categories.
type Kind int

const (
	Unknown Kind = iota
	Config
	Input
	Ephemeris
	Geometry
	Filter
	Ambiguity
)

func (k Kind) String() string {
	switch k {
	case Config:
		return "config"
	case Input:
		return "input"
	case Ephemeris:
		return "ephemeris"
	case Geometry:
		return "geometry"
	case Filter:
		return "filter"
	case Ambiguity:
		return "ambiguity"
	}
	return "unknown"
}

// Error is a Kind-tagged error that wraps an underlying cause.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Wrap annotates err with a failure kind and operation name. Returns nil if
// err is nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// New builds a Kind-tagged error from a message, matching fmt.Errorf's
// formatting.
func New(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Of reports whether err (or anything it wraps) carries the given Kind.
func Of(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
