package psychro

import (
	"errors"
	"fmt"
)

// Code classifies why the engine refused to produce a state.
// It is comparable and implements error, so callers can match with errors.Is.
type Code string

func (c Code) Error() string { return string(c) }

const (
	// InvalidInput: non-finite, implausible or physically inconsistent readings.
	InvalidInput Code = "invalid_input"
	// DomainError: a temperature outside the saturation correlation's range.
	DomainError Code = "domain_error"
	// ConvergenceError: the dew point solver hit its iteration cap.
	ConvergenceError Code = "convergence_error"
)

// Error carries a Code together with the failing operation and detail.
type Error struct {
	C   Code
	Op  string
	Msg string
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Op + ": " + string(e.C) + ": " + e.Msg
	}
	return e.Op + ": " + string(e.C)
}

func (e *Error) Unwrap() error { return e.C }
func (e *Error) Code() Code    { return e.C }

func newError(c Code, op, format string, args ...any) *Error {
	return &Error{C: c, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the rejection code from err. ok is false for nil or
// errors that did not originate in this package.
func CodeOf(err error) (code Code, ok bool) {
	if err == nil {
		return "", false
	}
	var e *Error
	if errors.As(err, &e) {
		return e.C, true
	}
	var c Code
	if errors.As(err, &c) {
		return c, true
	}
	return "", false
}
