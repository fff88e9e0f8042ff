// Package errors provides a structured error type with a small set of codes
// shared by the reduction tools
package errors

// Import as perr to avoid shadowing the standard library package

import (
	stderrs "errors"
	"fmt"
)

// ErrorCode classifies failures for reporting and process exit status
type ErrorCode uint16

const (
	// ErrorCodeUnknown is for unclassified errors
	ErrorCodeUnknown ErrorCode = iota

	// ErrorCodeConfiguration is for invalid parameters or inconsistent inputs,
	// detected before any row is processed
	ErrorCodeConfiguration

	// ErrorCodeIO is for open/create/read/write failures in a row store
	ErrorCodeIO

	// ErrorCodeCanceled is for runs interrupted by the operator
	ErrorCodeCanceled
)

// String returns a short label used in log fields
func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeConfiguration:
		return "configuration"
	case ErrorCodeIO:
		return "io"
	case ErrorCodeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// ExitCodeOf maps an ErrorCode to a process exit status
func ExitCodeOf(c ErrorCode) int {
	switch c {
	case ErrorCodeConfiguration:
		return 2
	case ErrorCodeCanceled:
		return 130
	default:
		return 1
	}
}

// Error is the structured error type
// msg is operator facing; code is machine facing; op is an optional operation tag
type Error struct {
	orig error
	msg  string
	code ErrorCode
	op   string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.orig)
	}
	return e.msg
}

// Unwrap returns the wrapped error, if any
func (e *Error) Unwrap() error { return e.orig }

// Code returns the error code
func (e *Error) Code() ErrorCode { return e.code }

// Op returns the operation label, if set
func (e *Error) Op() string { return e.op }

// As unwraps and returns (*Error, true) if err is one of ours
func As(err error) (*Error, bool) {
	var e *Error
	if stderrs.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf extracts an ErrorCode from any error, defaulting to Unknown
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.code
	}
	return ErrorCodeUnknown
}

// IsCode reports whether err has the given code
func IsCode(err error, code ErrorCode) bool { return CodeOf(err) == code }

// ExitCode returns the process exit status for err; 0 for nil
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	return ExitCodeOf(CodeOf(err))
}

// WithOp attaches an operation label to an *Error (copy-on-write). If err isn't *Error, returns err unchanged
func WithOp(err error, op string) error {
	if e, ok := As(err); ok {
		c := *e
		c.op = op
		return &c
	}
	return err
}

// Constructors

// New returns a new *Error with the given code and message
func New(code ErrorCode, msg string) error { return &Error{code: code, msg: msg} }

// Newf returns a new *Error with code and formatted message
func Newf(code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...)}
}

// Wrap returns a new *Error that wraps orig with code and message
func Wrap(orig error, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, orig: orig}
}

// Wrapf returns a new *Error that wraps orig with code and formatted message
func Wrapf(orig error, code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...), orig: orig}
}

// Sugar

// Configf returns a configuration error
func Configf(format string, a ...any) error { return Newf(ErrorCodeConfiguration, format, a...) }

// IOf returns an I/O error
func IOf(format string, a ...any) error { return Newf(ErrorCodeIO, format, a...) }

// WrapIO wraps err as an I/O error; nil stays nil
func WrapIO(err error, format string, a ...any) error {
	if err == nil {
		return nil
	}
	return Wrapf(err, ErrorCodeIO, format, a...)
}
