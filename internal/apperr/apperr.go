// Package apperr defines the closed set of abstract error kinds surfaced
// across the compliance core. Components never return raw driver or
// stdlib errors to their callers; they wrap them into one of these kinds
// so a caller can discriminate without importing component internals.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one of the seven abstract error categories the core exposes.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindValidation Kind = "validation"
	KindState      Kind = "state"
	KindConflict   Kind = "conflict"
	KindTimeout    Kind = "timeout"
	KindDependency Kind = "dependency"
	KindFatal      Kind = "fatal"
)

// Error is the concrete error type every component constructs. Code is a
// stable machine-readable identifier (e.g. "DuplicateCode", "NotApproved");
// Message is a human-readable description safe to surface to a caller.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs an Error with no wrapped cause.
func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap constructs an Error carrying cause as its underlying error.
func Wrap(kind Kind, code string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: cause.Error(), cause: cause}
}

// KindOf extracts the Kind of err, or "" if err is not (or does not wrap) an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CodeOf extracts the stable Code of err, or "" if err does not wrap an *Error.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

func NotFound(code, message string) *Error   { return New(KindNotFound, code, message) }
func Validation(code, message string) *Error { return New(KindValidation, code, message) }
func State(code, message string) *Error      { return New(KindState, code, message) }
func Conflict(code, message string) *Error   { return New(KindConflict, code, message) }
func Timeout(code string, cause error) *Error {
	return Wrap(KindTimeout, code, cause)
}
func Dependency(code string, cause error) *Error {
	return Wrap(KindDependency, code, cause)
}
func Fatal(code, message string) *Error { return New(KindFatal, code, message) }
