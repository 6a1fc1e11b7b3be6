// Package errors provides a structured error type with wrapping and metadata
package errors

// Always import the project errors package as perr (platform/errors)

import (
	stderrs "errors"
	"fmt"
)

// ErrorCode defines supported error codes used across the slicer
// Values are stable for log and metric labels; add sparingly
type ErrorCode uint16

const (
	// ErrorCodeUnknown is for unclassified errors
	ErrorCodeUnknown ErrorCode = iota

	// ErrorCodeConfig is for malformed or inconsistent start-up configuration (never retried)
	ErrorCodeConfig

	// ErrorCodeQuery is for a failed count or fetch against the searchable store (retryable)
	ErrorCodeQuery

	// ErrorCodeRetryExhausted is for a slice that kept failing past the retry ceiling
	ErrorCodeRetryExhausted

	// ErrorCodeUnavailable is for transient errors where retry may succeed
	ErrorCodeUnavailable

	// ErrorCodeInvalidArgument is for bad input parameters
	ErrorCodeInvalidArgument

	// ErrorCodeNotFound is for missing rows
	ErrorCodeNotFound

	// ErrorCodeConflict is for lease and ownership contention
	ErrorCodeConflict

	// ErrorCodeDB is for general database errors
	ErrorCodeDB
)

var codeNames = [...]string{
	ErrorCodeUnknown:         "unknown",
	ErrorCodeConfig:          "config",
	ErrorCodeQuery:           "query",
	ErrorCodeRetryExhausted:  "retry_exhausted",
	ErrorCodeUnavailable:     "unavailable",
	ErrorCodeInvalidArgument: "invalid_argument",
	ErrorCodeNotFound:        "not_found",
	ErrorCodeConflict:        "conflict",
	ErrorCodeDB:              "db",
}

// String returns a stable label for the code
func (c ErrorCode) String() string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return "unknown"
}

// ErrNotFound is a sentinel not found error for convenience
var ErrNotFound = New(ErrorCodeNotFound, "not found")

// Error is the structured error type with wrapping and metadata
// msg is developer facing; code is machine facing
// key is optional (config key or slice fingerprint); orig is the wrapped cause
type Error struct {
	orig error
	msg  string
	code ErrorCode
	key  string
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

// Key returns the config key or fingerprint attached to the error, if any
func (e *Error) Key() string { return e.key }

// Root returns the deepest wrapped cause
func Root(err error) error {
	for err != nil {
		u := stderrs.Unwrap(err)
		if u == nil {
			return err
		}
		err = u
	}
	return nil
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

// As unwraps and returns (*Error, true) if err is one of ours
func As(err error) (*Error, bool) {
	var e *Error
	if stderrs.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Mutators (copy-on-write)

// WithKey attaches a key to an *Error (copy-on-write). If err isn't *Error, returns err unchanged
func WithKey(err error, key string) error {
	if e, ok := As(err); ok {
		c := *e
		c.key = key
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

// Configf returns a start-up configuration error
func Configf(format string, a ...any) error { return Newf(ErrorCodeConfig, format, a...) }

// ConfigKeyf returns a configuration error tagged with the offending key
func ConfigKeyf(key, format string, a ...any) error {
	return &Error{code: ErrorCodeConfig, msg: fmt.Sprintf(format, a...), key: key}
}

// Query wraps an oracle failure for the slice identified by fingerprint
func Query(orig error, fingerprint string) error {
	if _, ok := As(orig); ok && !Retryable(orig) {
		return WithKey(orig, fingerprint)
	}
	return &Error{code: ErrorCodeQuery, msg: "count query failed", key: fingerprint, orig: orig}
}

// RetryExhausted wraps the last failure of a slice that ran out of attempts
func RetryExhausted(orig error, fingerprint string, attempts int) error {
	return &Error{
		code: ErrorCodeRetryExhausted,
		msg:  fmt.Sprintf("slice %s failed after %d attempts", fingerprint, attempts),
		key:  fingerprint,
		orig: orig,
	}
}

// InvalidArgf returns an invalid argument error
func InvalidArgf(format string, a ...any) error { return Newf(ErrorCodeInvalidArgument, format, a...) }

// Unavailablef returns an unavailable error
func Unavailablef(format string, a ...any) error { return Newf(ErrorCodeUnavailable, format, a...) }

// Retry semantics

// Retryable reports whether the error is worth another attempt.
// Query and unavailable codes are retryable; otherwise the backend rules in pg.go decide
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch CodeOf(err) {
	case ErrorCodeQuery, ErrorCodeUnavailable:
		return true
	case ErrorCodeConfig, ErrorCodeRetryExhausted:
		return false
	}
	return IsRetryable(err)
}
