// Package domainerrors defines the coded error type every engine operation
// returns. Callers branch on the code, never on error strings, so the
// taxonomy below is the contract between the engine and its callers
// (HTTP layer, batch jobs, tests).
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies the class of failure. ConcurrentModification is the only
// code a caller is expected to retry automatically; everything else is a
// genuine user or business error and must be surfaced verbatim.
type Code string

const (
	// Workflow errors.
	CodeInvalidTransition      Code = "invalid_transition"
	CodeOutOfOrder             Code = "out_of_order"
	CodeInvalidQuoteState      Code = "invalid_quote_state"
	CodeConcurrentModification Code = "concurrent_modification"
	CodeAlreadyFinalized       Code = "already_finalized"

	// Input and lookup errors.
	CodeValidation   Code = "validation_error"
	CodeNotFound     Code = "not_found"
	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"

	// Infrastructure errors.
	CodeTimeout  Code = "timeout"
	CodeInternal Code = "internal_error"
)

// Error carries a code plus a human-readable message. The wrapped cause, if
// any, is preserved for errors.Is/As but never leaks to API responses.
type Error struct {
	Code    Code
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

// New constructs a coded error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause. If the cause
// already carries a code, that code is preserved so translation layers do
// not clobber more specific classifications.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	var coded *Error
	if errors.As(err, &coded) {
		code = coded.Code
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for
// unclassified errors so nothing surprising reaches a client.
func CodeOf(err error) Code {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return CodeInternal
}

// MessageOf extracts the message from err without the cause chain.
func MessageOf(err error) string {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Message
	}
	return ""
}
