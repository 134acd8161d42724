// Package dErrors provides coded domain errors.
//
// Services translate infrastructure facts (sentinel errors from stores,
// collaborator failures) into coded errors at the service boundary; callers
// branch on codes via HasCode rather than on error strings.
package dErrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for programmatic handling.
type Code string

const (
	// Resource facts.
	CodeNotFound Code = "not_found"
	CodeConflict Code = "conflict"

	// Lifecycle and gate failures.
	CodeInvalidStateTransition Code = "invalid_state_transition"
	CodeSourceNotVerified      Code = "source_not_verified"
	CodeSourceNotPublic        Code = "source_not_public"

	// Content rejections.
	CodeFileTooLarge    Code = "file_too_large"
	CodeInvalidMimeType Code = "invalid_mime_type"

	// Input and invariant failures.
	CodeInvalidInput       Code = "invalid_input"
	CodeValidation         Code = "validation"
	CodeInvariantViolation Code = "invariant_violation"

	// Infrastructure.
	CodeInternal    Code = "internal"
	CodeTimeout     Code = "timeout"
	CodeUnavailable Code = "unavailable"
)

// Error is a coded domain error, optionally wrapping a cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs a coded error without a cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap annotates a cause with a code and message. Returns nil when err is nil.
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any error in err's chain carries the given code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// Is is a readability alias for HasCode, for use in test assertions.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in err's chain, or CodeInternal when err
// carries no code.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
