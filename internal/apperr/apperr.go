// Package apperr provides error code definitions shared across the storage core.
package apperr

import (
	"errors"
	"fmt"
)

// Code classifies an error for callers that branch on failure kind.
type Code string

const (
	// Format / container errors
	ErrInvalidFormat      Code = "INVALID_FORMAT"
	ErrUnsupportedVersion Code = "UNSUPPORTED_VERSION"

	// Cryptographic errors
	ErrAuthenticationFailed Code = "AUTHENTICATION_FAILED"
	ErrCorrupted            Code = "CORRUPTED"

	// Filesystem errors, eligible for caller retry
	ErrIOFailure Code = "IO_FAILURE"

	// Referenced entity absent
	ErrNotFound Code = "NOT_FOUND"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    Code
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code Code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code Code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error (anywhere in its chain) carries a specific code.
func Is(err error, code Code) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the code of the first AppError in the chain, or "" if none.
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
