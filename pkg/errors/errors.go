// Package errors defines common error types for the application.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for the application. The five after CodeUnknown correspond
// to the five error kinds of the run: configuration, IO/scatter, the hard
// memory-cap violation, an ignored unknown-eid message, and the Finish
// gather overflow that triggers the distributed fallback. The last three
// cover transport, artifact storage and run repository failures.
const (
	CodeUnknown         = "UNKNOWN_ERROR"
	CodeConfigError     = "CONFIG_ERROR"
	CodeIOError         = "IO_ERROR"
	CodeMemoryCap       = "MEMORY_CAP_VIOLATION"
	CodeUnknownEid      = "UNKNOWN_EID"
	CodeFinishOverflow  = "FINISH_OVERFLOW"
	CodeTransportError  = "TRANSPORT_ERROR"
	CodeStorageError    = "STORAGE_ERROR"
	CodeRepositoryError = "REPOSITORY_ERROR"
)

// AppError represents an application error with a code and message.
type AppError struct {
	Code    string
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

// Is checks if the error matches the target.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error instances.
var (
	ErrConfigError     = New(CodeConfigError, "configuration error")
	ErrIOError         = New(CodeIOError, "edge list IO error")
	ErrMemoryCap       = New(CodeMemoryCap, "per-machine memory cap violated")
	ErrUnknownEid      = New(CodeUnknownEid, "message referenced an unknown edge id")
	ErrFinishOverflow  = New(CodeFinishOverflow, "finish gather exceeded threshold")
	ErrTransportError  = New(CodeTransportError, "collective exchange transport error")
	ErrStorageError    = New(CodeStorageError, "artifact storage error")
	ErrRepositoryError = New(CodeRepositoryError, "run repository error")
)

// IsMemoryCap reports whether err is (or wraps) a memory-cap violation.
// This is the only fatal runtime class in steady state; every rank must
// abort collectively when it sees one.
func IsMemoryCap(err error) bool {
	return errors.Is(err, ErrMemoryCap)
}

// IsConfigError reports whether err is (or wraps) a configuration error.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrConfigError)
}

// IsIOError reports whether err is (or wraps) an IO error.
func IsIOError(err error) bool {
	return errors.Is(err, ErrIOError)
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetErrorMessage extracts the error message from an error.
func GetErrorMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
