package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for graphsync errors.
type ErrorCode string

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_PARSE_FAILED      ErrorCode = "CONFIG_PARSE_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
	CONFIG_NOT_FOUND         ErrorCode = "CONFIG_NOT_FOUND"
)

// Document mapping error codes
const (
	MALFORMED_DOCUMENT        ErrorCode = "MALFORMED_DOCUMENT"
	UPDATE_TRANSLATION_FAILED ErrorCode = "UPDATE_TRANSLATION_FAILED"
)

// Graph store error codes
const (
	CONSTRAINT_FAILED          ErrorCode = "CONSTRAINT_FAILED"
	STORE_COMMUNICATION_FAILED ErrorCode = "STORE_COMMUNICATION_FAILED"
)

// Change feed error codes
const (
	SOURCE_FAILED     ErrorCode = "SOURCE_FAILED"
	CHECKPOINT_FAILED ErrorCode = "CHECKPOINT_FAILED"
)

// SyncError represents a structured error with error code, message, and optional cause.
// It supports error wrapping and retryability hints for error handling logic.
type SyncError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
	// Context carries replay information (namespace, document id, ...).
	Context map[string]any
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *SyncError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
// This enables using errors.Is() and errors.As() with wrapped errors.
func (e *SyncError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
// Returns true if target is a SyncError with the same Code.
func (e *SyncError) Is(target error) bool {
	var syncErr *SyncError
	if errors.As(target, &syncErr) {
		return e.Code == syncErr.Code
	}
	return false
}

// WithContext attaches a key/value pair and returns the error for chaining.
func (e *SyncError) WithContext(key string, value any) *SyncError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// NewError creates a new non-retryable SyncError with the given code and message.
func NewError(code ErrorCode, message string) *SyncError {
	return &SyncError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     nil,
	}
}

// NewRetryableError creates a new retryable SyncError with the given code and message.
// Use this for transient errors that may succeed on retry (e.g., network timeouts).
func NewRetryableError(code ErrorCode, message string) *SyncError {
	return &SyncError{
		Code:      code,
		Message:   message,
		Retryable: true,
		Cause:     nil,
	}
}

// WrapError creates a new non-retryable SyncError that wraps an existing error.
// The wrapped error is accessible via Unwrap() for error chain inspection.
func WrapError(code ErrorCode, message string, cause error) *SyncError {
	return &SyncError{
		Code:      code,
		Message:   message,
		Retryable: false,
		Cause:     cause,
	}
}

// WrapRetryableError is WrapError with the retryable hint set.
func WrapRetryableError(code ErrorCode, message string, cause error) *SyncError {
	err := WrapError(code, message, cause)
	err.Retryable = true
	return err
}

// CodeOf returns the code of the outermost SyncError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Code
	}
	return ""
}

// IsRetryable reports whether err carries a retryable SyncError.
func IsRetryable(err error) bool {
	var syncErr *SyncError
	if errors.As(err, &syncErr) {
		return syncErr.Retryable
	}
	return false
}
