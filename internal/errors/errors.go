// Package errors provides error code definitions shared across the core.
package errors

import "fmt"

// ErrorCode identifies a class of failure for callers that need more than a
// message (the UI layer surfaces some codes differently).
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Database errors
	ErrDatabase   ErrorCode = "DATABASE_ERROR"
	ErrMigration  ErrorCode = "MIGRATION_FAILED"
	ErrConstraint ErrorCode = "CONSTRAINT_VIOLATION"

	// Remote provider errors
	ErrRemoteUnavailable ErrorCode = "REMOTE_UNAVAILABLE"
	ErrRemoteRejected    ErrorCode = "REMOTE_REJECTED"
	ErrRemoteParse       ErrorCode = "REMOTE_PARSE_ERROR"

	// Sync errors
	ErrPushFailed      ErrorCode = "PUSH_FAILED"
	ErrPushFatal       ErrorCode = "PUSH_FATAL"
	ErrPullSkipped     ErrorCode = "PULL_SKIPPED"
	ErrPullFailed      ErrorCode = "PULL_FAILED"
	ErrReconcileFailed ErrorCode = "RECONCILE_FAILED"
	ErrPayloadCorrupt  ErrorCode = "PAYLOAD_CORRUPT"

	// Purge errors
	ErrEntityInUse ErrorCode = "ENTITY_IN_USE"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
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
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error is of a specific code.
func Is(err error, code ErrorCode) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}
