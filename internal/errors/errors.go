// Package errors provides error codes shared by the store, gateways and REST handlers.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a stable, machine-readable error code.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Document errors
	ErrBlockNotFound   ErrorCode = "BLOCK_NOT_FOUND"
	ErrChannelNotFound ErrorCode = "CHANNEL_NOT_FOUND"
	ErrNoChannels      ErrorCode = "NO_CHANNELS"

	// Persistence errors
	ErrPersistFailed ErrorCode = "PERSIST_FAILED"

	// AI errors
	ErrAIInProgress ErrorCode = "AI_IN_PROGRESS"
	ErrAIStale      ErrorCode = "AI_STALE"
	ErrAIFailed     ErrorCode = "AI_FAILED"

	// Backup errors
	ErrExportFailed     ErrorCode = "EXPORT_FAILED"
	ErrImportFailed     ErrorCode = "IMPORT_FAILED"
	ErrInvalidPassword  ErrorCode = "INVALID_PASSWORD"
	ErrCorruptedArchive ErrorCode = "CORRUPTED_ARCHIVE"
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

// Is checks if an error, or any error it wraps, carries the given code.
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the code of the first AppError in the chain, or ErrInternal.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrInternal
}

// HTTPStatus maps an error to the status code the REST surface responds with.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrNotFound, ErrBlockNotFound, ErrChannelNotFound:
		return http.StatusNotFound
	case ErrInvalid, ErrValidation, ErrInvalidPassword, ErrCorruptedArchive, ErrImportFailed:
		return http.StatusBadRequest
	case ErrNoChannels, ErrAIInProgress, ErrAIStale:
		return http.StatusConflict
	case ErrAIFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
