// Package errors tests for error code definitions and error handling.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestAppError_Error verifies error message formatting.
func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appError *AppError
		want     string
	}{
		{
			name:     "error without underlying error",
			appError: &AppError{Code: ErrInternal, Message: "something failed"},
			want:     "[INTERNAL_ERROR] something failed",
		},
		{
			name:     "error with underlying error",
			appError: &AppError{Code: ErrPersistFailed, Message: "save", Err: errors.New("disk full")},
			want:     "[PERSIST_FAILED] save: disk full",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.appError.Error())
		})
	}
}

func TestWrapUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := Wrap(ErrExportFailed, "export", inner)

	assert.ErrorIs(t, err, inner)
	assert.Equal(t, ErrExportFailed, err.Code)
}

func TestIs_ThroughWrapping(t *testing.T) {
	err := fmt.Errorf("handler: %w", New(ErrBlockNotFound, "block b_1 not found"))

	assert.True(t, Is(err, ErrBlockNotFound))
	assert.False(t, Is(err, ErrChannelNotFound))
	assert.False(t, Is(errors.New("plain"), ErrBlockNotFound))
	assert.False(t, Is(nil, ErrBlockNotFound))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrNoChannels, CodeOf(New(ErrNoChannels, "x")))
	assert.Equal(t, ErrInternal, CodeOf(errors.New("plain")))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrBlockNotFound, http.StatusNotFound},
		{ErrChannelNotFound, http.StatusNotFound},
		{ErrValidation, http.StatusBadRequest},
		{ErrInvalidPassword, http.StatusBadRequest},
		{ErrAIInProgress, http.StatusConflict},
		{ErrNoChannels, http.StatusConflict},
		{ErrAIFailed, http.StatusBadGateway},
		{ErrPersistFailed, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(New(tt.code, "x")))
		})
	}

	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("plain")))
}
