package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "error without wrapped error",
			appErr:   ErrNoMatchFound,
			expected: "No matching user found",
		},
		{
			name: "error with wrapped error",
			appErr: &AppError{
				Code:       "TEST_ERROR",
				Message:    "Test message",
				StatusCode: 500,
				Err:        errors.New("underlying error"),
			},
			expected: "Test message: underlying error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.appErr.Error(); got != tt.expected {
				t.Errorf("Error() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	appErr := &AppError{
		Code:       "TEST",
		Message:    "test",
		StatusCode: 500,
		Err:        underlying,
	}

	if got := appErr.Unwrap(); got != underlying {
		t.Errorf("Unwrap() = %v, want %v", got, underlying)
	}

	if got := ErrNoFaceDetected.Unwrap(); got != nil {
		t.Errorf("Unwrap() = %v, want nil", got)
	}
}

func TestAppError_WithError(t *testing.T) {
	underlying := errors.New("read dir: permission denied")
	newErr := ErrStorageUnavailable.WithError(underlying)

	if newErr.Code != ErrStorageUnavailable.Code {
		t.Errorf("Code = %v, want %v", newErr.Code, ErrStorageUnavailable.Code)
	}

	if newErr.StatusCode != ErrStorageUnavailable.StatusCode {
		t.Errorf("StatusCode = %v, want %v", newErr.StatusCode, ErrStorageUnavailable.StatusCode)
	}

	if !errors.Is(newErr, underlying) {
		t.Errorf("errors.Is should return true for wrapped error")
	}

	if !errors.Is(newErr, ErrStorageUnavailable) {
		t.Errorf("errors.Is should match the predefined error by code")
	}
}

func TestAppError_Is(t *testing.T) {
	wrapped := fmt.Errorf("enroll alice: %w", ErrInvalidLabel.WithError(errors.New("bad char")))

	if !errors.Is(wrapped, ErrInvalidLabel) {
		t.Errorf("errors.Is(wrapped, ErrInvalidLabel) = false, want true")
	}
	if errors.Is(wrapped, ErrEmptyEmbeddingSet) {
		t.Errorf("errors.Is(wrapped, ErrEmptyEmbeddingSet) = true, want false")
	}

	var appErr *AppError
	if !errors.As(wrapped, &appErr) {
		t.Fatalf("errors.As should match AppError")
	}
	if appErr.Code != "INVALID_LABEL" {
		t.Errorf("Code = %v, want INVALID_LABEL", appErr.Code)
	}
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		err        *AppError
		code       string
		statusCode int
	}{
		{ErrInternal, "INTERNAL_ERROR", 500},
		{ErrBadRequest, "BAD_REQUEST", 400},
		{ErrNotFound, "NOT_FOUND", 404},
		{ErrValidationFailed, "VALIDATION_FAILED", 400},
		{ErrInvalidImage, "INVALID_IMAGE", 422},
		{ErrRateLimitExceeded, "RATE_LIMIT_EXCEEDED", 429},
		{ErrNoFaceDetected, "NO_FACE_DETECTED", 422},
		{ErrNoMatchFound, "NO_MATCH_FOUND", 404},
		{ErrInvalidLabel, "INVALID_LABEL", 400},
		{ErrEmptyEmbeddingSet, "EMPTY_EMBEDDING_SET", 422},
		{ErrDimensionMismatch, "DIMENSION_MISMATCH", 422},
		{ErrLabelConflict, "LABEL_CONFLICT", 409},
		{ErrIdentityNotFound, "IDENTITY_NOT_FOUND", 404},
		{ErrCorruptRecord, "CORRUPT_RECORD", 500},
		{ErrStorageUnavailable, "STORAGE_UNAVAILABLE", 503},
		{ErrProviderUnavailable, "PROVIDER_UNAVAILABLE", 503},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if tt.err.Code != tt.code {
				t.Errorf("Code = %v, want %v", tt.err.Code, tt.code)
			}
			if tt.err.StatusCode != tt.statusCode {
				t.Errorf("StatusCode = %v, want %v", tt.err.StatusCode, tt.statusCode)
			}
		})
	}
}
