package domain

import (
	"fmt"
)

type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code, so copies produced by
// WithError still compare equal to the predefined value.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func (e *AppError) WithError(err error) *AppError {
	return &AppError{
		Code:       e.Code,
		Message:    e.Message,
		StatusCode: e.StatusCode,
		Err:        err,
	}
}

// Pre-defined errors
var (
	ErrInternal = &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    "An unexpected error occurred",
		StatusCode: 500,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: 400,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: 404,
	}

	ErrValidationFailed = &AppError{
		Code:       "VALIDATION_FAILED",
		Message:    "Request validation failed",
		StatusCode: 400,
	}

	ErrInvalidImage = &AppError{
		Code:       "INVALID_IMAGE",
		Message:    "Invalid image format or corrupted file",
		StatusCode: 422,
	}

	ErrRateLimitExceeded = &AppError{
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "Rate limit exceeded, please try again later",
		StatusCode: 429,
	}

	// Recognition outcomes. These are expected results, not faults.
	ErrNoFaceDetected = &AppError{
		Code:       "NO_FACE_DETECTED",
		Message:    "No face detected in the image",
		StatusCode: 422,
	}

	ErrNoMatchFound = &AppError{
		Code:       "NO_MATCH_FOUND",
		Message:    "No matching user found",
		StatusCode: 404,
	}

	// Gallery input errors
	ErrInvalidLabel = &AppError{
		Code:       "INVALID_LABEL",
		Message:    "Identity label is empty or contains unsupported characters",
		StatusCode: 400,
	}

	ErrEmptyEmbeddingSet = &AppError{
		Code:       "EMPTY_EMBEDDING_SET",
		Message:    "At least one embedding is required",
		StatusCode: 422,
	}

	ErrDimensionMismatch = &AppError{
		Code:       "DIMENSION_MISMATCH",
		Message:    "Embedding dimensionality does not match the gallery",
		StatusCode: 422,
	}

	ErrLabelConflict = &AppError{
		Code:       "LABEL_CONFLICT",
		Message:    "Another identity already uses this label with different letter case",
		StatusCode: 409,
	}

	ErrIdentityNotFound = &AppError{
		Code:       "IDENTITY_NOT_FOUND",
		Message:    "Identity not found",
		StatusCode: 404,
	}

	// Gallery storage faults
	ErrCorruptRecord = &AppError{
		Code:       "CORRUPT_RECORD",
		Message:    "Gallery record could not be parsed",
		StatusCode: 500,
	}

	ErrStorageUnavailable = &AppError{
		Code:       "STORAGE_UNAVAILABLE",
		Message:    "Gallery storage is unavailable",
		StatusCode: 503,
	}

	ErrProviderUnavailable = &AppError{
		Code:       "PROVIDER_UNAVAILABLE",
		Message:    "Face recognition backend is unavailable",
		StatusCode: 503,
	}
)
