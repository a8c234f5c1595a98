package deepface

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDeepFaceUnavailable = errors.New("deepface service unavailable")
	ErrInvalidResponse     = errors.New("invalid response from deepface")
	ErrInvalidImageFormat  = errors.New("invalid image format for deepface")
)

// StatusError is a non-2xx answer from the DeepFace API.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("deepface returned status %d: %s", e.StatusCode, e.Body)
}

// isClientError reports whether err is a 4xx answer, which retrying
// cannot fix.
func isClientError(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return false
	}
	return statusErr.StatusCode >= 400 && statusErr.StatusCode < 500
}

// isNoFaceError reports whether DeepFace rejected the image because
// enforce_detection found no face in it.
func isNoFaceError(err error) bool {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != 400 {
		return false
	}
	return strings.Contains(strings.ToLower(statusErr.Body), "face could not be detected")
}
