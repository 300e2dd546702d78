package models

import (
	"errors"
	"fmt"
)

// Error codes used in API responses and internal error handling.
const (
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeExtraction     = "EXTRACTION_FAILED"
	ErrCodeBrowserLaunch  = "BROWSER_LAUNCH_FAILED"
	ErrCodeNavigation     = "NAVIGATION_FAILED"
	ErrCodeTimeout        = "TIMEOUT"
	ErrCodeRateLimited    = "RATE_LIMITED"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

// ErrorResponse is the JSON error body returned by the API.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// SearchError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type SearchError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *SearchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SearchError) Unwrap() error {
	return e.Err
}

// NewSearchError creates a new SearchError.
func NewSearchError(code, message string, err error) *SearchError {
	return &SearchError{Code: code, Message: message, Err: err}
}

// ToResponse converts an internal error to the API-facing error body.
func (e *SearchError) ToResponse() ErrorResponse {
	return ErrorResponse{Error: e.Message, Code: e.Code}
}

// HasCode reports whether err is, or wraps, a SearchError with the given code.
func HasCode(err error, code string) bool {
	var se *SearchError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}
