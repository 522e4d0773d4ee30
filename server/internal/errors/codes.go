package errors

import (
	"fmt"
	"net/http"

	pkgerrors "github.com/pkg/errors"
)

// ErrorCode represents a specific error type returned by the timetable API.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeNotFound indicates the addressed schedule record does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	// ErrCodeScheduleConflict indicates a commit was rejected by the conflict rules.
	ErrCodeScheduleConflict ErrorCode = "SCHEDULE_CONFLICT"
	// ErrCodeRateLimitExceeded indicates rate limit has been exceeded.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	// ErrCodeUpstreamUnavailable indicates the schedule backend failed or timed out.
	ErrCodeUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
	// ErrCodeInternal is the fallback for unclassified failures.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

var httpStatus = map[ErrorCode]int{
	ErrCodeInvalidArgument:     http.StatusBadRequest,
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeScheduleConflict:    http.StatusConflict,
	ErrCodeRateLimitExceeded:   http.StatusTooManyRequests,
	ErrCodeUpstreamUnavailable: http.StatusBadGateway,
	ErrCodeInternal:            http.StatusInternalServerError,
}

// APIError represents a structured error for API responses.
type APIError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Cause   error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *APIError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail entry to the error.
func (e *APIError) WithDetail(key string, value any) *APIError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// HTTPStatus maps the code to an HTTP status.
func (e *APIError) HTTPStatus() int {
	if status, ok := httpStatus[e.Code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *APIError {
	return &APIError{Code: ErrCodeInvalidArgument, Message: msg}
}

// NotFound creates a not found error.
func NotFound(msg string) *APIError {
	return &APIError{Code: ErrCodeNotFound, Message: msg}
}

// ScheduleConflict creates a conflict error.
func ScheduleConflict(msg string) *APIError {
	return &APIError{Code: ErrCodeScheduleConflict, Message: msg}
}

// RateLimitExceeded creates a rate limit exceeded error.
func RateLimitExceeded(msg string) *APIError {
	return &APIError{Code: ErrCodeRateLimitExceeded, Message: msg}
}

// UpstreamUnavailable creates an upstream failure error.
func UpstreamUnavailable(msg string, cause error) *APIError {
	return &APIError{Code: ErrCodeUpstreamUnavailable, Message: msg, Cause: cause}
}

// Wrap wraps an existing error with a code.
func Wrap(cause error, code ErrorCode, msg string) *APIError {
	return &APIError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error, or any error it wraps, carries the code.
func IsCode(err error, code ErrorCode) bool {
	var apiErr *APIError
	if pkgerrors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}
