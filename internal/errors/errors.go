// Package errors defines the service error taxonomy. Every error that can
// reach the HTTP boundary is a ServiceError with a stable machine-readable
// code; internal detail stays in the wrapped cause and is never serialized.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable error codes surfaced in API responses.
const (
	CodeValidationFailed  = "validation_failed"
	CodeInsufficientData  = "insufficient_data"
	CodeModelUnavailable  = "model_unavailable"
	CodeModelFailed       = "model_failed"
	CodeRateLimitExceeded = "rate_limit_exceeded"
	CodeInternal          = "internal_error"
)

// ServiceError is the canonical application error. Message is safe to show
// to callers; the wrapped cause is for logs only.
type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]interface{}

	cause error
}

func (e *ServiceError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error { return e.cause }

// Is matches on code so errors.Is works against constructor results.
func (e *ServiceError) Is(target error) bool {
	var se *ServiceError
	if errors.As(target, &se) {
		return se.Code == e.Code
	}
	return false
}

// ValidationFailed reports a malformed or out-of-range request field.
func ValidationFailed(field, reason string) *ServiceError {
	return &ServiceError{
		Code:       CodeValidationFailed,
		Message:    fmt.Sprintf("invalid %s: %s", field, reason),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]interface{}{"field": field},
	}
}

// InsufficientData reports that the request asked for more history than the
// model has available.
func InsufficientData(requested, available int) *ServiceError {
	return &ServiceError{
		Code:       CodeInsufficientData,
		Message:    fmt.Sprintf("requested %d data points but only %d available", requested, available),
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]interface{}{"requested": requested, "available": available},
	}
}

// ModelUnavailable reports a transient model failure. The next caller may
// succeed.
func ModelUnavailable(cause error) *ServiceError {
	return &ServiceError{
		Code:       CodeModelUnavailable,
		Message:    "prediction model temporarily unavailable",
		HTTPStatus: http.StatusServiceUnavailable,
		cause:      cause,
	}
}

// ModelFailed reports a fatal model failure. Subsequent calls short-circuit
// until the process is restarted.
func ModelFailed(cause error) *ServiceError {
	return &ServiceError{
		Code:       CodeModelFailed,
		Message:    "prediction model failed",
		HTTPStatus: http.StatusServiceUnavailable,
		cause:      cause,
	}
}

// RateLimitExceeded reports that the caller is over its request budget.
func RateLimitExceeded(limit int, window string) *ServiceError {
	return &ServiceError{
		Code:       CodeRateLimitExceeded,
		Message:    fmt.Sprintf("rate limit of %d requests per %s exceeded", limit, window),
		HTTPStatus: http.StatusTooManyRequests,
		Details:    map[string]interface{}{"limit": limit, "window": window},
	}
}

// Internal wraps an unexpected error without leaking its detail.
func Internal(cause error) *ServiceError {
	return &ServiceError{
		Code:       CodeInternal,
		Message:    "internal error",
		HTTPStatus: http.StatusInternalServerError,
		cause:      cause,
	}
}

// AsService extracts a ServiceError from err, or wraps err as internal.
func AsService(err error) *ServiceError {
	var se *ServiceError
	if errors.As(err, &se) {
		return se
	}
	return Internal(err)
}

// IsValidation reports whether err is a caller-side request error.
func IsValidation(err error) bool {
	se := new(ServiceError)
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == CodeValidationFailed || se.Code == CodeInsufficientData
}

// IsTransient reports whether err may succeed on retry.
func IsTransient(err error) bool {
	se := new(ServiceError)
	return errors.As(err, &se) && se.Code == CodeModelUnavailable
}

// IsFatal reports whether err marks the model as permanently unusable.
func IsFatal(err error) bool {
	se := new(ServiceError)
	return errors.As(err, &se) && se.Code == CodeModelFailed
}
