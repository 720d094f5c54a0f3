package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies failures for containment and run summaries
type ErrorKind string

const (
	KindNotFound            ErrorKind = "not_found"
	KindRateLimited         ErrorKind = "rate_limited"
	KindNetwork             ErrorKind = "network_error"
	KindValidation          ErrorKind = "validation_error"
	KindPersistenceConflict ErrorKind = "persistence_conflict"
	KindPersistenceFailure  ErrorKind = "persistence_failure"
	KindConfiguration       ErrorKind = "configuration"
	KindInternal            ErrorKind = "internal"
)

// CustomError represents a classified application error
type CustomError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
	Detail  string    `json:"detail,omitempty"`
	Cause   error     `json:"-"`
}

func (e *CustomError) Error() string {
	msg := e.Message
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Detail)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *CustomError) Unwrap() error {
	return e.Cause
}

// Code maps the error kind to an HTTP status for API responses
func (e *CustomError) Code() int {
	switch e.Kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindValidation:
		return http.StatusBadRequest
	case KindPersistenceConflict:
		return http.StatusConflict
	case KindNetwork:
		return http.StatusBadGateway
	case KindPersistenceFailure:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// KindOf returns the kind of the first CustomError in err's chain
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ce *CustomError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// Common error constructors
func NewNotFoundError(detail string) *CustomError {
	return &CustomError{
		Kind:    KindNotFound,
		Message: "Resource not found",
		Detail:  detail,
	}
}

func NewRateLimitedError(detail string) *CustomError {
	return &CustomError{
		Kind:    KindRateLimited,
		Message: "Rate limited",
		Detail:  detail,
	}
}

func NewNetworkError(detail string, cause error) *CustomError {
	return &CustomError{
		Kind:    KindNetwork,
		Message: "Network request failed",
		Detail:  detail,
		Cause:   cause,
	}
}

func NewValidationError(detail string) *CustomError {
	return &CustomError{
		Kind:    KindValidation,
		Message: "Validation failed",
		Detail:  detail,
	}
}

func NewPersistenceFailureError(detail string, cause error) *CustomError {
	return &CustomError{
		Kind:    KindPersistenceFailure,
		Message: "Persistence failed",
		Detail:  detail,
		Cause:   cause,
	}
}

func NewConfigurationError(detail string) *CustomError {
	return &CustomError{
		Kind:    KindConfiguration,
		Message: "Invalid configuration",
		Detail:  detail,
	}
}

func NewBadRequestError(message string) *CustomError {
	return &CustomError{
		Kind:    KindValidation,
		Message: message,
	}
}

// NewLLMError wraps a reasoning provider failure
func NewLLMError(detail string, cause error) *CustomError {
	return &CustomError{
		Kind:    KindNetwork,
		Message: "LLM processing failed",
		Detail:  detail,
		Cause:   cause,
	}
}
