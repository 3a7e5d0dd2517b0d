package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the stable, machine-readable error category surfaced to API clients
type Kind string

const (
	KindValidation             Kind = "validation"
	KindNotFound               Kind = "not_found"
	KindUnauthorized           Kind = "unauthorized"
	KindForbidden              Kind = "forbidden"
	KindInvalidStateTransition Kind = "invalid_state_transition"
	KindPersistence            Kind = "persistence"
	KindProviderUnavailable    Kind = "provider_unavailable"
	KindRateLimited            Kind = "rate_limited"
	KindInternal               Kind = "internal"
)

// AppError represents a structured application error
type AppError struct {
	Kind       Kind                   `json:"kind"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{}, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// Error constructors

func NewValidationError(code, message string) *AppError {
	return &AppError{
		Kind:       KindValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Kind:       KindNotFound,
		Code:       "RESOURCE_NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
		Details:    map[string]interface{}{"resource": resource},
	}
}

func NewUnauthorizedError(message string) *AppError {
	return &AppError{
		Kind:       KindUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

// NewForbiddenError is returned when the caller lacks the role or does not own
// the agent-scoped entity.
func NewForbiddenError(message string) *AppError {
	return &AppError{
		Kind:       KindForbidden,
		Code:       "FORBIDDEN",
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

// NewInvalidStateTransitionError carries the current state so clients can refresh.
func NewInvalidStateTransitionError(entity, current, action string) *AppError {
	return &AppError{
		Kind:       KindInvalidStateTransition,
		Code:       "INVALID_STATE_TRANSITION",
		Message:    fmt.Sprintf("cannot %s %s in status %s", action, entity, current),
		StatusCode: http.StatusConflict,
		Details: map[string]interface{}{
			"current_status": current,
			"action":         action,
		},
	}
}

// NewPersistenceError hides storage detail from the message; the cause is kept for logs.
func NewPersistenceError(operation string, cause error) *AppError {
	return &AppError{
		Kind:       KindPersistence,
		Code:       "PERSISTENCE_ERROR",
		Message:    "a storage error occurred",
		Cause:      cause,
		Retryable:  true,
		StatusCode: http.StatusInternalServerError,
		Details:    map[string]interface{}{"operation": operation},
	}
}

func NewProviderUnavailableError(provider string, cause error) *AppError {
	return &AppError{
		Kind:       KindProviderUnavailable,
		Code:       "PROVIDER_UNAVAILABLE",
		Message:    fmt.Sprintf("provider %s: error", provider),
		Cause:      cause,
		Retryable:  true,
		StatusCode: http.StatusBadGateway,
		Details:    map[string]interface{}{"provider": provider},
	}
}

func NewRateLimitError(message string) *AppError {
	return &AppError{
		Kind:       KindRateLimited,
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    message,
		Retryable:  true,
		StatusCode: http.StatusTooManyRequests,
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Kind:       KindInternal,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Retryable:  true,
		StatusCode: http.StatusInternalServerError,
	}
}

// Wrap wraps an error with a message using fmt.Errorf with %w
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsKind checks if an error is an AppError of the given kind
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == kind
	}
	return false
}

// KindOf returns the kind of err, or KindInternal for foreign errors
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}

// GetStatusCode extracts HTTP status code from error
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}
