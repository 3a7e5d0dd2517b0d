package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
)

// ProviderError represents a failed vendor call
type ProviderError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Provider   string `json:"provider"`
	Retry      bool   `json:"retry"`
	StatusCode int    `json:"status_code,omitempty"`
	// Partial is set when records were returned alongside the error
	Partial bool `json:"partial,omitempty"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %s", e.Provider, e.Message)
}

// Standard error codes
const (
	ErrCodeConnectionFailed     = "CONNECTION_FAILED"
	ErrCodeAuthenticationFailed = "AUTH_FAILED"
	ErrCodeRateLimitExceeded    = "RATE_LIMIT_EXCEEDED"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
	ErrCodeInvalidResponse      = "INVALID_RESPONSE"
	ErrCodeTimeout              = "TIMEOUT"
	ErrCodeProviderUnavailable  = "PROVIDER_UNAVAILABLE"
	ErrCodeNotConfigured        = "NOT_CONFIGURED"
	ErrCodeCircuitOpen          = "CIRCUIT_OPEN"
)

// Code extracts the provider error code, classifying context errors as timeouts
func Code(err error) string {
	if err == nil {
		return ""
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrCodeTimeout
	}
	if errors.Is(err, ErrCircuitOpen) {
		return ErrCodeCircuitOpen
	}
	return ErrCodeProviderUnavailable
}

// IsPartial reports whether err accompanies usable records that cover only
// part of the search
func IsPartial(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe) && pe.Partial
}

// partialError marks the failed part of a multi-call search
func partialError(provider, part string, err error) *ProviderError {
	pe := newError(provider, Code(err), err.Error(), true)
	var cause *ProviderError
	if errors.As(err, &cause) {
		copied := *cause
		pe = &copied
	}
	pe.Partial = true
	pe.Message = part + " search: " + pe.Message
	return pe
}

func newError(provider, code, message string, retry bool) *ProviderError {
	return &ProviderError{Code: code, Message: message, Provider: provider, Retry: retry}
}

// transportError classifies a failed round trip
func transportError(provider string, err error) *ProviderError {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return newError(provider, ErrCodeTimeout, "request timed out", true)
	}
	return newError(provider, ErrCodeConnectionFailed, fmt.Sprintf("request failed: %v", err), true)
}

// httpError maps a non-2xx vendor response
func httpError(provider string, resp *http.Response) *ProviderError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))

	pe := &ProviderError{Provider: provider, StatusCode: resp.StatusCode}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		pe.Code = ErrCodeAuthenticationFailed
		pe.Message = "authentication failed"
	case resp.StatusCode == http.StatusTooManyRequests:
		pe.Code = ErrCodeRateLimitExceeded
		pe.Message = "vendor rate limit exceeded"
		pe.Retry = true
	case resp.StatusCode >= 500:
		pe.Code = ErrCodeProviderUnavailable
		pe.Message = fmt.Sprintf("HTTP %d", resp.StatusCode)
		pe.Retry = true
	default:
		pe.Code = ErrCodeInvalidRequest
		pe.Message = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	if len(body) > 0 {
		pe.Message += ": " + string(body)
	}
	return pe
}
