package rest

import (
	"context"
	stderrors "errors"
	"net/http"

	"github.com/davidleathers/commission-protection-backend/internal/domain/errors"
	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/telemetry"
)

// mapError converts any error into a status and an error body. Persistence
// and internal failures never leak their cause.
func mapError(ctx context.Context, err error) (int, *ErrorResponse) {
	traceID := telemetry.TraceID(ctx)

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		status := appErr.StatusCode
		if status == 0 {
			status = statusForKind(appErr.Kind)
		}
		body := &ErrorResponse{
			Kind:    appErr.Kind,
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
			TraceID: traceID,
		}
		switch appErr.Kind {
		case errors.KindPersistence, errors.KindInternal:
			body.Message = "an internal error occurred"
			body.Details = nil
		case errors.KindProviderUnavailable:
			body.Details = nil
		}
		return status, body
	}

	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, &ErrorResponse{
			Kind: errors.KindInternal, Code: "REQUEST_TIMEOUT", Message: "request timed out", TraceID: traceID,
		}
	case stderrors.Is(err, context.Canceled):
		return http.StatusRequestTimeout, &ErrorResponse{
			Kind: errors.KindInternal, Code: "REQUEST_CANCELED", Message: "request was canceled", TraceID: traceID,
		}
	}

	return http.StatusInternalServerError, &ErrorResponse{
		Kind:    errors.KindInternal,
		Code:    "INTERNAL_ERROR",
		Message: "an internal error occurred",
		TraceID: traceID,
	}
}

func statusForKind(kind errors.Kind) int {
	switch kind {
	case errors.KindValidation:
		return http.StatusBadRequest
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindUnauthorized:
		return http.StatusUnauthorized
	case errors.KindForbidden:
		return http.StatusForbidden
	case errors.KindInvalidStateTransition:
		return http.StatusConflict
	case errors.KindProviderUnavailable:
		return http.StatusBadGateway
	case errors.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
