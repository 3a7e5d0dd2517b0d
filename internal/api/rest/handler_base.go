package rest

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/davidleathers/commission-protection-backend/internal/domain/errors"
)

const maxBodySize = 1 << 20

// ResponseEnvelope wraps all API responses
type ResponseEnvelope struct {
	Success bool           `json:"success"`
	Data    interface{}    `json:"data,omitempty"`
	Error   *ErrorResponse `json:"error,omitempty"`
	Meta    ResponseMeta   `json:"meta"`
}

// ResponseMeta contains response metadata
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
}

// ErrorResponse is the error half of the envelope
type ErrorResponse struct {
	Kind    errors.Kind            `json:"kind"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	TraceID string                 `json:"trace_id,omitempty"`
}

// BaseHandler carries the shared decode/encode helpers
type BaseHandler struct {
	validator  *validator.Validate
	apiVersion string
	logger     *slog.Logger
}

// NewBaseHandler creates a base handler. JSON field names are used in
// validation messages.
func NewBaseHandler(apiVersion string, logger *slog.Logger) *BaseHandler {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if logger == nil {
		logger = slog.Default()
	}
	return &BaseHandler{
		validator:  v,
		apiVersion: apiVersion,
		logger:     logger,
	}
}

// DecodeAndValidate reads a JSON body into v and runs struct validation
func (h *BaseHandler) DecodeAndValidate(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return errors.NewValidationError("UNSUPPORTED_MEDIA_TYPE", "Content-Type must be application/json")
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			return errors.NewValidationError("BODY_TOO_LARGE", fmt.Sprintf("request body exceeds %d bytes", maxBodySize))
		}
		return errors.NewValidationError("UNREADABLE_BODY", "failed to read request body")
	}
	if len(body) == 0 {
		return errors.NewValidationError("EMPTY_BODY", "request body is required")
	}
	if err := json.Unmarshal(body, v); err != nil {
		return decodeError(err)
	}
	if err := h.validator.Struct(v); err != nil {
		return h.formatValidationError(err)
	}
	return nil
}

func decodeError(err error) error {
	var syntaxErr *json.SyntaxError
	if stderrors.As(err, &syntaxErr) {
		return errors.NewValidationError("INVALID_JSON", "invalid JSON syntax").
			WithDetails(map[string]interface{}{"offset": syntaxErr.Offset})
	}
	var typeErr *json.UnmarshalTypeError
	if stderrors.As(err, &typeErr) {
		return errors.NewValidationError("TYPE_MISMATCH", fmt.Sprintf("invalid type for field '%s'", typeErr.Field)).
			WithDetails(map[string]interface{}{"expected": typeErr.Type.String(), "got": typeErr.Value})
	}
	return errors.NewValidationError("INVALID_JSON", err.Error())
}

// formatValidationError converts validator errors to a field map
func (h *BaseHandler) formatValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !stderrors.As(err, &validationErrors) {
		return errors.NewValidationError("VALIDATION_FAILED", err.Error())
	}

	fields := make(map[string]interface{}, len(validationErrors))
	for _, fe := range validationErrors {
		var msg string
		switch fe.Tag() {
		case "required":
			msg = "this field is required"
		case "oneof":
			msg = fmt.Sprintf("must be one of: %s", fe.Param())
		case "gtfield":
			msg = fmt.Sprintf("must be after %s", fe.Param())
		case "uuid":
			msg = "must be a valid UUID"
		default:
			msg = fmt.Sprintf("failed %s validation", fe.Tag())
		}
		fields[fe.Field()] = msg
	}
	return errors.NewValidationError("VALIDATION_FAILED", "request validation failed").
		WithDetails(map[string]interface{}{"fields": fields})
}

// writeSuccess writes a success envelope
func (h *BaseHandler) writeSuccess(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	h.writeJSON(w, status, ResponseEnvelope{
		Success: true,
		Data:    data,
		Meta:    h.meta(r.Context()),
	})
}

// writeError maps err onto the error envelope
func (h *BaseHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := mapError(r.Context(), err)
	if status >= http.StatusInternalServerError {
		attrs := append(requestAttrs(r),
			slog.String("kind", string(body.Kind)),
			slog.Any("error", err),
		)
		h.logger.ErrorContext(r.Context(), "request failed", attrs...)
	}
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", retryAfter(body))
	}
	h.writeJSON(w, status, ResponseEnvelope{
		Success: false,
		Error:   body,
		Meta:    h.meta(r.Context()),
	})
}

func (h *BaseHandler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("failed to encode response", slog.Any("error", err))
	}
}

func (h *BaseHandler) meta(ctx context.Context) ResponseMeta {
	id := RequestIDFrom(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	return ResponseMeta{
		RequestID: id,
		Timestamp: time.Now().UTC(),
		Version:   h.apiVersion,
	}
}

func retryAfter(body *ErrorResponse) string {
	if body.Details != nil {
		if v, ok := body.Details["retry_after_seconds"]; ok {
			return fmt.Sprint(v)
		}
	}
	return "60"
}

// pathUUID parses a {name} path value
func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, errors.NewValidationError("INVALID_ID", fmt.Sprintf("%s must be a UUID", name))
	}
	return id, nil
}
