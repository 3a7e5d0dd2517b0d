package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetupLogger creates the JSON slog logger used at the HTTP edge
func SetupLogger(level string) (*slog.Logger, error) {
	return NewSlogLogger(os.Stdout, level), nil
}

// NewSlogLogger writes JSON records carrying the active trace context to w
func NewSlogLogger(w io.Writer, level string) *slog.Logger {
	logLevel := parseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel == slog.LevelDebug,
	}
	return slog.New(&TracedHandler{Handler: slog.NewJSONHandler(w, opts)})
}

// TracedHandler is a slog handler that adds OpenTelemetry trace context
type TracedHandler struct {
	slog.Handler
}

// Handle adds trace_id and span_id when the context carries a valid span
func (h *TracedHandler) Handle(ctx context.Context, r slog.Record) error {
	span := trace.SpanFromContext(ctx)
	if sc := span.SpanContext(); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			r.AddAttrs(slog.Bool("sampled", true))
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *TracedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TracedHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *TracedHandler) WithGroup(name string) slog.Handler {
	return &TracedHandler{Handler: h.Handler.WithGroup(name)}
}

// NewZapLogger builds the service-layer logger. Development environments get
// the console encoder.
func NewZapLogger(environment, level string) (*zap.Logger, error) {
	var cfg zap.Config
	if environment == "development" || environment == "dev" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	var zl zapcore.Level
	if err := zl.UnmarshalText([]byte(strings.ToLower(level))); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(zl)
	}
	return cfg.Build()
}

// TraceFields returns zap fields for the span in ctx, if any
func TraceFields(ctx context.Context) []zap.Field {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return nil
	}
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}

// TraceID returns the trace id of the span in ctx or ""
func TraceID(ctx context.Context) string {
	sc := trace.SpanFromContext(ctx).SpanContext()
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
