package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/config"
)

func TestTracedHandler_AddsTraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(&buf, "info").With("component", "test")

	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	logger.InfoContext(ctx, "scan finished", "records", 3)
	span.End()

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "scan finished", rec["msg"])
	assert.Equal(t, "test", rec["component"])
	assert.Equal(t, span.SpanContext().TraceID().String(), rec["trace_id"])
	assert.Equal(t, true, rec["sampled"])
	assert.Equal(t, span.SpanContext().TraceID().String(), TraceID(ctx))
	assert.Len(t, TraceFields(ctx), 2)
}

func TestTracedHandler_NoSpan(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(&buf, "debug")
	logger.Debug("hello")

	var rec map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.NotContains(t, rec, "trace_id")
	assert.Empty(t, TraceID(context.Background()))
}

func TestInitializeOpenTelemetry_Disabled(t *testing.T) {
	p, err := InitializeOpenTelemetry(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)
	assert.NotNil(t, p.MeterProvider)
	assert.NotNil(t, p.TracerProvider)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNewZapLogger(t *testing.T) {
	l, err := NewZapLogger("production", "warn")
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(-1))
}

func TestSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{rate: 1, want: "AlwaysOnSampler"},
		{rate: 2, want: "AlwaysOnSampler"},
		{rate: 0, want: "AlwaysOffSampler"},
		{rate: 0.25, want: "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		assert.Contains(t, sampler(tt.rate).Description(), tt.want)
	}
}

func TestFromAppConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.Telemetry.Enabled = true
	cfg.Version = "1.4.0"

	got := FromAppConfig(cfg, "commission-protection-api")
	assert.Equal(t, "commission-protection-api", got.ServiceName)
	assert.Equal(t, "1.4.0", got.ServiceVersion)
	assert.True(t, got.Enabled)
	assert.Equal(t, cfg.Telemetry.OTLPEndpoint, got.OTLPEndpoint)
}
