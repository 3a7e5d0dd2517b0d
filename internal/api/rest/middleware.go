package rest

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/davidleathers/commission-protection-backend/internal/domain/errors"
	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/auth"
)

// Middleware wraps an HTTP handler
type Middleware func(http.Handler) http.Handler

// Chain applies middleware so the first listed runs outermost
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

type contextKey string

const (
	contextKeyRequestID contextKey = "request_id"
	contextKeyRoute     contextKey = "route"
	contextKeyCaller    contextKey = "caller"
)

// RequestIDFrom returns the request id set by RequestIDMiddleware
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(contextKeyRequestID).(string)
	return id
}

// SecurityHeadersMiddleware adds the standard hardening headers
func SecurityHeadersMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			next.ServeHTTP(w, r)
		})
	}
}

// RequestIDMiddleware ensures every request has a unique ID
func RequestIDMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get("X-Request-ID")
			if requestID == "" || len(requestID) > 128 {
				requestID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", requestID)
			ctx := context.WithValue(r.Context(), contextKeyRequestID, requestID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequestLoggingMiddleware logs one line per completed request
func RequestLoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := newStatusRecorder(w)

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if wrapped.statusCode >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.Log(r.Context(), level, "request_completed",
				slog.String("request_id", RequestIDFrom(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", wrapped.statusCode),
				slog.Int64("bytes", wrapped.bytesWritten),
				slog.Float64("duration_ms", float64(duration.Nanoseconds())/1e6),
				slog.String("remote_addr", clientIP(r)),
			)
		})
	}
}

// HTTPMetrics holds the request collectors
type HTTPMetrics struct {
	duration *prometheus.HistogramVec
	requests *prometheus.CounterVec
	inFlight prometheus.Gauge
}

// NewHTTPMetrics registers the HTTP collectors with reg
func NewHTTPMetrics(reg prometheus.Registerer) *HTTPMetrics {
	f := promauto.With(reg)
	return &HTTPMetrics{
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "cpb_http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "cpb_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Name: "cpb_http_requests_in_flight",
			Help: "Requests currently being served.",
		}),
	}
}

// recordCaller stores the authenticated claims for middleware that runs
// outside the auth layer
func recordCaller(r *http.Request, c *auth.Claims) {
	if p, ok := r.Context().Value(contextKeyCaller).(**auth.Claims); ok {
		*p = c
	}
}

// requestAttrs identifies the operation, caller and target of a request for
// error logs
func requestAttrs(r *http.Request) []any {
	operation := r.Pattern
	if operation == "" {
		operation = r.Method + " " + r.URL.Path
	}
	attrs := []any{
		slog.String("operation", operation),
		slog.String("path", r.URL.Path),
	}

	c, ok := ClaimsFrom(r.Context())
	if !ok {
		if p, found := r.Context().Value(contextKeyCaller).(**auth.Claims); found && *p != nil {
			c, ok = *p, true
		}
	}
	if ok {
		attrs = append(attrs, slog.String("user_id", c.UserID))
		agentID := c.AgentID
		if agentID == "" && c.IsAdmin() {
			agentID = r.URL.Query().Get("agentId")
		}
		if agentID != "" {
			attrs = append(attrs, slog.String("agent_id", agentID))
		}
	}

	if id := r.PathValue("id"); id != "" {
		key := "resource_id"
		switch {
		case strings.Contains(r.Pattern, "/potential-breaches/"):
			key = "breach_id"
		case strings.Contains(r.Pattern, "/contracts/"):
			key = "contract_id"
		case strings.Contains(r.Pattern, "/showings/"):
			key = "showing_id"
		}
		attrs = append(attrs, slog.String(key, id))
	}
	return attrs
}

// recordRoute stores the matched mux pattern for the metrics labels
func recordRoute(r *http.Request, pattern string) {
	if p, ok := r.Context().Value(contextKeyRoute).(*string); ok {
		*p = pattern
	}
}

// Middleware records duration and count labelled by the matched route pattern
func (m *HTTPMetrics) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			m.inFlight.Inc()
			defer m.inFlight.Dec()

			route := new(string)
			wrapped := newStatusRecorder(w)
			next.ServeHTTP(wrapped, r.WithContext(context.WithValue(r.Context(), contextKeyRoute, route)))

			if *route == "" {
				*route = "unmatched"
			}
			status := strconv.Itoa(wrapped.statusCode)
			m.duration.WithLabelValues(r.Method, *route, status).Observe(time.Since(start).Seconds())
			m.requests.WithLabelValues(r.Method, *route, status).Inc()
		})
	}
}

// TracingMiddleware starts a server span continuing any inbound trace context
func TracingMiddleware(tracer trace.Tracer) Middleware {
	propagator := otel.GetTextMapPropagator()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := tracer.Start(ctx, fmt.Sprintf("%s %s", r.Method, r.URL.Path),
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.method", r.Method),
					attribute.String("http.target", r.URL.Path),
					attribute.String("http.user_agent", r.UserAgent()),
					attribute.String("request.id", RequestIDFrom(r.Context())),
				),
			)
			defer span.End()

			if span.SpanContext().HasTraceID() {
				w.Header().Set("X-Trace-ID", span.SpanContext().TraceID().String())
			}

			wrapped := newStatusRecorder(w)
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			span.SetAttributes(attribute.Int("http.status_code", wrapped.statusCode))
			if wrapped.statusCode >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(wrapped.statusCode))
			}
		})
	}
}

// RateLimitConfig configures the per-IP limiter
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
	// IdleTTL evicts limiters for clients not seen for this long
	IdleTTL time.Duration
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is an in-process token bucket per client IP
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
	config   RateLimitConfig
	base     *BaseHandler
	now      func() time.Time
}

// NewRateLimiter creates a limiter
func NewRateLimiter(cfg RateLimitConfig, base *BaseHandler) *RateLimiter {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 100
	}
	if cfg.Burst <= 0 {
		cfg.Burst = cfg.RequestsPerSecond * 2
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	return &RateLimiter{
		limiters: make(map[string]*ipLimiter),
		config:   cfg,
		base:     base,
		now:      time.Now,
	}
}

func (rl *RateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	entry, ok := rl.limiters[key]
	if !ok {
		if len(rl.limiters) > 10000 {
			rl.evictLocked(now)
		}
		entry = &ipLimiter{limiter: rate.NewLimiter(rate.Limit(rl.config.RequestsPerSecond), rl.config.Burst)}
		rl.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

func (rl *RateLimiter) evictLocked(now time.Time) {
	for k, e := range rl.limiters {
		if now.Sub(e.lastSeen) > rl.config.IdleTTL {
			delete(rl.limiters, k)
		}
	}
}

// Middleware rejects requests over the per-IP budget with 429
func (rl *RateLimiter) Middleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !rl.get(clientIP(r)).Allow() {
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.RequestsPerSecond))
				w.Header().Set("X-RateLimit-Remaining", "0")
				rl.base.writeError(w, r, errors.NewRateLimitError("too many requests").
					WithDetails(map[string]interface{}{"retry_after_seconds": 1}))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RecoveryMiddleware turns a handler panic into a 500 envelope. The caller is
// recovered from the auth layer so the log names the agent.
func RecoveryMiddleware(base *BaseHandler) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := new(*auth.Claims)
			r = r.WithContext(context.WithValue(r.Context(), contextKeyCaller, caller))
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					attrs := append(requestAttrs(r),
						slog.Any("panic", rec),
						slog.String("stack", string(debug.Stack())),
					)
					base.logger.ErrorContext(r.Context(), "panic recovered", attrs...)
					base.writeError(w, r, errors.NewInternalError("panic"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// statusRecorder captures status and size. Hijack passes through for websockets.
type statusRecorder struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
	wroteHeader  bool
}

func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.statusCode = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	n, err := s.ResponseWriter.Write(b)
	s.bytesWritten += int64(n)
	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	s.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// clientIP uses the first X-Forwarded-For hop, then X-Real-IP, then RemoteAddr
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
