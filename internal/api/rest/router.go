package rest

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/auth"
	"github.com/davidleathers/commission-protection-backend/internal/service/dashboard"
	"github.com/davidleathers/commission-protection-backend/internal/service/evidence"
	"github.com/davidleathers/commission-protection-backend/internal/service/monitoring"
	"github.com/davidleathers/commission-protection-backend/internal/service/notification"
	"github.com/davidleathers/commission-protection-backend/internal/service/review"
)

// Services are the application services behind the routes
type Services struct {
	Monitoring monitoring.Service
	Review     review.Service
	Dashboard  dashboard.Service
	Evidence   evidence.Service
	Reconciler evidence.Reconciler
	Hub        *notification.Hub
}

// Config wires the router
type Config struct {
	Version      string
	Tokens       TokenVerifier
	Registry     *prometheus.Registry
	Tracer       trace.Tracer
	RateLimit    RateLimitConfig
	HealthChecks map[string]HealthCheck
	Logger       *slog.Logger
}

// Route is one authenticated endpoint
type Route struct {
	Method     string
	Path       string
	Capability auth.Capability
	Handler    http.HandlerFunc
}

// Pattern is the ServeMux pattern for the route
func (rt Route) Pattern() string {
	return rt.Method + " " + rt.Path
}

// Router is the HTTP entry point
type Router struct {
	handler http.Handler
	routes  []Route
}

// NewRouter builds the mux and the global middleware chain
func NewRouter(cfg Config, svc Services) *Router {
	if cfg.Registry == nil {
		cfg.Registry = prometheus.NewRegistry()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = tracenoop.NewTracerProvider().Tracer("rest")
	}
	base := NewBaseHandler(cfg.Version, cfg.Logger)
	authz := NewAuthMiddleware(cfg.Tokens, base)

	routes := apiRoutes(
		NewMonitorHandler(base, svc.Monitoring),
		NewBreachHandler(base, svc.Review),
		NewDashboardHandler(base, svc.Dashboard, svc.Hub),
		NewEvidenceHandler(base, svc.Evidence, svc.Reconciler),
	)

	mux := http.NewServeMux()
	for _, rt := range routes {
		mux.Handle(rt.Pattern(), Chain(rt.Handler, routeLabel(rt.Path), authz.Authorize(rt.Capability)))
	}

	health := NewHealthHandler(base, cfg.HealthChecks)
	mux.Handle("GET /health", Chain(http.HandlerFunc(health.Health), routeLabel("/health")))
	mux.Handle("GET /metrics", Chain(promhttp.HandlerFor(cfg.Registry, promhttp.HandlerOpts{}), routeLabel("/metrics")))
	mux.Handle("GET /openapi.yaml", Chain(http.HandlerFunc(serveOpenAPI), routeLabel("/openapi.yaml")))

	httpMetrics := NewHTTPMetrics(cfg.Registry)
	limiter := NewRateLimiter(cfg.RateLimit, base)

	return &Router{
		handler: Chain(mux,
			SecurityHeadersMiddleware(),
			RequestIDMiddleware(),
			RequestLoggingMiddleware(base.logger),
			httpMetrics.Middleware(),
			TracingMiddleware(cfg.Tracer),
			limiter.Middleware(),
			RecoveryMiddleware(base),
		),
		routes: routes,
	}
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.handler.ServeHTTP(w, r)
}

// Routes lists the authenticated endpoints
func (rt *Router) Routes() []Route {
	return append([]Route(nil), rt.routes...)
}

func apiRoutes(mon *MonitorHandler, br *BreachHandler, dash *DashboardHandler, ev *EvidenceHandler) []Route {
	return []Route{
		{http.MethodPost, "/monitor-public-records", auth.CapScan, mon.MonitorPublicRecords},

		{http.MethodGet, "/admin/potential-breaches", auth.CapReview, br.List},
		{http.MethodGet, "/admin/breach-stats", auth.CapReview, br.Stats},
		{http.MethodPost, "/admin/potential-breaches/{id}/investigate", auth.CapReview, br.Investigate},
		{http.MethodPost, "/admin/potential-breaches/{id}/confirm", auth.CapReview, br.Confirm},
		{http.MethodPost, "/admin/potential-breaches/{id}/dismiss", auth.CapReview, br.Dismiss},
		{http.MethodGet, "/potential-breaches", auth.CapReadOwn, br.List},
		{http.MethodGet, "/potential-breaches/{id}", auth.CapReadOwn, br.Get},
		{http.MethodGet, "/breach-stats", auth.CapReadOwn, br.Stats},

		{http.MethodGet, "/dashboard/stats", auth.CapReadOwn, dash.Stats},
		{http.MethodGet, "/ws/alerts", auth.CapReadOwn, dash.Alerts},

		{http.MethodPost, "/contracts", auth.CapManageOwn, ev.CreateContract},
		{http.MethodGet, "/contracts", auth.CapReadOwn, ev.ListContracts},
		{http.MethodGet, "/contracts/{id}", auth.CapReadOwn, ev.GetContract},
		{http.MethodPost, "/contracts/{id}/terminate", auth.CapManageOwn, ev.TerminateContract},
		{http.MethodPost, "/showings", auth.CapManageOwn, ev.CreateShowing},
		{http.MethodGet, "/showings", auth.CapReadOwn, ev.ListShowings},
		{http.MethodPost, "/showings/reconcile", auth.CapManageOwn, ev.ReconcileShowings},
		{http.MethodPost, "/showings/{id}/check-in", auth.CapManageOwn, ev.CheckInShowing},
		{http.MethodPost, "/showings/{id}/cancel", auth.CapManageOwn, ev.CancelShowing},
		{http.MethodGet, "/property-visits", auth.CapReadOwn, ev.ListVisits},
		{http.MethodPost, "/protections", auth.CapManageOwn, ev.CreateProtection},
		{http.MethodGet, "/protections", auth.CapReadOwn, ev.ListProtections},
		{http.MethodGet, "/alerts", auth.CapReadOwn, ev.ListAlerts},
		{http.MethodPost, "/alerts/{id}/read", auth.CapManageOwn, ev.MarkAlertRead},
	}
}

// routeLabel tags the request with its route for the metrics middleware
func routeLabel(path string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			recordRoute(r, path)
			next.ServeHTTP(w, r)
		})
	}
}

func serveOpenAPI(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(openAPIDocument)
}
