package rest

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// HealthStatus is the body of GET /health
type HealthStatus struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks"`
}

// HealthHandler runs the dependency probes concurrently
type HealthHandler struct {
	*BaseHandler
	checks  map[string]HealthCheck
	timeout time.Duration
}

func NewHealthHandler(base *BaseHandler, checks map[string]HealthCheck) *HealthHandler {
	return &HealthHandler{BaseHandler: base, checks: checks, timeout: 2 * time.Second}
}

// Health handles GET /health. Any failing probe answers 503.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]string, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, check HealthCheck) {
			defer wg.Done()
			if err := check(ctx); err != nil {
				results[i] = "unhealthy: " + err.Error()
				return
			}
			results[i] = "ok"
		}(i, h.checks[name])
	}
	wg.Wait()

	status := HealthStatus{Status: "ok", Version: h.apiVersion, Checks: make(map[string]string, len(names))}
	code := http.StatusOK
	for i, name := range names {
		status.Checks[name] = results[i]
		if results[i] != "ok" {
			status.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	h.writeJSON(w, code, status)
}
