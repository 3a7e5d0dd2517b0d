package rest

import (
	"net/http"
	"time"

	"github.com/davidleathers/commission-protection-backend/internal/service/dashboard"
	"github.com/davidleathers/commission-protection-backend/internal/service/notification"
)

// DashboardHandler serves the agent landing page and its live alert stream
type DashboardHandler struct {
	*BaseHandler
	dashboard dashboard.Service
	hub       *notification.Hub
	now       func() time.Time
}

func NewDashboardHandler(base *BaseHandler, svc dashboard.Service, hub *notification.Hub) *DashboardHandler {
	return &DashboardHandler{BaseHandler: base, dashboard: svc, hub: hub, now: time.Now}
}

// Stats handles GET /dashboard/stats
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	agentID, err := agentOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	stats, err := h.dashboard.Stats(r.Context(), agentID, h.now())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, stats)
}

// Alerts handles GET /ws/alerts. The hub owns the connection after upgrade.
func (h *DashboardHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	agentID, err := agentOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.hub.ServeWS(w, r, agentID)
}
