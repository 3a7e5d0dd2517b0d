package rest

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/davidleathers/commission-protection-backend/internal/service/evidence"
)

// ReconcileResult reports an explicit reconcile run
type ReconcileResult struct {
	NoShows int `json:"noShows"`
}

// EvidenceHandler serves the agent-owned contracts, showings, visits,
// protections and alerts
type EvidenceHandler struct {
	*BaseHandler
	evidence   evidence.Service
	reconciler evidence.Reconciler
}

func NewEvidenceHandler(base *BaseHandler, svc evidence.Service, reconciler evidence.Reconciler) *EvidenceHandler {
	return &EvidenceHandler{BaseHandler: base, evidence: svc, reconciler: reconciler}
}

// CreateContract handles POST /contracts. The agent's public-records
// identity is copied from the token when the caller is that agent.
func (h *EvidenceHandler) CreateContract(w http.ResponseWriter, r *http.Request) {
	claims, err := principal(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	agentID, err := agentOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req evidence.CreateContractRequest
	if err := h.DecodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	if claims.AgentID == agentID {
		req.AgentDisplayName = claims.DisplayName
		req.AgentLicense = claims.LicenseNumber
	}
	c, err := h.evidence.CreateContract(r.Context(), agentID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusCreated, c)
}

// ListContracts handles GET /contracts
func (h *EvidenceHandler) ListContracts(w http.ResponseWriter, r *http.Request) {
	agentID, err := agentOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, err := h.evidence.ListContracts(r.Context(), agentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, nonNil(items))
}

// GetContract handles GET /contracts/{id}
func (h *EvidenceHandler) GetContract(w http.ResponseWriter, r *http.Request) {
	serveByID(h.BaseHandler, w, r, h.evidence.GetContract)
}

// TerminateContract handles POST /contracts/{id}/terminate
func (h *EvidenceHandler) TerminateContract(w http.ResponseWriter, r *http.Request) {
	serveByID(h.BaseHandler, w, r, h.evidence.TerminateContract)
}

// CreateShowing handles POST /showings
func (h *EvidenceHandler) CreateShowing(w http.ResponseWriter, r *http.Request) {
	agentID, err := agentOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req evidence.CreateShowingRequest
	if err := h.DecodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	s, err := h.evidence.CreateShowing(r.Context(), agentID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusCreated, s)
}

// ListShowings handles GET /showings. The service reconciles overdue
// showings first.
func (h *EvidenceHandler) ListShowings(w http.ResponseWriter, r *http.Request) {
	agentID, err := agentOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, err := h.evidence.ListShowings(r.Context(), agentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, nonNil(items))
}

// CheckInShowing handles POST /showings/{id}/check-in
func (h *EvidenceHandler) CheckInShowing(w http.ResponseWriter, r *http.Request) {
	serveByID(h.BaseHandler, w, r, h.evidence.CheckInShowing)
}

// CancelShowing handles POST /showings/{id}/cancel
func (h *EvidenceHandler) CancelShowing(w http.ResponseWriter, r *http.Request) {
	serveByID(h.BaseHandler, w, r, h.evidence.CancelShowing)
}

// ReconcileShowings handles POST /showings/reconcile
func (h *EvidenceHandler) ReconcileShowings(w http.ResponseWriter, r *http.Request) {
	agentID, err := agentOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	n, err := h.reconciler.ReconcileOverdueShowings(r.Context(), agentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, ReconcileResult{NoShows: n})
}

// ListVisits handles GET /property-visits
func (h *EvidenceHandler) ListVisits(w http.ResponseWriter, r *http.Request) {
	agentID, err := agentOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, err := h.evidence.ListVisits(r.Context(), agentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, nonNil(items))
}

// CreateProtection handles POST /protections
func (h *EvidenceHandler) CreateProtection(w http.ResponseWriter, r *http.Request) {
	agentID, err := agentOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req evidence.CreateProtectionRequest
	if err := h.DecodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	p, err := h.evidence.CreateProtection(r.Context(), agentID, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusCreated, p)
}

// ListProtections handles GET /protections
func (h *EvidenceHandler) ListProtections(w http.ResponseWriter, r *http.Request) {
	agentID, err := agentOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, err := h.evidence.ListProtections(r.Context(), agentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, nonNil(items))
}

// ListAlerts handles GET /alerts?unread=true
func (h *EvidenceHandler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	agentID, err := agentOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	items, err := h.evidence.ListAlerts(r.Context(), agentID, unreadOnly)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, nonNil(items))
}

// MarkAlertRead handles POST /alerts/{id}/read
func (h *EvidenceHandler) MarkAlertRead(w http.ResponseWriter, r *http.Request) {
	agentID, err := agentOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.evidence.MarkAlertRead(r.Context(), agentID, id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// serveByID resolves the acting agent and the {id} path value, then writes
// the result of op
func serveByID[T any](h *BaseHandler, w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, agentID string, id uuid.UUID) (T, error)) {
	agentID, err := agentOf(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	out, err := op(r.Context(), agentID, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, out)
}

// nonNil keeps empty lists encoding as [] rather than null
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
