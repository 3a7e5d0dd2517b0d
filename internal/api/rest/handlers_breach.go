package rest

import (
	"net/http"
	"strconv"

	"github.com/davidleathers/commission-protection-backend/internal/domain/breach"
	"github.com/davidleathers/commission-protection-backend/internal/domain/errors"
	"github.com/davidleathers/commission-protection-backend/internal/service/review"
)

const maxListLimit = 500

// ConfirmBreachRequest is the body of the confirm transition
type ConfirmBreachRequest struct {
	AdminNotes          string `json:"adminNotes" validate:"max=4000"`
	RequiresLegalAction bool   `json:"requiresLegalAction"`
}

// DismissBreachRequest is the body of the dismiss transition
type DismissBreachRequest struct {
	AdminNotes string `json:"adminNotes" validate:"max=4000"`
}

// BreachHandler serves the review workflow and breach read models
type BreachHandler struct {
	*BaseHandler
	review review.Service
}

func NewBreachHandler(base *BaseHandler, svc review.Service) *BreachHandler {
	return &BreachHandler{BaseHandler: base, review: svc}
}

// List handles GET /admin/potential-breaches and GET /potential-breaches.
// The caller's role decides the scope.
func (h *BreachHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, err := principal(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	filter, err := parseBreachFilter(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, err := h.review.List(r.Context(), scopeOf(claims), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, nonNil(items))
}

// Get handles GET /potential-breaches/{id}
func (h *BreachHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, err := principal(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	b, err := h.review.Get(r.Context(), scopeOf(claims), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, b)
}

// Stats handles GET /admin/breach-stats and GET /breach-stats
func (h *BreachHandler) Stats(w http.ResponseWriter, r *http.Request) {
	claims, err := principal(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	stats, err := h.review.Stats(r.Context(), scopeOf(claims))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, stats)
}

// Investigate handles POST /admin/potential-breaches/{id}/investigate
func (h *BreachHandler) Investigate(w http.ResponseWriter, r *http.Request) {
	claims, err := principal(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	b, err := h.review.StartInvestigation(r.Context(), actorOf(claims), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, b)
}

// Confirm handles POST /admin/potential-breaches/{id}/confirm
func (h *BreachHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	claims, err := principal(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req ConfirmBreachRequest
	if err := h.decodeOptional(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	b, err := h.review.Confirm(r.Context(), actorOf(claims), id, req.AdminNotes, req.RequiresLegalAction)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, b)
}

// Dismiss handles POST /admin/potential-breaches/{id}/dismiss
func (h *BreachHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	claims, err := principal(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	id, err := pathUUID(r, "id")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req DismissBreachRequest
	if err := h.decodeOptional(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	b, err := h.review.Dismiss(r.Context(), actorOf(claims), id, req.AdminNotes)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, b)
}

// decodeOptional decodes a body when one was sent
func (h *BreachHandler) decodeOptional(w http.ResponseWriter, r *http.Request, v interface{}) error {
	if r.ContentLength == 0 {
		return nil
	}
	return h.DecodeAndValidate(w, r, v)
}

func parseBreachFilter(r *http.Request) (breach.Filter, error) {
	q := r.URL.Query()
	var f breach.Filter

	if s := q.Get("status"); s != "" {
		st, err := breach.ParseStatus(s)
		if err != nil {
			return f, err
		}
		f.Status = &st
	}
	if s := q.Get("risk"); s != "" {
		rl, err := breach.ParseRiskLevel(s)
		if err != nil {
			return f, err
		}
		f.RiskLevel = &rl
	}
	var err error
	if f.Limit, err = intParam(q.Get("limit"), "limit", maxListLimit); err != nil {
		return f, err
	}
	if f.Offset, err = intParam(q.Get("offset"), "offset", -1); err != nil {
		return f, err
	}
	return f, nil
}

// intParam parses a non-negative query integer. max < 0 means unbounded.
func intParam(raw, name string, max int) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 || (max >= 0 && n > max) {
		return 0, errors.NewValidationError("INVALID_QUERY", name+" must be a non-negative integer").
			WithDetails(map[string]interface{}{"parameter": name, "max": max})
	}
	return n, nil
}
