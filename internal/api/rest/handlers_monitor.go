package rest

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/davidleathers/commission-protection-backend/internal/domain/breach"
	"github.com/davidleathers/commission-protection-backend/internal/domain/errors"
	"github.com/davidleathers/commission-protection-backend/internal/domain/values"
	"github.com/davidleathers/commission-protection-backend/internal/service/monitoring"
)

// MonitorRequest is the body of POST /monitor-public-records. Dates are
// YYYY-MM-DD or RFC3339.
type MonitorRequest struct {
	ClientName        string     `json:"clientName" validate:"required"`
	ContractStartDate string     `json:"contractStartDate" validate:"required"`
	ContractEndDate   string     `json:"contractEndDate" validate:"required"`
	ContractID        *uuid.UUID `json:"contractId,omitempty"`
}

// MonitorHandler runs public-records scans for the caller's clients
type MonitorHandler struct {
	*BaseHandler
	monitoring monitoring.Service
}

func NewMonitorHandler(base *BaseHandler, svc monitoring.Service) *MonitorHandler {
	return &MonitorHandler{BaseHandler: base, monitoring: svc}
}

// MonitorPublicRecords handles POST /monitor-public-records
func (h *MonitorHandler) MonitorPublicRecords(w http.ResponseWriter, r *http.Request) {
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

	var req MonitorRequest
	if err := h.DecodeAndValidate(w, r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}

	start, err := values.ParseDate(req.ContractStartDate)
	if err != nil {
		h.writeError(w, r, errors.NewValidationError("INVALID_DATE", err.Error()).
			WithDetails(map[string]interface{}{"field": "contractStartDate"}))
		return
	}
	end, err := values.ParseDate(req.ContractEndDate)
	if err != nil {
		h.writeError(w, r, errors.NewValidationError("INVALID_DATE", err.Error()).
			WithDetails(map[string]interface{}{"field": "contractEndDate"}))
		return
	}
	if !start.Before(end) {
		h.writeError(w, r, errors.NewValidationError("INVALID_WINDOW", "contractStartDate must be before contractEndDate"))
		return
	}

	agent := breach.AgentIdentity{
		AgentID:       agentID,
		DisplayName:   claims.DisplayName,
		LicenseNumber: claims.LicenseNumber,
	}
	result, err := h.monitoring.MonitorPublicRecords(r.Context(), agent, monitoring.MonitorRequest{
		ClientName:        strings.TrimSpace(req.ClientName),
		ContractStartDate: start,
		ContractEndDate:   end,
		ContractID:        req.ContractID,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeSuccess(w, r, http.StatusOK, result)
}
