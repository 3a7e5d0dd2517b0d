package rest

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/davidleathers/commission-protection-backend/internal/domain/breach"
	"github.com/davidleathers/commission-protection-backend/internal/domain/contract"
	"github.com/davidleathers/commission-protection-backend/internal/domain/errors"
	"github.com/davidleathers/commission-protection-backend/internal/domain/showing"
	"github.com/davidleathers/commission-protection-backend/internal/domain/values"
	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/auth"
	"github.com/davidleathers/commission-protection-backend/internal/service/dashboard"
	"github.com/davidleathers/commission-protection-backend/internal/service/evidence"
	"github.com/davidleathers/commission-protection-backend/internal/service/monitoring"
	"github.com/davidleathers/commission-protection-backend/internal/service/notification"
	"github.com/davidleathers/commission-protection-backend/internal/service/review"
)

type harness struct {
	t          *testing.T
	router     *Router
	tokens     *auth.TokenService
	registry   *prometheus.Registry
	hub        *notification.Hub
	monitoring *mockMonitoring
	review     *mockReview
	dashboard  *mockDashboard
	evidence   *mockEvidence
	reconciler *mockReconciler
}

func newHarness(t *testing.T, configure ...func(*Config)) *harness {
	t.Helper()
	tokens, err := auth.NewTokenService(auth.Config{Secret: []byte("test-secret"), Issuer: "test"})
	require.NoError(t, err)

	h := &harness{
		t:          t,
		tokens:     tokens,
		registry:   prometheus.NewRegistry(),
		hub:        notification.NewHub(notification.DefaultHubConfig(), nil, zaptest.NewLogger(t)),
		monitoring: &mockMonitoring{},
		review:     &mockReview{},
		dashboard:  &mockDashboard{},
		evidence:   &mockEvidence{},
		reconciler: &mockReconciler{},
	}
	t.Cleanup(h.hub.Close)

	cfg := Config{
		Version:  "test",
		Tokens:   tokens,
		Registry: h.registry,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, fn := range configure {
		fn(&cfg)
	}
	h.router = NewRouter(cfg, Services{
		Monitoring: h.monitoring,
		Review:     h.review,
		Dashboard:  h.dashboard,
		Evidence:   h.evidence,
		Reconciler: h.reconciler,
		Hub:        h.hub,
	})
	return h
}

func (h *harness) agentToken(agentID string) string {
	h.t.Helper()
	tok, err := h.tokens.Issue("user-"+agentID, agentID, auth.RoleAgent, auth.WithAgentIdentity("Alex Agent", "LIC-42"))
	require.NoError(h.t, err)
	return tok
}

func (h *harness) adminToken() string {
	h.t.Helper()
	tok, err := h.tokens.Issue("admin-1", "", auth.RoleAdmin)
	require.NoError(h.t, err)
	return tok
}

func (h *harness) do(method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	h.t.Helper()
	var rdr io.Reader
	if body != nil {
		switch b := body.(type) {
		case string:
			rdr = strings.NewReader(b)
		default:
			data, err := json.Marshal(b)
			require.NoError(h.t, err)
			rdr = bytes.NewReader(data)
		}
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

type testEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *ErrorResponse  `json:"error"`
	Meta    ResponseMeta    `json:"meta"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) testEnvelope {
	t.Helper()
	var env testEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env
}

func TestRouter_Authorization(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		token      func(h *harness) string
		wantStatus int
		wantKind   errors.Kind
	}{
		{
			name:       "missing token",
			method:     http.MethodGet,
			path:       "/dashboard/stats",
			token:      func(*harness) string { return "" },
			wantStatus: http.StatusUnauthorized,
			wantKind:   errors.KindUnauthorized,
		},
		{
			name:       "garbage token",
			method:     http.MethodGet,
			path:       "/dashboard/stats",
			token:      func(*harness) string { return "not-a-jwt" },
			wantStatus: http.StatusUnauthorized,
			wantKind:   errors.KindUnauthorized,
		},
		{
			name:       "agent on admin route",
			method:     http.MethodGet,
			path:       "/admin/potential-breaches",
			token:      func(h *harness) string { return h.agentToken("agent-1") },
			wantStatus: http.StatusForbidden,
			wantKind:   errors.KindForbidden,
		},
		{
			name:       "agent cannot confirm",
			method:     http.MethodPost,
			path:       "/admin/potential-breaches/" + uuid.NewString() + "/confirm",
			token:      func(h *harness) string { return h.agentToken("agent-1") },
			wantStatus: http.StatusForbidden,
			wantKind:   errors.KindForbidden,
		},
		{
			name:       "admin without agent cannot use agent-scoped route",
			method:     http.MethodGet,
			path:       "/dashboard/stats",
			token:      func(h *harness) string { return h.adminToken() },
			wantStatus: http.StatusForbidden,
			wantKind:   errors.KindForbidden,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			rec := h.do(tt.method, tt.path, nil, tt.token(h))

			assert.Equal(t, tt.wantStatus, rec.Code)
			env := decodeEnvelope(t, rec)
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, tt.wantKind, env.Error.Kind)
			assert.NotEmpty(t, env.Meta.RequestID)
		})
	}
}

func TestRouter_MonitorPublicRecords(t *testing.T) {
	contractID := uuid.New()

	tests := []struct {
		name       string
		body       interface{}
		setupMocks func(m *mockMonitoring)
		wantStatus int
		validate   func(t *testing.T, env testEnvelope)
	}{
		{
			name: "scans with the caller's identity",
			body: map[string]interface{}{
				"clientName":        " Jane Doe ",
				"contractStartDate": "2024-01-01",
				"contractEndDate":   "2024-06-30",
				"contractId":        contractID.String(),
			},
			setupMocks: func(m *mockMonitoring) {
				m.On("MonitorPublicRecords", mock.Anything,
					breach.AgentIdentity{AgentID: "agent-1", DisplayName: "Alex Agent", LicenseNumber: "LIC-42"},
					mock.MatchedBy(func(req monitoring.MonitorRequest) bool {
						return req.ClientName == "Jane Doe" &&
							req.ContractStartDate.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) &&
							req.ContractEndDate.Equal(time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC)) &&
							req.ContractID != nil && *req.ContractID == contractID
					}),
				).Return(&monitoring.MonitorResult{
					TotalRecordsFound:       1,
					BreachesDetected:        1,
					EstimatedLostCommission: values.NewMoneyFromInt(15000),
				}, nil)
			},
			wantStatus: http.StatusOK,
			validate: func(t *testing.T, env testEnvelope) {
				assert.True(t, env.Success)
				var got map[string]interface{}
				require.NoError(t, json.Unmarshal(env.Data, &got))
				assert.EqualValues(t, 1, got["breachesDetected"])
				assert.EqualValues(t, 15000, got["estimatedLostCommission"])
			},
		},
		{
			name:       "missing client name",
			body:       map[string]interface{}{"contractStartDate": "2024-01-01", "contractEndDate": "2024-06-30"},
			wantStatus: http.StatusBadRequest,
			validate: func(t *testing.T, env testEnvelope) {
				assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
				fields, ok := env.Error.Details["fields"].(map[string]interface{})
				require.True(t, ok)
				assert.Contains(t, fields, "clientName")
			},
		},
		{
			name: "start not before end",
			body: map[string]interface{}{
				"clientName":        "Jane Doe",
				"contractStartDate": "2024-06-30",
				"contractEndDate":   "2024-06-30",
			},
			wantStatus: http.StatusBadRequest,
			validate: func(t *testing.T, env testEnvelope) {
				assert.Equal(t, "INVALID_WINDOW", env.Error.Code)
			},
		},
		{
			name: "unparseable date",
			body: map[string]interface{}{
				"clientName":        "Jane Doe",
				"contractStartDate": "01/01/2024",
				"contractEndDate":   "2024-06-30",
			},
			wantStatus: http.StatusBadRequest,
			validate: func(t *testing.T, env testEnvelope) {
				assert.Equal(t, "INVALID_DATE", env.Error.Code)
				assert.Equal(t, "contractStartDate", env.Error.Details["field"])
			},
		},
		{
			name:       "malformed json",
			body:       `{"clientName":`,
			wantStatus: http.StatusBadRequest,
			validate: func(t *testing.T, env testEnvelope) {
				assert.Equal(t, errors.KindValidation, env.Error.Kind)
			},
		},
		{
			name: "all providers down",
			body: map[string]interface{}{
				"clientName":        "Jane Doe",
				"contractStartDate": "2024-01-01",
				"contractEndDate":   "2024-06-30",
			},
			setupMocks: func(m *mockMonitoring) {
				m.On("MonitorPublicRecords", mock.Anything, mock.Anything, mock.Anything).
					Return(nil, errors.NewProviderUnavailableError("county_recorder", stderrors.New("dial tcp: refused")))
			},
			wantStatus: http.StatusServiceUnavailable,
			validate: func(t *testing.T, env testEnvelope) {
				assert.Equal(t, errors.KindProviderUnavailable, env.Error.Kind)
				assert.Nil(t, env.Error.Details)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if tt.setupMocks != nil {
				tt.setupMocks(h.monitoring)
			}

			rec := h.do(http.MethodPost, "/monitor-public-records", tt.body, h.agentToken("agent-1"))

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			tt.validate(t, decodeEnvelope(t, rec))
			h.monitoring.AssertExpectations(t)
		})
	}
}

func TestRouter_ReviewTransitions(t *testing.T) {
	id := uuid.New()
	admin := review.Actor{UserID: "admin-1", IsAdmin: true}

	tests := []struct {
		name       string
		path       string
		body       interface{}
		setupMocks func(m *mockReview)
		wantStatus int
		wantKind   errors.Kind
	}{
		{
			name: "confirm with legal action",
			path: "/admin/potential-breaches/" + id.String() + "/confirm",
			body: ConfirmBreachRequest{AdminNotes: "verified with county", RequiresLegalAction: true},
			setupMocks: func(m *mockReview) {
				m.On("Confirm", mock.Anything, admin, id, "verified with county", true).
					Return(&breach.PotentialBreach{ID: id, Status: breach.StatusConfirmed, RequiresLegalAction: true}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "confirm without body",
			path: "/admin/potential-breaches/" + id.String() + "/confirm",
			setupMocks: func(m *mockReview) {
				m.On("Confirm", mock.Anything, admin, id, "", false).
					Return(&breach.PotentialBreach{ID: id, Status: breach.StatusConfirmed}, nil)
			},
			wantStatus: http.StatusOK,
		},
		{
			name: "dismiss a terminal breach",
			path: "/admin/potential-breaches/" + id.String() + "/dismiss",
			body: DismissBreachRequest{AdminNotes: "late"},
			setupMocks: func(m *mockReview) {
				m.On("Dismiss", mock.Anything, admin, id, "late").
					Return(nil, errors.NewInvalidStateTransitionError("breach", "confirmed", "dismiss"))
			},
			wantStatus: http.StatusConflict,
			wantKind:   errors.KindInvalidStateTransition,
		},
		{
			name: "investigate unknown breach",
			path: "/admin/potential-breaches/" + id.String() + "/investigate",
			setupMocks: func(m *mockReview) {
				m.On("StartInvestigation", mock.Anything, admin, id).
					Return(nil, errors.NewNotFoundError("breach"))
			},
			wantStatus: http.StatusNotFound,
			wantKind:   errors.KindNotFound,
		},
		{
			name:       "bad id",
			path:       "/admin/potential-breaches/not-a-uuid/confirm",
			wantStatus: http.StatusBadRequest,
			wantKind:   errors.KindValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			if tt.setupMocks != nil {
				tt.setupMocks(h.review)
			}

			rec := h.do(http.MethodPost, tt.path, tt.body, h.adminToken())

			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			env := decodeEnvelope(t, rec)
			if tt.wantKind != "" {
				require.NotNil(t, env.Error)
				assert.Equal(t, tt.wantKind, env.Error.Kind)
			} else {
				assert.True(t, env.Success)
			}
			h.review.AssertExpectations(t)
		})
	}
}

func TestRouter_BreachListsAreScoped(t *testing.T) {
	t.Run("admin filters across all agents", func(t *testing.T) {
		h := newHarness(t)
		status := breach.StatusPending
		risk := breach.RiskHigh
		h.review.On("List", mock.Anything, breach.AllAgents(), breach.Filter{Status: &status, RiskLevel: &risk, Limit: 20}).
			Return([]*breach.ListItem{{
				PotentialBreach: &breach.PotentialBreach{ID: uuid.New(), PropertyAddress: "123 Main St"},
				Contract: breach.ContractTerms{
					ClientName:         "Jane Doe",
					RepresentationType: contract.RepresentationBuyer,
					StartDate:          time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
					EndDate:            time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC),
				},
			}}, nil)

		rec := h.do(http.MethodGet, "/admin/potential-breaches?status=pending&risk=HIGH&limit=20", nil, h.adminToken())

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var items []map[string]interface{}
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &items))
		require.Len(t, items, 1)
		assert.Equal(t, "123 Main St", items[0]["propertyAddress"], "breach fields stay at the top level")
		terms := items[0]["contract"].(map[string]interface{})
		assert.Equal(t, "Jane Doe", terms["clientName"])
		assert.Equal(t, "buyer", terms["representationType"])
		assert.Equal(t, "2024-06-30T00:00:00Z", terms["endDate"])
		h.review.AssertExpectations(t)
	})

	t.Run("agent sees only own breaches", func(t *testing.T) {
		h := newHarness(t)
		h.review.On("List", mock.Anything, breach.ForAgent("agent-1"), breach.Filter{}).Return(nil, nil)

		rec := h.do(http.MethodGet, "/potential-breaches", nil, h.agentToken("agent-1"))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, string(decodeEnvelope(t, rec).Data))
	})

	t.Run("agent stats are scoped", func(t *testing.T) {
		h := newHarness(t)
		h.review.On("Stats", mock.Anything, breach.ForAgent("agent-1")).
			Return(&breach.Stats{TotalBreaches: 2, PendingBreaches: 2}, nil)

		rec := h.do(http.MethodGet, "/breach-stats", nil, h.agentToken("agent-1"))

		require.Equal(t, http.StatusOK, rec.Code)
		var stats breach.Stats
		require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &stats))
		assert.True(t, stats.Consistent())
	})

	t.Run("foreign breach is forbidden", func(t *testing.T) {
		h := newHarness(t)
		id := uuid.New()
		h.review.On("Get", mock.Anything, breach.ForAgent("agent-1"), id).
			Return(nil, errors.NewForbiddenError("breach belongs to another agent"))

		rec := h.do(http.MethodGet, "/potential-breaches/"+id.String(), nil, h.agentToken("agent-1"))

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("invalid status filter", func(t *testing.T) {
		h := newHarness(t)
		rec := h.do(http.MethodGet, "/admin/potential-breaches?status=open", nil, h.adminToken())

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "INVALID_STATUS", decodeEnvelope(t, rec).Error.Code)
	})

	t.Run("limit over maximum", func(t *testing.T) {
		h := newHarness(t)
		rec := h.do(http.MethodGet, "/potential-breaches?limit=5000", nil, h.agentToken("agent-1"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestRouter_Evidence(t *testing.T) {
	t.Run("rejects unknown representation", func(t *testing.T) {
		h := newHarness(t)

		rec := h.do(http.MethodPost, "/contracts", map[string]interface{}{
			"clientName":         "Jane Doe",
			"representationType": "landlord",
			"startDate":          "2024-01-01T00:00:00Z",
			"endDate":            "2024-06-30T00:00:00Z",
		}, h.agentToken("agent-1"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		fields := decodeEnvelope(t, rec).Error.Details["fields"].(map[string]interface{})
		assert.Contains(t, fields, "representationType")
		h.evidence.AssertNotCalled(t, "CreateContract", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("create contract", func(t *testing.T) {
		h := newHarness(t)
		c, err := contract.NewContract("agent-1", "", "Jane Doe", contract.RepresentationBuyer,
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), time.Now())
		require.NoError(t, err)
		h.evidence.On("CreateContract", mock.Anything, "agent-1", mock.MatchedBy(func(req evidence.CreateContractRequest) bool {
			return req.ClientName == "Jane Doe" && req.RepresentationType == "buyer" && req.EndDate.After(req.StartDate)
		})).Return(c, nil)

		rec := h.do(http.MethodPost, "/contracts", map[string]interface{}{
			"clientName":         "Jane Doe",
			"representationType": "buyer",
			"startDate":          "2024-01-01T00:00:00Z",
			"endDate":            "2024-06-30T00:00:00Z",
		}, h.agentToken("agent-1"))

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		assert.Contains(t, string(decodeEnvelope(t, rec).Data), c.ID.String())
		h.evidence.AssertExpectations(t)
	})

	t.Run("reconcile showings for the caller", func(t *testing.T) {
		h := newHarness(t)
		h.reconciler.On("ReconcileOverdueShowings", mock.Anything, "agent-1").Return(3, nil)

		rec := h.do(http.MethodPost, "/showings/reconcile", nil, h.agentToken("agent-1"))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"noShows":3}`, string(decodeEnvelope(t, rec).Data))
	})

	t.Run("check in a showing", func(t *testing.T) {
		h := newHarness(t)
		sh, err := showing.NewShowing("agent-1", "jane-doe", "12 Oak St", time.Now(), time.Now())
		require.NoError(t, err)
		require.NoError(t, sh.CheckIn(time.Now()))
		h.evidence.On("CheckInShowing", mock.Anything, "agent-1", sh.ID).Return(sh, nil)

		rec := h.do(http.MethodPost, "/showings/"+sh.ID.String()+"/check-in", nil, h.agentToken("agent-1"))

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Contains(t, string(decodeEnvelope(t, rec).Data), `"status":"completed"`)
	})

	t.Run("cancel after no-show conflicts", func(t *testing.T) {
		h := newHarness(t)
		id := uuid.New()
		h.evidence.On("CancelShowing", mock.Anything, "agent-1", id).
			Return(nil, errors.NewInvalidStateTransitionError("showing", "no-show", "cancel"))

		rec := h.do(http.MethodPost, "/showings/"+id.String()+"/cancel", nil, h.agentToken("agent-1"))

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "no-show", decodeEnvelope(t, rec).Error.Details["current_status"])
	})

	t.Run("check in rejects a malformed id", func(t *testing.T) {
		h := newHarness(t)

		rec := h.do(http.MethodPost, "/showings/not-a-uuid/check-in", nil, h.agentToken("agent-1"))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		h.evidence.AssertNotCalled(t, "CheckInShowing", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("get and terminate a contract", func(t *testing.T) {
		h := newHarness(t)
		c, err := contract.NewContract("agent-1", "", "Jane Doe", contract.RepresentationBuyer,
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), time.Now())
		require.NoError(t, err)
		h.evidence.On("GetContract", mock.Anything, "agent-1", c.ID).Return(c, nil)
		terminated := *c
		terminated.Status = contract.StatusTerminated
		h.evidence.On("TerminateContract", mock.Anything, "agent-1", c.ID).Return(&terminated, nil)

		rec := h.do(http.MethodGet, "/contracts/"+c.ID.String(), nil, h.agentToken("agent-1"))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, string(decodeEnvelope(t, rec).Data), c.ID.String())

		rec = h.do(http.MethodPost, "/contracts/"+c.ID.String()+"/terminate", nil, h.agentToken("agent-1"))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, string(decodeEnvelope(t, rec).Data), `"status":"terminated"`)
	})

	t.Run("admin acts for an agent", func(t *testing.T) {
		h := newHarness(t)
		h.evidence.On("ListShowings", mock.Anything, "agent-7").Return(nil, nil)

		rec := h.do(http.MethodGet, "/showings?agentId=agent-7", nil, h.adminToken())

		require.Equal(t, http.StatusOK, rec.Code)
		h.evidence.AssertExpectations(t)
	})

	t.Run("mark alert read", func(t *testing.T) {
		h := newHarness(t)
		id := uuid.New()
		h.evidence.On("MarkAlertRead", mock.Anything, "agent-1", id).Return(nil)

		rec := h.do(http.MethodPost, "/alerts/"+id.String()+"/read", nil, h.agentToken("agent-1"))

		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("unread alerts only", func(t *testing.T) {
		h := newHarness(t)
		h.evidence.On("ListAlerts", mock.Anything, "agent-1", true).Return(nil, nil)

		rec := h.do(http.MethodGet, "/alerts?unread=true", nil, h.agentToken("agent-1"))

		require.Equal(t, http.StatusOK, rec.Code)
		h.evidence.AssertExpectations(t)
	})

	t.Run("persistence failure hides cause", func(t *testing.T) {
		h := newHarness(t)
		h.evidence.On("ListContracts", mock.Anything, "agent-1").
			Return(nil, errors.NewPersistenceError("list contracts", stderrors.New("pq: relation does not exist")))

		rec := h.do(http.MethodGet, "/contracts", nil, h.agentToken("agent-1"))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "relation")
	})
}

func TestRouter_DashboardStats(t *testing.T) {
	h := newHarness(t)
	h.dashboard.On("Stats", mock.Anything, "agent-1", mock.AnythingOfType("time.Time")).Return(&dashboard.Stats{
		ActiveContracts:     2,
		ExpiringSoon:        1,
		PotentialBreaches:   3,
		ProtectedCommission: values.NewMoneyFromInt(24000),
	}, nil)

	rec := h.do(http.MethodGet, "/dashboard/stats", nil, h.agentToken("agent-1"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"activeContracts":2,"expiringSoon":1,"potentialBreaches":3,"protectedCommission":24000}`,
		string(decodeEnvelope(t, rec).Data))
}

func TestRouter_PublicEndpoints(t *testing.T) {
	t.Run("health degrades on a failing dependency", func(t *testing.T) {
		h := newHarness(t, func(c *Config) {
			c.HealthChecks = map[string]HealthCheck{
				"database": func(context.Context) error { return nil },
				"redis":    func(context.Context) error { return stderrors.New("connection refused") },
			}
		})

		rec := h.do(http.MethodGet, "/health", nil, "")

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var status HealthStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
		assert.Equal(t, "degraded", status.Status)
		assert.Equal(t, "ok", status.Checks["database"])
		assert.Contains(t, status.Checks["redis"], "connection refused")
	})

	t.Run("metrics carry the route pattern", func(t *testing.T) {
		h := newHarness(t)
		h.review.On("Get", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.NewNotFoundError("breach"))
		h.do(http.MethodGet, "/potential-breaches/"+uuid.NewString(), nil, h.agentToken("agent-1"))

		rec := h.do(http.MethodGet, "/metrics", nil, "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `route="/potential-breaches/{id}"`)
		assert.Contains(t, rec.Body.String(), "cpb_http_requests_total")
	})

	t.Run("openapi document", func(t *testing.T) {
		h := newHarness(t)
		rec := h.do(http.MethodGet, "/openapi.yaml", nil, "")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "/monitor-public-records")
	})

	t.Run("security headers", func(t *testing.T) {
		h := newHarness(t)
		rec := h.do(http.MethodGet, "/openapi.yaml", nil, "")

		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	})
}

func TestRouter_RateLimit(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.RateLimit = RateLimitConfig{RequestsPerSecond: 1, Burst: 1}
	})

	first := h.do(http.MethodGet, "/openapi.yaml", nil, "")
	second := h.do(http.MethodGet, "/openapi.yaml", nil, "")

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
	assert.Equal(t, errors.KindRateLimited, decodeEnvelope(t, second).Error.Kind)
}

// logLines captures the router's JSON log output
type logLines struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *logLines) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Write(p)
}

func (l *logLines) find(t *testing.T, msg string) map[string]interface{} {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, line := range strings.Split(strings.TrimSpace(l.buf.String()), "\n") {
		var entry map[string]interface{}
		if json.Unmarshal([]byte(line), &entry) == nil && entry["msg"] == msg {
			return entry
		}
	}
	t.Fatalf("no %q log line in:\n%s", msg, l.buf.String())
	return nil
}

func withLogCapture(logs *logLines) func(*Config) {
	return func(c *Config) { c.Logger = slog.New(slog.NewJSONHandler(logs, nil)) }
}

func TestRouter_RecoversFromPanic(t *testing.T) {
	logs := &logLines{}
	h := newHarness(t, withLogCapture(logs))
	h.dashboard.On("Stats", mock.Anything, mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		panic("boom")
	})

	rec := h.do(http.MethodGet, "/dashboard/stats", nil, h.agentToken("agent-1"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, errors.KindInternal, decodeEnvelope(t, rec).Error.Kind)

	entry := logs.find(t, "panic recovered")
	assert.Equal(t, "agent-1", entry["agent_id"])
	assert.Equal(t, "GET /dashboard/stats", entry["operation"])
	assert.Equal(t, "boom", entry["panic"])
}

func TestRouter_ErrorLogsIdentifyTheRequest(t *testing.T) {
	t.Run("panic on a breach route names the breach", func(t *testing.T) {
		logs := &logLines{}
		h := newHarness(t, withLogCapture(logs))
		id := uuid.New()
		h.review.On("Get", mock.Anything, breach.ForAgent("agent-1"), id).Run(func(mock.Arguments) {
			panic("nil breach")
		})

		rec := h.do(http.MethodGet, "/potential-breaches/"+id.String(), nil, h.agentToken("agent-1"))

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		entry := logs.find(t, "panic recovered")
		assert.Equal(t, id.String(), entry["breach_id"])
		assert.Equal(t, "agent-1", entry["agent_id"])
		assert.Equal(t, "GET /potential-breaches/{id}", entry["operation"])
	})

	t.Run("admin persistence failure names the breach and reviewer", func(t *testing.T) {
		logs := &logLines{}
		h := newHarness(t, withLogCapture(logs))
		id := uuid.New()
		h.review.On("Confirm", mock.Anything, mock.Anything, id, mock.Anything, mock.Anything).
			Return(nil, errors.NewPersistenceError("update breach status", stderrors.New("conn reset")))

		rec := h.do(http.MethodPost, "/admin/potential-breaches/"+id.String()+"/confirm",
			map[string]interface{}{"adminNotes": "deed recorded"}, h.adminToken())

		require.Equal(t, http.StatusInternalServerError, rec.Code)
		entry := logs.find(t, "request failed")
		assert.Equal(t, id.String(), entry["breach_id"])
		assert.Equal(t, "admin-1", entry["user_id"])
		assert.Equal(t, "POST /admin/potential-breaches/{id}/confirm", entry["operation"])
		assert.Equal(t, string(errors.KindPersistence), entry["kind"])
	})
}

func TestRouter_AlertStream(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/alerts?access_token=" + h.agentToken("agent-1")
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.Eventually(t, func() bool { return h.hub.Sessions("agent-1") == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, h.hub.Send("agent-1", notification.Message{Type: "breach_confirmed"}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var msg notification.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "breach_confirmed", msg.Type)
}

func TestRouter_AlertStreamRequiresToken(t *testing.T) {
	h := newHarness(t)
	srv := httptest.NewServer(h.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/alerts"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
