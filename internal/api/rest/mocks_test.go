package rest

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/davidleathers/commission-protection-backend/internal/domain/alert"
	"github.com/davidleathers/commission-protection-backend/internal/domain/breach"
	"github.com/davidleathers/commission-protection-backend/internal/domain/contract"
	"github.com/davidleathers/commission-protection-backend/internal/domain/protection"
	"github.com/davidleathers/commission-protection-backend/internal/domain/showing"
	"github.com/davidleathers/commission-protection-backend/internal/service/dashboard"
	"github.com/davidleathers/commission-protection-backend/internal/service/evidence"
	"github.com/davidleathers/commission-protection-backend/internal/service/monitoring"
	"github.com/davidleathers/commission-protection-backend/internal/service/review"
)

type mockMonitoring struct{ mock.Mock }

func (m *mockMonitoring) MonitorPublicRecords(ctx context.Context, agent breach.AgentIdentity, req monitoring.MonitorRequest) (*monitoring.MonitorResult, error) {
	args := m.Called(ctx, agent, req)
	if r := args.Get(0); r != nil {
		return r.(*monitoring.MonitorResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockMonitoring) RescanActiveContracts(ctx context.Context) (*monitoring.RescanSummary, error) {
	args := m.Called(ctx)
	if r := args.Get(0); r != nil {
		return r.(*monitoring.RescanSummary), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockReview struct{ mock.Mock }

func (m *mockReview) breachResult(args mock.Arguments) (*breach.PotentialBreach, error) {
	if r := args.Get(0); r != nil {
		return r.(*breach.PotentialBreach), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReview) StartInvestigation(ctx context.Context, actor review.Actor, id uuid.UUID) (*breach.PotentialBreach, error) {
	return m.breachResult(m.Called(ctx, actor, id))
}

func (m *mockReview) Confirm(ctx context.Context, actor review.Actor, id uuid.UUID, notes string, legal bool) (*breach.PotentialBreach, error) {
	return m.breachResult(m.Called(ctx, actor, id, notes, legal))
}

func (m *mockReview) Dismiss(ctx context.Context, actor review.Actor, id uuid.UUID, notes string) (*breach.PotentialBreach, error) {
	return m.breachResult(m.Called(ctx, actor, id, notes))
}

func (m *mockReview) List(ctx context.Context, scope breach.Scope, filter breach.Filter) ([]*breach.ListItem, error) {
	args := m.Called(ctx, scope, filter)
	if r := args.Get(0); r != nil {
		return r.([]*breach.ListItem), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReview) Get(ctx context.Context, scope breach.Scope, id uuid.UUID) (*breach.PotentialBreach, error) {
	return m.breachResult(m.Called(ctx, scope, id))
}

func (m *mockReview) Stats(ctx context.Context, scope breach.Scope) (*breach.Stats, error) {
	args := m.Called(ctx, scope)
	if r := args.Get(0); r != nil {
		return r.(*breach.Stats), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockDashboard struct{ mock.Mock }

func (m *mockDashboard) Stats(ctx context.Context, agentID string, now time.Time) (*dashboard.Stats, error) {
	args := m.Called(ctx, agentID, now)
	if r := args.Get(0); r != nil {
		return r.(*dashboard.Stats), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDashboard) WarnExpiringContracts(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

type mockEvidence struct{ mock.Mock }

func (m *mockEvidence) CreateContract(ctx context.Context, agentID string, req evidence.CreateContractRequest) (*contract.Contract, error) {
	args := m.Called(ctx, agentID, req)
	if r := args.Get(0); r != nil {
		return r.(*contract.Contract), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEvidence) ListContracts(ctx context.Context, agentID string) ([]*contract.Contract, error) {
	args := m.Called(ctx, agentID)
	if r := args.Get(0); r != nil {
		return r.([]*contract.Contract), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEvidence) GetContract(ctx context.Context, agentID string, id uuid.UUID) (*contract.Contract, error) {
	args := m.Called(ctx, agentID, id)
	if r := args.Get(0); r != nil {
		return r.(*contract.Contract), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEvidence) TerminateContract(ctx context.Context, agentID string, id uuid.UUID) (*contract.Contract, error) {
	args := m.Called(ctx, agentID, id)
	if r := args.Get(0); r != nil {
		return r.(*contract.Contract), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEvidence) CreateShowing(ctx context.Context, agentID string, req evidence.CreateShowingRequest) (*showing.Showing, error) {
	args := m.Called(ctx, agentID, req)
	if r := args.Get(0); r != nil {
		return r.(*showing.Showing), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEvidence) ListShowings(ctx context.Context, agentID string) ([]*showing.Showing, error) {
	args := m.Called(ctx, agentID)
	if r := args.Get(0); r != nil {
		return r.([]*showing.Showing), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEvidence) CheckInShowing(ctx context.Context, agentID string, id uuid.UUID) (*showing.Showing, error) {
	args := m.Called(ctx, agentID, id)
	if r := args.Get(0); r != nil {
		return r.(*showing.Showing), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEvidence) CancelShowing(ctx context.Context, agentID string, id uuid.UUID) (*showing.Showing, error) {
	args := m.Called(ctx, agentID, id)
	if r := args.Get(0); r != nil {
		return r.(*showing.Showing), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEvidence) ListVisits(ctx context.Context, agentID string) ([]*showing.PropertyVisit, error) {
	args := m.Called(ctx, agentID)
	if r := args.Get(0); r != nil {
		return r.([]*showing.PropertyVisit), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEvidence) CreateProtection(ctx context.Context, agentID string, req evidence.CreateProtectionRequest) (*protection.CommissionProtection, error) {
	args := m.Called(ctx, agentID, req)
	if r := args.Get(0); r != nil {
		return r.(*protection.CommissionProtection), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEvidence) ListProtections(ctx context.Context, agentID string) ([]*protection.CommissionProtection, error) {
	args := m.Called(ctx, agentID)
	if r := args.Get(0); r != nil {
		return r.([]*protection.CommissionProtection), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEvidence) ListAlerts(ctx context.Context, agentID string, unreadOnly bool) ([]*alert.Alert, error) {
	args := m.Called(ctx, agentID, unreadOnly)
	if r := args.Get(0); r != nil {
		return r.([]*alert.Alert), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEvidence) MarkAlertRead(ctx context.Context, agentID string, id uuid.UUID) error {
	return m.Called(ctx, agentID, id).Error(0)
}

type mockReconciler struct{ mock.Mock }

func (m *mockReconciler) ReconcileOverdueShowings(ctx context.Context, agentID string) (int, error) {
	args := m.Called(ctx, agentID)
	return args.Int(0), args.Error(1)
}
