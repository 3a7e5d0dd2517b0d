package mocks

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
)

// ContractRepository mock
type ContractRepository struct {
	mock.Mock
}

func (m *ContractRepository) Create(ctx context.Context, c *contract.Contract) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *ContractRepository) GetByID(ctx context.Context, id uuid.UUID) (*contract.Contract, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*contract.Contract), args.Error(1)
}

func (m *ContractRepository) UpdateWithStatusCheck(ctx context.Context, c *contract.Contract, expected contract.Status) (bool, error) {
	args := m.Called(ctx, c, expected)
	return args.Bool(0), args.Error(1)
}

func (m *ContractRepository) ListByAgent(ctx context.Context, agentID string) ([]*contract.Contract, error) {
	args := m.Called(ctx, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*contract.Contract), args.Error(1)
}

func (m *ContractRepository) ListActive(ctx context.Context) ([]*contract.Contract, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*contract.Contract), args.Error(1)
}

func (m *ContractRepository) FindActiveForClient(ctx context.Context, agentID, clientName string) (*contract.Contract, error) {
	args := m.Called(ctx, agentID, clientName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*contract.Contract), args.Error(1)
}

func (m *ContractRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}

// BreachRepository mock
type BreachRepository struct {
	mock.Mock
}

func (m *BreachRepository) Create(ctx context.Context, b *breach.PotentialBreach) (bool, error) {
	args := m.Called(ctx, b)
	return args.Bool(0), args.Error(1)
}

func (m *BreachRepository) GetByID(ctx context.Context, id uuid.UUID) (*breach.PotentialBreach, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*breach.PotentialBreach), args.Error(1)
}

func (m *BreachRepository) List(ctx context.Context, scope breach.Scope, filter breach.Filter) ([]*breach.ListItem, error) {
	args := m.Called(ctx, scope, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*breach.ListItem), args.Error(1)
}

func (m *BreachRepository) ExistingKeys(ctx context.Context, contractID uuid.UUID) (map[breach.DedupKey]struct{}, error) {
	args := m.Called(ctx, contractID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[breach.DedupKey]struct{}), args.Error(1)
}

func (m *BreachRepository) UpdateWithStatusCheck(ctx context.Context, b *breach.PotentialBreach, expected breach.Status) (bool, error) {
	args := m.Called(ctx, b, expected)
	return args.Bool(0), args.Error(1)
}

func (m *BreachRepository) MarkAgentNotified(ctx context.Context, id uuid.UUID, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

func (m *BreachRepository) ListUnnotifiedConfirmed(ctx context.Context, confirmedBefore time.Time, limit int) ([]*breach.PotentialBreach, error) {
	args := m.Called(ctx, confirmedBefore, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*breach.PotentialBreach), args.Error(1)
}

func (m *BreachRepository) Stats(ctx context.Context, scope breach.Scope) (*breach.Stats, error) {
	args := m.Called(ctx, scope)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*breach.Stats), args.Error(1)
}

// ShowingRepository mock
type ShowingRepository struct {
	mock.Mock
}

func (m *ShowingRepository) Create(ctx context.Context, s *showing.Showing) error {
	args := m.Called(ctx, s)
	return args.Error(0)
}

func (m *ShowingRepository) ListByAgent(ctx context.Context, agentID string) ([]*showing.Showing, error) {
	args := m.Called(ctx, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*showing.Showing), args.Error(1)
}

func (m *ShowingRepository) ListByClient(ctx context.Context, agentID, clientID string) ([]*showing.Showing, error) {
	args := m.Called(ctx, agentID, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*showing.Showing), args.Error(1)
}

func (m *ShowingRepository) ListOverdueScheduled(ctx context.Context, agentID string, cutoff time.Time) ([]*showing.Showing, error) {
	args := m.Called(ctx, agentID, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*showing.Showing), args.Error(1)
}

func (m *ShowingRepository) GetByID(ctx context.Context, id uuid.UUID) (*showing.Showing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*showing.Showing), args.Error(1)
}

func (m *ShowingRepository) UpdateWithStatusCheck(ctx context.Context, s *showing.Showing, expected showing.Status) (bool, error) {
	args := m.Called(ctx, s, expected)
	return args.Bool(0), args.Error(1)
}

func (m *ShowingRepository) MarkNoShow(ctx context.Context, id uuid.UUID, visit *showing.PropertyVisit, now time.Time) (bool, error) {
	args := m.Called(ctx, id, visit, now)
	return args.Bool(0), args.Error(1)
}

// VisitRepository mock
type VisitRepository struct {
	mock.Mock
}

func (m *VisitRepository) ListByAgent(ctx context.Context, agentID string) ([]*showing.PropertyVisit, error) {
	args := m.Called(ctx, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*showing.PropertyVisit), args.Error(1)
}

func (m *VisitRepository) ListByClient(ctx context.Context, agentID, clientID string) ([]*showing.PropertyVisit, error) {
	args := m.Called(ctx, agentID, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*showing.PropertyVisit), args.Error(1)
}

// ProtectionRepository mock
type ProtectionRepository struct {
	mock.Mock
}

func (m *ProtectionRepository) Create(ctx context.Context, p *protection.CommissionProtection) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *ProtectionRepository) ListByAgent(ctx context.Context, agentID string) ([]*protection.CommissionProtection, error) {
	args := m.Called(ctx, agentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*protection.CommissionProtection), args.Error(1)
}

// AlertRepository mock
type AlertRepository struct {
	mock.Mock
}

func (m *AlertRepository) Create(ctx context.Context, a *alert.Alert) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *AlertRepository) CreateOnce(ctx context.Context, a *alert.Alert) (bool, error) {
	args := m.Called(ctx, a)
	return args.Bool(0), args.Error(1)
}

func (m *AlertRepository) ListByAgent(ctx context.Context, agentID string, unreadOnly bool) ([]*alert.Alert, error) {
	args := m.Called(ctx, agentID, unreadOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*alert.Alert), args.Error(1)
}

func (m *AlertRepository) MarkRead(ctx context.Context, agentID string, id uuid.UUID) error {
	args := m.Called(ctx, agentID, id)
	return args.Error(0)
}

func (m *AlertRepository) CountUnread(ctx context.Context, agentID string, typ alert.Type) (int, error) {
	args := m.Called(ctx, agentID, typ)
	return args.Int(0), args.Error(1)
}
