package evidence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/davidleathers/commission-protection-backend/internal/domain/alert"
	"github.com/davidleathers/commission-protection-backend/internal/domain/contract"
	"github.com/davidleathers/commission-protection-backend/internal/domain/errors"
	"github.com/davidleathers/commission-protection-backend/internal/domain/protection"
	"github.com/davidleathers/commission-protection-backend/internal/domain/showing"
	"github.com/davidleathers/commission-protection-backend/internal/domain/values"
)

// Repositories bundles the evidence ports
type Repositories struct {
	Contracts   contract.Repository
	Showings    showing.Repository
	Visits      showing.VisitRepository
	Protections protection.Repository
	Alerts      alert.Repository
}

type service struct {
	repos      Repositories
	reconciler Reconciler
	clock      values.Clock
	logger     *zap.Logger
}

// NewService creates an evidence service
func NewService(repos Repositories, reconciler Reconciler, clock values.Clock, logger *zap.Logger) Service {
	if clock == nil {
		clock = values.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		repos:      repos,
		reconciler: reconciler,
		clock:      clock,
		logger:     logger,
	}
}

func (s *service) CreateContract(ctx context.Context, agentID string, req CreateContractRequest) (*contract.Contract, error) {
	c, err := contract.NewContract(agentID, req.ClientID, req.ClientName,
		contract.RepresentationType(req.RepresentationType), req.StartDate, req.EndDate, s.clock.Now())
	if err != nil {
		return nil, err
	}
	c.PropertyAddress = req.PropertyAddress
	c.SetAgentIdentity(req.AgentDisplayName, req.AgentLicense)
	if req.CommissionRate != nil {
		f, _ := req.CommissionRate.Float64()
		if _, err := values.NewCommissionRate(f); err != nil {
			return nil, errors.NewValidationError("INVALID_COMMISSION_RATE", err.Error())
		}
		c.CommissionRate = req.CommissionRate
	}

	if err := s.repos.Contracts.Create(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("contract created",
		zap.String("agent_id", agentID),
		zap.String("contract_id", c.ID.String()),
		zap.String("client_id", c.ClientID),
	)
	return c, nil
}

func (s *service) ListContracts(ctx context.Context, agentID string) ([]*contract.Contract, error) {
	return s.repos.Contracts.ListByAgent(ctx, agentID)
}

func (s *service) GetContract(ctx context.Context, agentID string, id uuid.UUID) (*contract.Contract, error) {
	c, err := s.repos.Contracts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.BelongsTo(agentID) {
		return nil, errors.NewForbiddenError("contract belongs to another agent")
	}
	return c, nil
}

// TerminateContract ends an active contract early. Detection stops treating
// it as active from the next scan.
func (s *service) TerminateContract(ctx context.Context, agentID string, id uuid.UUID) (*contract.Contract, error) {
	c, err := s.GetContract(ctx, agentID, id)
	if err != nil {
		return nil, err
	}
	if err := c.Terminate(s.clock.Now()); err != nil {
		return nil, err
	}
	updated, err := s.repos.Contracts.UpdateWithStatusCheck(ctx, c, contract.StatusActive)
	if err != nil {
		return nil, err
	}
	if !updated {
		current, err := s.repos.Contracts.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, errors.NewInvalidStateTransitionError("contract", current.Status.String(), "terminate")
	}
	s.logger.Info("contract terminated",
		zap.String("agent_id", agentID),
		zap.String("contract_id", c.ID.String()),
	)
	return c, nil
}

func (s *service) CreateShowing(ctx context.Context, agentID string, req CreateShowingRequest) (*showing.Showing, error) {
	sh, err := showing.NewShowing(agentID, req.ClientID, req.PropertyAddress, req.ScheduledDate, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.repos.Showings.Create(ctx, sh); err != nil {
		return nil, err
	}
	return sh, nil
}

func (s *service) ListShowings(ctx context.Context, agentID string) ([]*showing.Showing, error) {
	if s.reconciler != nil {
		n, err := s.reconciler.ReconcileOverdueShowings(ctx, agentID)
		if err != nil {
			s.logger.Warn("showing reconciliation failed before listing",
				zap.String("agent_id", agentID),
				zap.Int("reconciled", n),
				zap.Error(err),
			)
		}
	}
	return s.repos.Showings.ListByAgent(ctx, agentID)
}

func (s *service) CheckInShowing(ctx context.Context, agentID string, id uuid.UUID) (*showing.Showing, error) {
	return s.transitionShowing(ctx, agentID, id, "check in", (*showing.Showing).CheckIn)
}

func (s *service) CancelShowing(ctx context.Context, agentID string, id uuid.UUID) (*showing.Showing, error) {
	return s.transitionShowing(ctx, agentID, id, "cancel", (*showing.Showing).Cancel)
}

// transitionShowing applies a move out of scheduled and persists it with a
// status check, so a concurrent reconcile or a second request loses cleanly
func (s *service) transitionShowing(ctx context.Context, agentID string, id uuid.UUID, action string,
	apply func(*showing.Showing, time.Time) error) (*showing.Showing, error) {
	sh, err := s.repos.Showings.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sh.BelongsTo(agentID) {
		return nil, errors.NewForbiddenError("showing belongs to another agent")
	}
	if err := apply(sh, s.clock.Now()); err != nil {
		return nil, err
	}

	updated, err := s.repos.Showings.UpdateWithStatusCheck(ctx, sh, showing.StatusScheduled)
	if err != nil {
		return nil, err
	}
	if !updated {
		current, err := s.repos.Showings.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, errors.NewInvalidStateTransitionError("showing", current.Status.String(), action)
	}
	s.logger.Info("showing updated",
		zap.String("agent_id", agentID),
		zap.String("showing_id", sh.ID.String()),
		zap.String("status", sh.Status.String()),
	)
	return sh, nil
}

func (s *service) ListVisits(ctx context.Context, agentID string) ([]*showing.PropertyVisit, error) {
	return s.repos.Visits.ListByAgent(ctx, agentID)
}

func (s *service) CreateProtection(ctx context.Context, agentID string, req CreateProtectionRequest) (*protection.CommissionProtection, error) {
	p, err := protection.NewCommissionProtection(agentID, req.ClientID, req.PropertyAddress,
		protection.Type(req.ProtectionType), req.EvidenceType, req.ProtectedAmount, req.ExpirationDate, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := s.repos.Protections.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *service) ListProtections(ctx context.Context, agentID string) ([]*protection.CommissionProtection, error) {
	return s.repos.Protections.ListByAgent(ctx, agentID)
}

func (s *service) ListAlerts(ctx context.Context, agentID string, unreadOnly bool) ([]*alert.Alert, error) {
	return s.repos.Alerts.ListByAgent(ctx, agentID, unreadOnly)
}

func (s *service) MarkAlertRead(ctx context.Context, agentID string, id uuid.UUID) error {
	return s.repos.Alerts.MarkRead(ctx, agentID, id)
}
