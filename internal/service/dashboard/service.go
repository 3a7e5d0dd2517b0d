package dashboard

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/davidleathers/commission-protection-backend/internal/domain/alert"
	"github.com/davidleathers/commission-protection-backend/internal/domain/contract"
	"github.com/davidleathers/commission-protection-backend/internal/domain/errors"
	"github.com/davidleathers/commission-protection-backend/internal/domain/protection"
	"github.com/davidleathers/commission-protection-backend/internal/domain/values"
)

// DefaultExpiringSoonWindow is how far ahead a contract counts as expiring
const DefaultExpiringSoonWindow = 30 * 24 * time.Hour

type service struct {
	contracts      contract.Repository
	alerts         alert.Repository
	protections    protection.Repository
	expiringWindow time.Duration
	logger         *zap.Logger
}

// NewService creates a dashboard service
func NewService(contracts contract.Repository, alerts alert.Repository, protections protection.Repository, expiringWindow time.Duration, logger *zap.Logger) Service {
	if expiringWindow <= 0 {
		expiringWindow = DefaultExpiringSoonWindow
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		contracts:      contracts,
		alerts:         alerts,
		protections:    protections,
		expiringWindow: expiringWindow,
		logger:         logger,
	}
}

func (s *service) Stats(ctx context.Context, agentID string, now time.Time) (*Stats, error) {
	if agentID == "" {
		return nil, errors.NewValidationError("MISSING_AGENT", "agent id is required")
	}

	var (
		contracts   []*contract.Contract
		unread      int
		protections []*protection.CommissionProtection
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		contracts, err = s.contracts.ListByAgent(gctx, agentID)
		return errors.Wrap(err, "list contracts")
	})
	g.Go(func() error {
		var err error
		unread, err = s.alerts.CountUnread(gctx, agentID, alert.TypeBreach)
		return errors.Wrap(err, "count breach alerts")
	})
	g.Go(func() error {
		var err error
		protections, err = s.protections.ListByAgent(gctx, agentID)
		return errors.Wrap(err, "list protections")
	})
	if err := g.Wait(); err != nil {
		s.logger.Warn("dashboard aggregation failed", zap.String("agent_id", agentID), zap.Error(err))
		return nil, err
	}

	stats := &Stats{
		PotentialBreaches:   unread,
		ProtectedCommission: protection.TotalActive(protections, now),
	}
	for _, c := range contracts {
		if !c.IsActive() {
			continue
		}
		stats.ActiveContracts++
		if c.ExpiresWithin(now, s.expiringWindow) {
			stats.ExpiringSoon++
		}
	}
	return stats, nil
}

func (s *service) WarnExpiringContracts(ctx context.Context, now time.Time) (int, error) {
	active, err := s.contracts.ListActive(ctx)
	if err != nil {
		return 0, err
	}

	raised := 0
	for _, c := range active {
		if !c.ExpiresWithin(now, s.expiringWindow) {
			continue
		}
		ref := c.ID
		a := alert.New(c.AgentID, alert.TypeContractExpiring, alert.SeverityInfo,
			"Contract expiring soon",
			fmt.Sprintf("Representation of %s ends on %s", c.ClientName, c.EndDate.Format(values.DateLayout)),
			&ref, now)
		created, err := s.alerts.CreateOnce(ctx, a)
		if err != nil {
			return raised, errors.Wrap(err, "raise expiring contract alert")
		}
		if created {
			raised++
		}
	}
	return raised, nil
}
