package detection

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/commission-protection-backend/internal/domain/alert"
	"github.com/davidleathers/commission-protection-backend/internal/domain/breach"
	"github.com/davidleathers/commission-protection-backend/internal/domain/contract"
	"github.com/davidleathers/commission-protection-backend/internal/domain/errors"
	"github.com/davidleathers/commission-protection-backend/internal/domain/records"
	"github.com/davidleathers/commission-protection-backend/internal/domain/showing"
	"github.com/davidleathers/commission-protection-backend/internal/domain/values"
	"github.com/davidleathers/commission-protection-backend/internal/metrics"
)

// Config holds detection thresholds
type Config struct {
	CommissionRate     values.CommissionRate
	HighRiskLoss       values.Money
	ShowingGracePeriod time.Duration
}

// Repositories bundles the ports detection writes through
type Repositories struct {
	Breaches breach.Repository
	Showings showing.Repository
	Visits   showing.VisitRepository
	Alerts   alert.Repository
}

type service struct {
	repos   Repositories
	metrics *metrics.Registry
	clock   values.Clock
	config  Config
	logger  *zap.Logger
}

// NewService creates a detection service
func NewService(repos Repositories, m *metrics.Registry, clock values.Clock, cfg Config, logger *zap.Logger) Service {
	if cfg.CommissionRate.Decimal().IsZero() {
		cfg.CommissionRate = values.MustNewCommissionRate(values.DefaultCommissionRate)
	}
	if !cfg.HighRiskLoss.IsPositive() {
		cfg.HighRiskLoss = breach.DefaultHighRiskLoss
	}
	if cfg.ShowingGracePeriod <= 0 {
		cfg.ShowingGracePeriod = showing.DefaultGracePeriod
	}
	if clock == nil {
		clock = values.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{repos: repos, metrics: m, clock: clock, config: cfg, logger: logger}
}

func (s *service) Classify(c *contract.Contract, identity breach.AgentIdentity, recs []records.SaleRecord, now time.Time) []breach.Candidate {
	rate := c.EffectiveRate(s.config.CommissionRate)
	override := c.CommissionRate != nil

	out := make([]breach.Candidate, 0)
	for _, rec := range recs {
		if override {
			rec.EstimatedLostCommission = rate.Estimate(rec.SalePrice)
		}
		if cand, ok := breach.Evaluate(c.Window(), identity, rec, now, s.config.HighRiskLoss); ok {
			out = append(out, cand)
		}
	}
	return out
}

func (s *service) Detect(ctx context.Context, c *contract.Contract, identity breach.AgentIdentity, recs []records.SaleRecord) (*Result, error) {
	now := s.clock.Now()
	result := &Result{
		Candidates: s.Classify(c, identity, recs, now),
		Created:    []*breach.PotentialBreach{},
	}
	if len(result.Candidates) == 0 {
		return result, nil
	}

	seen, err := s.repos.Breaches.ExistingKeys(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	history := s.loadShowingHistory(ctx, c)

	for _, cand := range result.Candidates {
		key := breach.NewDedupKey(c.ID, cand.Record.PropertyAddress, cand.Record.SaleDate)
		if _, dup := seen[key]; dup {
			result.Duplicates++
			continue
		}
		seen[key] = struct{}{}

		b, err := breach.NewFromCandidate(c.ID, c.AgentID, c.ClientID, c.ClientName, cand,
			buildEvidence(c, cand, history, now), now)
		if err != nil {
			return nil, err
		}

		created, err := s.repos.Breaches.Create(ctx, b)
		if err != nil {
			return nil, err
		}
		if !created {
			// a concurrent scan won the partial unique index
			result.Duplicates++
			continue
		}

		result.Created = append(result.Created, b)
		s.metrics.RecordBreachDetected(ctx, string(b.RiskLevel), string(b.BreachType))
		s.logger.Info("potential breach detected",
			zap.String("breach_id", b.ID.String()),
			zap.String("agent_id", b.AgentID),
			zap.String("contract_id", c.ID.String()),
			zap.String("risk_level", string(b.RiskLevel)),
			zap.String("loss", b.EstimatedCommissionLoss.String()))

		s.raiseAlert(ctx, breachAlert(b, now))
	}

	return result, nil
}

func (s *service) ReconcileOverdueShowings(ctx context.Context, agentID string) (int, error) {
	now := s.clock.Now()
	overdue, err := s.repos.Showings.ListOverdueScheduled(ctx, agentID, now.Add(-s.config.ShowingGracePeriod))
	if err != nil {
		return 0, err
	}

	count := 0
	for _, sh := range overdue {
		visit := showing.MissedShowingVisit(sh, now)
		applied, err := s.repos.Showings.MarkNoShow(ctx, sh.ID, visit, now)
		if err != nil {
			return count, errors.Wrap(err, "failed to record missed showing")
		}
		if !applied {
			continue
		}
		count++

		ref := sh.ID
		s.raiseAlert(ctx, alert.New(sh.AgentID, alert.TypeMissedShowing, alert.SeverityWarning,
			"Missed showing",
			fmt.Sprintf("Showing at %s scheduled for %s was not checked in",
				sh.PropertyAddress, sh.ScheduledDate.Format(time.RFC3339)),
			&ref, now))
	}

	if count > 0 {
		s.logger.Info("reconciled overdue showings", zap.String("agent_id", agentID), zap.Int("count", count))
	}
	return count, nil
}

type showingHistory struct {
	showings []*showing.Showing
	visits   []*showing.PropertyVisit
}

// loadShowingHistory is best effort; missing history only thins the evidence
func (s *service) loadShowingHistory(ctx context.Context, c *contract.Contract) showingHistory {
	var h showingHistory
	var err error
	if h.showings, err = s.repos.Showings.ListByClient(ctx, c.AgentID, c.ClientID); err != nil {
		s.logger.Warn("failed to load showings for evidence", zap.String("contract_id", c.ID.String()), zap.Error(err))
	}
	if h.visits, err = s.repos.Visits.ListByClient(ctx, c.AgentID, c.ClientID); err != nil {
		s.logger.Warn("failed to load visits for evidence", zap.String("contract_id", c.ID.String()), zap.Error(err))
	}
	return h
}

// raiseAlert never fails detection
func (s *service) raiseAlert(ctx context.Context, a *alert.Alert) {
	if err := s.repos.Alerts.Create(ctx, a); err != nil {
		s.logger.Warn("failed to create alert",
			zap.String("agent_id", a.AgentID),
			zap.String("type", string(a.Type)),
			zap.Error(err))
	}
}

func buildEvidence(c *contract.Contract, cand breach.Candidate, h showingHistory, now time.Time) breach.EvidenceList {
	ev := breach.EvidenceList{
		breach.PropertySaleEvidence{Record: cand.Record, ScannedAt: now},
		breach.ContractViolationEvidence{
			ContractID:         c.ID,
			RepresentationType: string(c.RepresentationType),
			ContractStart:      c.StartDate,
			ContractEnd:        c.EndDate,
			Narrative: fmt.Sprintf("Sale on %s falls inside the %s representation period %s",
				cand.Record.SaleDate.Format(values.DateLayout), c.RepresentationType, c.Window().Key()),
		},
	}

	address := records.NormalizeAddress(cand.Record.PropertyAddress)
	var se breach.ShowingEvidence
	for _, sh := range h.showings {
		if records.NormalizeAddress(sh.PropertyAddress) == address {
			se.Showings = append(se.Showings, breach.ShowingRef{
				ShowingID:       sh.ID,
				PropertyAddress: sh.PropertyAddress,
				ScheduledDate:   sh.ScheduledDate,
				Status:          sh.Status.String(),
			})
		}
	}
	for _, v := range h.visits {
		if records.NormalizeAddress(v.PropertyAddress) == address {
			se.Visits = append(se.Visits, breach.VisitRef{
				VisitID:         v.ID,
				PropertyAddress: v.PropertyAddress,
				VisitDate:       v.VisitDate,
				RiskLevel:       string(v.RiskLevel),
				AgentPresent:    v.AgentPresent,
			})
		}
	}
	if len(se.Showings) > 0 || len(se.Visits) > 0 {
		ev = append(ev, se)
	}
	return ev
}

func breachAlert(b *breach.PotentialBreach, now time.Time) *alert.Alert {
	severity := alert.SeverityWarning
	if b.RiskLevel == breach.RiskHigh {
		severity = alert.SeverityCritical
	}
	ref := b.ID
	return alert.New(b.AgentID, alert.TypeBreach, severity,
		"Potential commission breach",
		fmt.Sprintf("%s (estimated loss %s)", b.Description, b.EstimatedCommissionLoss),
		&ref, now)
}
