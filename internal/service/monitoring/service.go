package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/commission-protection-backend/internal/domain/breach"
	"github.com/davidleathers/commission-protection-backend/internal/domain/contract"
	"github.com/davidleathers/commission-protection-backend/internal/domain/errors"
	"github.com/davidleathers/commission-protection-backend/internal/domain/values"
	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/cache"
	"github.com/davidleathers/commission-protection-backend/internal/service/detection"
	"github.com/davidleathers/commission-protection-backend/internal/service/scanner"
)

// Config holds the quota and rescan settings
type Config struct {
	// ScansPerHour bounds agent-initiated scans; zero disables the quota
	ScansPerHour  int
	RescanWorkers int
}

type service struct {
	scanner   scanner.Service
	detector  detection.Service
	contracts contract.Repository
	limiter   cache.RateLimiter
	clock     values.Clock
	config    Config
	logger    *zap.Logger
}

// NewService creates the monitoring orchestrator. limiter may be nil.
func NewService(sc scanner.Service, det detection.Service, contracts contract.Repository,
	limiter cache.RateLimiter, clock values.Clock, cfg Config, logger *zap.Logger) Service {
	if cfg.RescanWorkers <= 0 {
		cfg.RescanWorkers = 4
	}
	if clock == nil {
		clock = values.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		scanner:   sc,
		detector:  det,
		contracts: contracts,
		limiter:   limiter,
		clock:     clock,
		config:    cfg,
		logger:    logger,
	}
}

func (s *service) MonitorPublicRecords(ctx context.Context, agent breach.AgentIdentity, req MonitorRequest) (*MonitorResult, error) {
	if agent.AgentID == "" {
		return nil, errors.NewUnauthorizedError("agent identity is required")
	}

	scanReq := scanner.ScanRequest{
		ClientName:      req.ClientName,
		ContractStart:   req.ContractStartDate,
		ContractEnd:     req.ContractEndDate,
		AgentIdentifier: agent.AgentID,
	}
	if _, err := scanReq.Validate(); err != nil {
		return nil, err
	}

	if err := s.checkQuota(ctx, agent.AgentID); err != nil {
		return nil, err
	}

	resolved, err := s.resolveContract(ctx, agent.AgentID, req)
	if err != nil {
		return nil, err
	}
	var scoped *contract.Contract
	if resolved != nil {
		if scoped, err = scopeToRequest(resolved, req); err != nil {
			return nil, err
		}
	}

	scan, err := s.scanner.Scan(ctx, scanReq)
	if err != nil {
		return nil, err
	}

	result := &MonitorResult{
		TotalRecordsFound: scan.TotalRecordsFound,
		DataSource:        scan.DataSource,
		Providers:         scan.ProviderReports,
		Errors:            scan.Errors,
		Monitoring:        scan.Monitoring,
	}

	if resolved == nil {
		// nothing to persist against; still report what a contract would flag
		transient := &contract.Contract{
			AgentID:    agent.AgentID,
			ClientName: req.ClientName,
			StartDate:  req.ContractStartDate,
			EndDate:    req.ContractEndDate,
			Status:     contract.StatusActive,
		}
		result.BreachRecords = s.detector.Classify(transient, agent, scan.Records, s.clock.Now())
	} else {
		det, err := s.detector.Detect(ctx, scoped, mergeIdentity(agent, resolved), scan.Records)
		if err != nil {
			return nil, err
		}
		id := resolved.ID
		result.ContractID = &id
		result.Persisted = true
		result.BreachRecords = det.Candidates
		result.NewBreaches = len(det.Created)
	}

	result.BreachesDetected = len(result.BreachRecords)
	losses := make([]values.Money, 0, len(result.BreachRecords))
	for _, c := range result.BreachRecords {
		losses = append(losses, c.EstimatedLoss)
	}
	result.EstimatedLostCommission = values.Sum(losses...)

	s.logger.Info("public records monitored",
		zap.String("agent_id", agent.AgentID),
		zap.Bool("persisted", result.Persisted),
		zap.Int("records", result.TotalRecordsFound),
		zap.Int("breaches", result.BreachesDetected),
		zap.Int("new_breaches", result.NewBreaches))

	return result, nil
}

// checkQuota fails open when redis is unavailable
func (s *service) checkQuota(ctx context.Context, agentID string) error {
	if s.limiter == nil || s.config.ScansPerHour <= 0 {
		return nil
	}
	key := cache.ScanQuotaPrefix + agentID
	allowed, err := s.limiter.Allow(ctx, key, s.config.ScansPerHour, time.Hour)
	if err != nil {
		s.logger.Warn("scan quota check failed", zap.String("agent_id", agentID), zap.Error(err))
		return nil
	}
	if !allowed {
		return errors.NewRateLimitError("public records scan quota exceeded; try again later").
			WithDetails(map[string]interface{}{"limit_per_hour": s.config.ScansPerHour})
	}
	return nil
}

// resolveContract returns nil when no contract applies
func (s *service) resolveContract(ctx context.Context, agentID string, req MonitorRequest) (*contract.Contract, error) {
	if req.ContractID != nil {
		c, err := s.contracts.GetByID(ctx, *req.ContractID)
		if err != nil {
			return nil, err
		}
		if !c.BelongsTo(agentID) {
			return nil, errors.NewForbiddenError("contract belongs to another agent")
		}
		return c, nil
	}

	c, err := s.contracts.FindActiveForClient(ctx, agentID, req.ClientName)
	if errors.IsKind(err, errors.KindNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// scopeToRequest narrows the contract to the days shared with the requested
// window, so nothing outside the contract is ever flagged against it
func scopeToRequest(c *contract.Contract, req MonitorRequest) (*contract.Contract, error) {
	requested := values.DateWindow{Start: req.ContractStartDate, End: req.ContractEndDate}
	shared, ok := c.Window().Intersect(requested)
	if !ok {
		return nil, errors.NewValidationError("WINDOW_OUTSIDE_CONTRACT",
			"requested window does not overlap the contract window").
			WithDetails(map[string]interface{}{
				"contract_start": values.Day(c.StartDate).Format(values.DateLayout),
				"contract_end":   values.Day(c.EndDate).Format(values.DateLayout),
			})
	}
	scoped := *c
	scoped.StartDate = shared.Start
	scoped.EndDate = shared.End
	return &scoped, nil
}

// contractIdentity is the agent as recorded on the contract
func contractIdentity(c *contract.Contract) breach.AgentIdentity {
	return breach.AgentIdentity{
		AgentID:       c.AgentID,
		DisplayName:   c.AgentDisplayName,
		LicenseNumber: c.AgentLicense,
	}
}

// mergeIdentity fills the caller's blank identity fields from the contract
func mergeIdentity(caller breach.AgentIdentity, c *contract.Contract) breach.AgentIdentity {
	stored := contractIdentity(c)
	if caller.DisplayName == "" {
		caller.DisplayName = stored.DisplayName
	}
	if caller.LicenseNumber == "" {
		caller.LicenseNumber = stored.LicenseNumber
	}
	return caller
}
