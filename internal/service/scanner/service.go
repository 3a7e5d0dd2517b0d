package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/davidleathers/commission-protection-backend/internal/domain/records"
	"github.com/davidleathers/commission-protection-backend/internal/domain/values"
	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/cache"
	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/telemetry"
	"github.com/davidleathers/commission-protection-backend/internal/metrics"
	"github.com/davidleathers/commission-protection-backend/internal/service/scanner/providers"
)

const noDataSource = "none"

// Config holds the scan tunables
type Config struct {
	CommissionRate  values.CommissionRate
	ProviderTimeout time.Duration
	CacheTTL        time.Duration
	// ScanInterval is the gap reported as the next scheduled scan
	ScanInterval time.Duration
}

type service struct {
	selector ProviderSelector
	cache    cache.Cache
	metrics  *metrics.Registry
	clock    values.Clock
	config   Config
	tracer   trace.Tracer
	logger   *zap.Logger
}

// NewService creates a scanner. cache and metrics may be nil.
func NewService(selector ProviderSelector, c cache.Cache, m *metrics.Registry,
	clock values.Clock, cfg Config, logger *zap.Logger) Service {
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 10 * time.Second
	}
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = 24 * time.Hour
	}
	if cfg.CommissionRate.Decimal().IsZero() {
		cfg.CommissionRate = values.MustNewCommissionRate(values.DefaultCommissionRate)
	}
	if clock == nil {
		clock = values.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		selector: selector,
		cache:    c,
		metrics:  m,
		clock:    clock,
		config:   cfg,
		tracer:   otel.Tracer("scanner"),
		logger:   logger,
	}
}

// providerOutcome is what one provider goroutine hands back
type providerOutcome struct {
	records []records.SaleRecord
	err     error
	cached  bool
}

func (s *service) Scan(ctx context.Context, req ScanRequest) (*ScanResult, error) {
	window, err := req.Validate()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	now := s.clock.Now()
	sel := s.selector.Select()
	query := providers.SearchQuery{
		PartyName: strings.TrimSpace(req.ClientName),
		Start:     window.Start,
		End:       window.End,
	}

	outcomes := make([]providerOutcome, len(sel.Active))
	var wg sync.WaitGroup
	for i, p := range sel.Active {
		wg.Add(1)
		go func(i int, p providers.Provider) {
			defer wg.Done()
			outcomes[i] = s.searchProvider(ctx, p, query, window)
		}(i, p)
	}
	wg.Wait()

	result := &ScanResult{
		Records: []records.SaleRecord{},
		Errors:  []string{},
	}
	var responded []string
	complete := 0
	for i, p := range sel.Active {
		out := outcomes[i]
		report := ProviderReport{Name: p.Name(), Tier: p.Tier(), Cached: out.cached}

		if out.err != nil && !providers.IsPartial(out.err) {
			report.Status = ProviderFailed
			report.Error = providerErrorText(p.Name(), out.err)
			result.Errors = append(result.Errors, report.Error)
			s.logger.Warn("provider search failed",
				zap.String("provider", p.Name()),
				zap.String("code", providers.Code(out.err)),
				zap.Error(out.err))
			s.metrics.RecordProviderResult(ctx, p.Name(), 0, providers.Code(out.err))
			result.ProviderReports = append(result.ProviderReports, report)
			continue
		}

		matched := s.normalize(out.records, req.ClientName)
		report.Status = ProviderOK
		report.Records = len(matched)
		if out.err != nil {
			report.Status = ProviderPartial
			report.Error = providerErrorText(p.Name(), out.err)
			result.Errors = append(result.Errors, report.Error)
			s.logger.Warn("provider search incomplete",
				zap.String("provider", p.Name()),
				zap.String("code", providers.Code(out.err)),
				zap.Int("records", len(matched)),
				zap.Error(out.err))
		} else {
			complete++
		}
		responded = append(responded, p.Name())
		result.Records = append(result.Records, matched...)
		result.ProviderReports = append(result.ProviderReports, report)
		s.metrics.RecordProviderResult(ctx, p.Name(), len(matched), providers.Code(out.err))
	}

	for _, p := range sel.Skipped {
		result.ProviderReports = append(result.ProviderReports, ProviderReport{
			Name:   p.Name(),
			Tier:   p.Tier(),
			Status: ProviderSkipped,
		})
	}

	result.TotalRecordsFound = len(result.Records)
	result.DataSource = noDataSource
	if len(responded) > 0 {
		result.DataSource = strings.Join(responded, "+")
	}
	result.Monitoring = Monitoring{
		LastScanned: now,
		NextScan:    now.Add(s.config.ScanInterval),
		Status:      monitoringStatus(len(sel.Active), len(responded), complete),
	}

	s.metrics.RecordScan(ctx, float64(time.Since(start).Milliseconds()), string(result.Monitoring.Status))
	s.logger.Info("public records scan complete",
		zap.String("agent", req.AgentIdentifier),
		zap.String("window", window.Key()),
		zap.Int("records", result.TotalRecordsFound),
		zap.String("data_source", result.DataSource),
		zap.Int("errors", len(result.Errors)))

	return result, nil
}

// searchProvider runs one provider under its own deadline, consulting the
// response cache first
func (s *service) searchProvider(ctx context.Context, p providers.Provider,
	q providers.SearchQuery, window values.DateWindow) providerOutcome {
	ctx, span := s.tracer.Start(ctx, "scanner.provider",
		trace.WithAttributes(attribute.String("provider", p.Name())))
	defer span.End()

	key := cacheKey(p.Name(), q.PartyName, window)
	if s.cache != nil {
		var cached []records.SaleRecord
		err := s.cache.GetJSON(ctx, key, &cached)
		if err == nil {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return providerOutcome{records: cached, cached: true}
		}
		if !cache.IsMiss(err) {
			s.logger.Debug("provider cache read failed", zap.String("key", key), zap.Error(err))
		}
	}

	pctx, cancel := context.WithTimeout(ctx, s.config.ProviderTimeout)
	defer cancel()

	recs, err := p.SearchSales(pctx, q)
	if err != nil {
		telemetry.RecordError(span, err)
		if providers.IsPartial(err) {
			return providerOutcome{records: recs, err: err}
		}
		return providerOutcome{err: err}
	}
	span.SetAttributes(attribute.Int("records", len(recs)))

	if s.cache != nil && s.config.CacheTTL > 0 {
		if err := s.cache.SetJSON(ctx, key, recs, s.config.CacheTTL); err != nil {
			s.logger.Debug("provider cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return providerOutcome{records: recs}
}

// normalize keeps records where the client is a party and fills in the
// matched side and the estimated commission
func (s *service) normalize(in []records.SaleRecord, clientName string) []records.SaleRecord {
	out := make([]records.SaleRecord, 0, len(in))
	for _, rec := range in {
		party, ok := rec.MatchParty(clientName)
		if !ok {
			continue
		}
		rec.MatchedParty = party
		rec.EstimatedLostCommission = s.config.CommissionRate.Estimate(rec.SalePrice)
		out = append(out, rec)
	}
	return out
}

func cacheKey(provider, client string, window values.DateWindow) string {
	return cache.ProviderResponsePrefix + provider + ":" + records.NormalizeName(client) + ":" + window.Key()
}

func providerErrorText(name string, err error) string {
	var pe *providers.ProviderError
	if errors.As(err, &pe) {
		return pe.Error()
	}
	return fmt.Sprintf("provider %s: %v", name, err)
}

func monitoringStatus(selected, responded, complete int) MonitoringStatus {
	switch {
	case responded == 0:
		return MonitoringUnavailable
	case complete < selected:
		return MonitoringDegraded
	default:
		return MonitoringActive
	}
}
