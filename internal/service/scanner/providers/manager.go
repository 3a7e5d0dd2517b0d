package providers

import (
	"go.uber.org/zap"

	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/config"
)

// Manager holds every known provider in priority order
type Manager struct {
	providers []Provider
	logger    *zap.Logger
}

// Selection is the providers a scan will call plus those it reports as skipped
type Selection struct {
	Active  []Provider
	Skipped []Provider
}

// NewManager builds the four vendor adapters, each behind its own breaker
func NewManager(cfg config.ProvidersConfig, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	breaker := func() *CircuitBreaker {
		return NewCircuitBreaker(CircuitBreakerConfig{})
	}
	m := New(logger,
		WithCircuitBreaker(NewCountyRecorder(cfg.CountyRecorder, logger), breaker()),
		WithCircuitBreaker(NewAttom(cfg.Attom, logger), breaker()),
		WithCircuitBreaker(NewRegrid(cfg.Regrid, logger), breaker()),
		WithCircuitBreaker(NewRentcast(cfg.Rentcast, logger), breaker()),
	)
	for _, p := range m.providers {
		logger.Info("public records provider",
			zap.String("provider", p.Name()),
			zap.String("tier", string(p.Tier())),
			zap.Bool("configured", p.Configured()))
	}
	return m
}

// New builds a manager over arbitrary providers, kept in the given order
func New(logger *zap.Logger, providers ...Provider) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{providers: providers, logger: logger}
}

// All returns every provider in priority order
func (m *Manager) All() []Provider {
	return m.providers
}

// Select returns the configured official providers, falling back to the
// configured secondary providers when no official one is configured.
// Everything not selected is skipped.
func (m *Manager) Select() Selection {
	tier := TierSecondary
	for _, p := range m.providers {
		if p.Configured() && p.Tier() == TierOfficial {
			tier = TierOfficial
			break
		}
	}

	var sel Selection
	for _, p := range m.providers {
		if p.Configured() && p.Tier() == tier {
			sel.Active = append(sel.Active, p)
		} else {
			sel.Skipped = append(sel.Skipped, p)
		}
	}
	return sel
}
