package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/commission-protection-backend/internal/domain/breach"
	"github.com/davidleathers/commission-protection-backend/internal/domain/values"
	"github.com/davidleathers/commission-protection-backend/internal/metrics"
)

const (
	outcomeDelivered = "delivered"
	outcomeFailed    = "failed"

	maxBackoff = 2 * time.Minute
)

// errUnrecorded marks a notice the notifier accepted but whose notification
// date could not be stored
var errUnrecorded = errors.New("notification delivered but not recorded")

// DispatcherConfig bounds delivery retries
type DispatcherConfig struct {
	MaxAttempts  int
	RetryBackoff time.Duration
	// BatchSize caps one RetryPending sweep
	BatchSize int
}

// retryWindow is how long Dispatch may still be retrying a fresh
// confirmation
func (c DispatcherConfig) retryWindow() time.Duration {
	var total time.Duration
	backoff := c.RetryBackoff
	for attempt := 1; attempt < c.MaxAttempts; attempt++ {
		total += backoff
		backoff = min(backoff*2, maxBackoff)
	}
	return total
}

// Dispatcher delivers confirmed-breach notices and records the agent
// notification date once a notifier accepts one.
type Dispatcher struct {
	notifier Notifier
	breaches breach.Repository
	metrics  *metrics.Registry
	clock    values.Clock
	config   DispatcherConfig
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewDispatcher wires a dispatcher
func NewDispatcher(notifier Notifier, breaches breach.Repository, m *metrics.Registry, clock values.Clock, cfg DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if clock == nil {
		clock = values.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		notifier: notifier,
		breaches: breaches,
		metrics:  m,
		clock:    clock,
		config:   cfg,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

// Dispatch retries with exponential backoff until a notifier accepts the
// notice or attempts run out. Undelivered notices are picked up by
// RetryPending. A delivered notice is never re-sent from here, even when its
// notification date cannot be stored.
func (d *Dispatcher) Dispatch(ctx context.Context, b *breach.PotentialBreach) {
	if b == nil || b.Status != breach.StatusConfirmed {
		return
	}
	logger := d.logger.With(zap.String("breach_id", b.ID.String()), zap.String("agent_id", b.AgentID))

	backoff := d.config.RetryBackoff
	for attempt := 1; attempt <= d.config.MaxAttempts; attempt++ {
		err := d.deliver(ctx, b)
		if err == nil {
			return
		}
		if errors.Is(err, errUnrecorded) {
			logger.Warn("breach notification delivered but not recorded; left for sweep", zap.Error(err))
			return
		}
		logger.Warn("breach notification attempt failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", d.config.MaxAttempts),
			zap.Error(err),
		)
		if attempt == d.config.MaxAttempts {
			break
		}
		if err := d.sleep(ctx, backoff); err != nil {
			logger.Info("breach notification abandoned", zap.Error(err))
			return
		}
		backoff = min(backoff*2, maxBackoff)
	}
	logger.Error("breach notification exhausted retries; left for sweep")
}

// RetryPending makes one delivery attempt for each confirmed breach that
// was never notified. Breaches confirmed within the retry window are left to
// the Dispatch call that may still own them. It returns the number delivered.
func (d *Dispatcher) RetryPending(ctx context.Context) (int, error) {
	cutoff := d.clock.Now().Add(-d.config.retryWindow())
	pending, err := d.breaches.ListUnnotifiedConfirmed(ctx, cutoff, d.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list unnotified breaches: %w", err)
	}
	d.metrics.SetPendingNotifications(int64(len(pending)))

	delivered := 0
	for _, b := range pending {
		if ctx.Err() != nil {
			break
		}
		if err := d.deliver(ctx, b); err != nil {
			d.logger.Debug("pending notification still undeliverable",
				zap.String("breach_id", b.ID.String()),
				zap.Error(err),
			)
			continue
		}
		delivered++
	}
	d.metrics.SetPendingNotifications(int64(len(pending) - delivered))
	return delivered, ctx.Err()
}

func (d *Dispatcher) deliver(ctx context.Context, b *breach.PotentialBreach) error {
	if err := d.notifier.NotifyBreachConfirmed(ctx, NoticeFor(b)); err != nil {
		d.metrics.RecordNotificationAttempt(ctx, outcomeFailed)
		return err
	}
	d.metrics.RecordNotificationAttempt(ctx, outcomeDelivered)

	now := d.clock.Now()
	if err := d.breaches.MarkAgentNotified(ctx, b.ID, now); err != nil {
		return fmt.Errorf("%w: %w", errUnrecorded, err)
	}
	b.AgentNotifiedDate = &now
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
