package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/davidleathers/commission-protection-backend/internal/service/monitoring"
)

// Task names
const (
	TaskReconcileShowings = "reconcile_showings"
	TaskExpireContracts   = "expire_contracts"
	TaskWarnExpiring      = "warn_expiring_contracts"
	TaskNotifySweep       = "notification_sweep"
	TaskRescanContracts   = "rescan_contracts"
)

type ShowingReconciler interface {
	ReconcileOverdueShowings(ctx context.Context, agentID string) (int, error)
}

type ContractExpirer interface {
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}

type ExpiringContractWarner interface {
	WarnExpiringContracts(ctx context.Context, now time.Time) (int, error)
}

type NotificationSweeper interface {
	RetryPending(ctx context.Context) (int, error)
}

type ContractRescanner interface {
	RescanActiveContracts(ctx context.Context) (*monitoring.RescanSummary, error)
}

// Jobs holds the collaborators behind the standard tasks
type Jobs struct {
	Showings      ShowingReconciler
	Contracts     ContractExpirer
	Expiring      ExpiringContractWarner
	Notifications NotificationSweeper
	Rescans       ContractRescanner
	Now           func() time.Time
}

// Intervals configures the standard tasks
type Intervals struct {
	Reconcile time.Duration
	Sweep     time.Duration
	Rescan    time.Duration
}

// StandardTasks builds the maintenance tasks. Contract expiry and the
// expiring-soon warning share the reconcile interval. A nil collaborator drops its task.
func StandardTasks(jobs Jobs, iv Intervals, logger *zap.Logger) []Task {
	if logger == nil {
		logger = zap.NewNop()
	}
	now := jobs.Now
	if now == nil {
		now = time.Now
	}

	var tasks []Task
	if jobs.Showings != nil {
		tasks = append(tasks, Task{
			Name:       TaskReconcileShowings,
			Interval:   iv.Reconcile,
			RunOnStart: true,
			Run: func(ctx context.Context) error {
				n, err := jobs.Showings.ReconcileOverdueShowings(ctx, "")
				if n > 0 {
					logger.Info("overdue showings reconciled", zap.Int("count", n))
				}
				return err
			},
		})
	}
	if jobs.Contracts != nil {
		tasks = append(tasks, Task{
			Name:       TaskExpireContracts,
			Interval:   iv.Reconcile,
			RunOnStart: true,
			Run: func(ctx context.Context) error {
				n, err := jobs.Contracts.ExpireOverdue(ctx, now())
				if n > 0 {
					logger.Info("contracts expired", zap.Int64("count", n))
				}
				return err
			},
		})
	}
	if jobs.Expiring != nil {
		tasks = append(tasks, Task{
			Name:     TaskWarnExpiring,
			Interval: iv.Reconcile,
			Run: func(ctx context.Context) error {
				n, err := jobs.Expiring.WarnExpiringContracts(ctx, now())
				if n > 0 {
					logger.Info("expiring contract alerts raised", zap.Int("count", n))
				}
				return err
			},
		})
	}
	if jobs.Notifications != nil {
		tasks = append(tasks, Task{
			Name:     TaskNotifySweep,
			Interval: iv.Sweep,
			Run: func(ctx context.Context) error {
				n, err := jobs.Notifications.RetryPending(ctx)
				if n > 0 {
					logger.Info("pending notifications delivered", zap.Int("count", n))
				}
				return err
			},
		})
	}
	if jobs.Rescans != nil {
		tasks = append(tasks, Task{
			Name:     TaskRescanContracts,
			Interval: iv.Rescan,
			Run: func(ctx context.Context) error {
				summary, err := jobs.Rescans.RescanActiveContracts(ctx)
				if summary != nil {
					logger.Info("active contracts rescanned",
						zap.Int("contracts", summary.Contracts),
						zap.Int("scanned", summary.Scanned),
						zap.Int("failed", summary.Failed),
						zap.Int("new_breaches", summary.NewBreaches),
					)
				}
				return err
			},
		})
	}
	return tasks
}
