package metrics

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Registry holds the domain metrics for the breach pipeline. A nil *Registry
// is valid and records nothing.
type Registry struct {
	meter metric.Meter

	// Scanner
	ScanDuration     metric.Float64Histogram
	ScanRecords      metric.Int64Counter
	ProviderFailures metric.Int64Counter

	// Breach pipeline
	BreachDetected    metric.Int64Counter
	BreachTransitions metric.Int64Counter

	// Notification
	NotificationAttempts metric.Int64Counter
	PendingNotifications metric.Int64ObservableGauge
	AlertSessions        metric.Int64ObservableGauge

	mu                   sync.RWMutex
	pendingNotifications int64
	alertSessions        int64
}

// NewRegistry creates the registry against the global meter provider
func NewRegistry(meterName string) (*Registry, error) {
	return NewRegistryWithMeter(otel.Meter(meterName))
}

// NewRegistryWithMeter creates the registry against an explicit meter
func NewRegistryWithMeter(meter metric.Meter) (*Registry, error) {
	r := &Registry{meter: meter}

	if err := r.initScanMetrics(); err != nil {
		return nil, err
	}
	if err := r.initBreachMetrics(); err != nil {
		return nil, err
	}
	if err := r.initNotificationMetrics(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) initScanMetrics() error {
	var err error

	r.ScanDuration, err = r.meter.Float64Histogram(
		"cpb.scan.duration",
		metric.WithDescription("Duration of a public-records scan across all providers"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 15000),
	)
	if err != nil {
		return err
	}

	r.ScanRecords, err = r.meter.Int64Counter(
		"cpb.scan.records",
		metric.WithDescription("Sale records returned per provider after client matching"),
	)
	if err != nil {
		return err
	}

	r.ProviderFailures, err = r.meter.Int64Counter(
		"cpb.provider.failures",
		metric.WithDescription("Provider calls that failed, timed out or returned malformed data"),
	)
	return err
}

func (r *Registry) initBreachMetrics() error {
	var err error

	r.BreachDetected, err = r.meter.Int64Counter(
		"cpb.breach.detected",
		metric.WithDescription("Potential breaches persisted by the detector"),
	)
	if err != nil {
		return err
	}

	r.BreachTransitions, err = r.meter.Int64Counter(
		"cpb.breach.transitions",
		metric.WithDescription("Review workflow status transitions"),
	)
	return err
}

func (r *Registry) initNotificationMetrics() error {
	var err error

	r.NotificationAttempts, err = r.meter.Int64Counter(
		"cpb.notification.attempts",
		metric.WithDescription("Agent notification delivery attempts by outcome"),
	)
	if err != nil {
		return err
	}

	r.PendingNotifications, err = r.meter.Int64ObservableGauge(
		"cpb.notification.pending",
		metric.WithDescription("Confirmed breaches awaiting agent notification at the last sweep"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.pendingNotifications)
			return nil
		}),
	)
	if err != nil {
		return err
	}

	r.AlertSessions, err = r.meter.Int64ObservableGauge(
		"cpb.alerts.sessions",
		metric.WithDescription("Connected alert websocket sessions"),
		metric.WithInt64Callback(func(ctx context.Context, o metric.Int64Observer) error {
			r.mu.RLock()
			defer r.mu.RUnlock()
			o.Observe(r.alertSessions)
			return nil
		}),
	)
	return err
}

// RecordScan records one full scan
func (r *Registry) RecordScan(ctx context.Context, durationMS float64, status string) {
	if r == nil {
		return
	}
	r.ScanDuration.Record(ctx, durationMS, metric.WithAttributes(attribute.String("status", status)))
}

// RecordProviderResult records one provider outcome within a scan
func (r *Registry) RecordProviderResult(ctx context.Context, provider string, records int, errCode string) {
	if r == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("provider", provider))
	if errCode != "" {
		r.ProviderFailures.Add(ctx, 1, metric.WithAttributes(
			attribute.String("provider", provider),
			attribute.String("code", errCode),
		))
		return
	}
	r.ScanRecords.Add(ctx, int64(records), attrs)
}

// RecordBreachDetected counts a newly persisted breach
func (r *Registry) RecordBreachDetected(ctx context.Context, riskLevel, breachType string) {
	if r == nil {
		return
	}
	r.BreachDetected.Add(ctx, 1, metric.WithAttributes(
		attribute.String("risk_level", riskLevel),
		attribute.String("breach_type", breachType),
	))
}

// RecordTransition counts a review transition attempt
func (r *Registry) RecordTransition(ctx context.Context, from, to string, applied bool) {
	if r == nil {
		return
	}
	r.BreachTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
		attribute.Bool("applied", applied),
	))
}

// RecordNotificationAttempt counts one delivery attempt
func (r *Registry) RecordNotificationAttempt(ctx context.Context, outcome string) {
	if r == nil {
		return
	}
	r.NotificationAttempts.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// SetPendingNotifications updates the pending notification gauge
func (r *Registry) SetPendingNotifications(n int64) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pendingNotifications = n
}

// AddAlertSessions adjusts the connected websocket session gauge
func (r *Registry) AddAlertSessions(delta int64) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alertSessions += delta
}
