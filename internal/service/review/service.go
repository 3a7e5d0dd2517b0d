package review

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/davidleathers/commission-protection-backend/internal/domain/breach"
	"github.com/davidleathers/commission-protection-backend/internal/domain/errors"
	"github.com/davidleathers/commission-protection-backend/internal/domain/values"
	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/telemetry"
	"github.com/davidleathers/commission-protection-backend/internal/metrics"
)

type service struct {
	breaches   breach.Repository
	dispatcher Dispatcher
	metrics    *metrics.Registry
	clock      values.Clock
	tracer     trace.Tracer
	logger     *zap.Logger
}

// NewService creates a review service. dispatcher and metrics may be nil.
func NewService(breaches breach.Repository, dispatcher Dispatcher, m *metrics.Registry,
	clock values.Clock, logger *zap.Logger) Service {
	if clock == nil {
		clock = values.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &service{
		breaches:   breaches,
		dispatcher: dispatcher,
		metrics:    m,
		clock:      clock,
		tracer:     otel.Tracer("review"),
		logger:     logger,
	}
}

func (s *service) StartInvestigation(ctx context.Context, actor Actor, id uuid.UUID) (*breach.PotentialBreach, error) {
	return s.transition(ctx, actor, id, "investigate", func(b *breach.PotentialBreach, now time.Time) error {
		return b.StartInvestigation(actor.UserID, now)
	})
}

func (s *service) Confirm(ctx context.Context, actor Actor, id uuid.UUID, notes string, requiresLegalAction bool) (*breach.PotentialBreach, error) {
	b, err := s.transition(ctx, actor, id, "confirm", func(b *breach.PotentialBreach, now time.Time) error {
		return b.Confirm(actor.UserID, notes, requiresLegalAction, now)
	})
	if err != nil {
		return nil, err
	}

	if s.dispatcher != nil {
		snapshot := *b
		go s.dispatcher.Dispatch(context.WithoutCancel(ctx), &snapshot)
	}
	return b, nil
}

func (s *service) Dismiss(ctx context.Context, actor Actor, id uuid.UUID, notes string) (*breach.PotentialBreach, error) {
	return s.transition(ctx, actor, id, "dismiss", func(b *breach.PotentialBreach, now time.Time) error {
		return b.Dismiss(actor.UserID, notes, now)
	})
}

// transition loads the breach, applies the domain change and persists it
// with a compare-and-swap on the status that was read
func (s *service) transition(ctx context.Context, actor Actor, id uuid.UUID, action string,
	apply func(*breach.PotentialBreach, time.Time) error) (*breach.PotentialBreach, error) {
	ctx, span := s.tracer.Start(ctx, "review."+action, trace.WithAttributes(
		attribute.String("breach_id", id.String()),
		attribute.String("reviewer_id", actor.UserID),
	))
	defer span.End()

	if !actor.IsAdmin {
		return nil, errors.NewForbiddenError("breach review requires an admin")
	}

	b, err := s.breaches.GetByID(ctx, id)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	expected := b.Status
	if err := apply(b, s.clock.Now()); err != nil {
		s.metrics.RecordTransition(ctx, expected.String(), action, false)
		return nil, err
	}

	applied, err := s.breaches.UpdateWithStatusCheck(ctx, b, expected)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !applied {
		s.metrics.RecordTransition(ctx, expected.String(), b.Status.String(), false)
		return nil, s.conflict(ctx, id, expected, action)
	}

	s.metrics.RecordTransition(ctx, expected.String(), b.Status.String(), true)
	s.logger.Info("breach status changed",
		zap.String("breach_id", id.String()),
		zap.String("agent_id", b.AgentID),
		zap.String("reviewer_id", actor.UserID),
		zap.String("from", expected.String()),
		zap.String("to", b.Status.String()))
	return b, nil
}

// conflict re-reads a breach whose status moved underneath us
func (s *service) conflict(ctx context.Context, id uuid.UUID, expected breach.Status, action string) error {
	current, err := s.breaches.GetByID(ctx, id)
	if err != nil {
		return err
	}
	s.logger.Info("breach transition lost race",
		zap.String("breach_id", id.String()),
		zap.String("expected", expected.String()),
		zap.String("current", current.Status.String()))
	return errors.NewInvalidStateTransitionError("breach", current.Status.String(), action)
}

func (s *service) List(ctx context.Context, scope breach.Scope, filter breach.Filter) ([]*breach.ListItem, error) {
	return s.breaches.List(ctx, scope, filter)
}

func (s *service) Get(ctx context.Context, scope breach.Scope, id uuid.UUID) (*breach.PotentialBreach, error) {
	b, err := s.breaches.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !scope.IsAll() && !b.BelongsTo(scope.AgentID()) {
		return nil, errors.NewForbiddenError("breach belongs to another agent")
	}
	return b, nil
}

func (s *service) Stats(ctx context.Context, scope breach.Scope) (*breach.Stats, error) {
	return s.breaches.Stats(ctx, scope)
}
