// Package review drives the admin breach review workflow and the scoped
// breach read models.
package review

import (
	"context"

	"github.com/google/uuid"

	"github.com/davidleathers/commission-protection-backend/internal/domain/breach"
)

// Service defines the breach review interface
type Service interface {
	StartInvestigation(ctx context.Context, actor Actor, id uuid.UUID) (*breach.PotentialBreach, error)
	Confirm(ctx context.Context, actor Actor, id uuid.UUID, notes string, requiresLegalAction bool) (*breach.PotentialBreach, error)
	Dismiss(ctx context.Context, actor Actor, id uuid.UUID, notes string) (*breach.PotentialBreach, error)

	// List returns breaches with the terms of their contracts
	List(ctx context.Context, scope breach.Scope, filter breach.Filter) ([]*breach.ListItem, error)
	// Get returns forbidden when the breach is outside scope
	Get(ctx context.Context, scope breach.Scope, id uuid.UUID) (*breach.PotentialBreach, error)
	Stats(ctx context.Context, scope breach.Scope) (*breach.Stats, error)
}

// Dispatcher delivers the confirmed-breach notice to the agent. Dispatch is
// called on its own goroutine and must not be relied on for the outcome.
type Dispatcher interface {
	Dispatch(ctx context.Context, b *breach.PotentialBreach)
}

// Actor is the authenticated user performing a review
type Actor struct {
	UserID  string
	IsAdmin bool
}
