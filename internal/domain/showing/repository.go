package showing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for showing persistence
type Repository interface {
	Create(ctx context.Context, s *Showing) error

	GetByID(ctx context.Context, id uuid.UUID) (*Showing, error)

	// UpdateWithStatusCheck persists s only if the stored status is still
	// expected and reports whether the row was written
	UpdateWithStatusCheck(ctx context.Context, s *Showing, expected Status) (bool, error)

	ListByAgent(ctx context.Context, agentID string) ([]*Showing, error)

	ListByClient(ctx context.Context, agentID, clientID string) ([]*Showing, error)

	// ListOverdueScheduled returns scheduled showings before cutoff. An empty
	// agentID means every agent.
	ListOverdueScheduled(ctx context.Context, agentID string, cutoff time.Time) ([]*Showing, error)

	// MarkNoShow moves a showing from scheduled to no-show together with its
	// companion visit and reports whether this call performed the transition.
	// Either both rows are written or neither is.
	MarkNoShow(ctx context.Context, id uuid.UUID, visit *PropertyVisit, now time.Time) (bool, error)
}

// VisitRepository reads property visits. Visits are written together with
// the showing transition that produces them, see Repository.MarkNoShow.
type VisitRepository interface {
	ListByAgent(ctx context.Context, agentID string) ([]*PropertyVisit, error)

	ListByClient(ctx context.Context, agentID, clientID string) ([]*PropertyVisit, error)
}
