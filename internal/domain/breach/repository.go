package breach

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/commission-protection-backend/internal/domain/values"
)

// Scope limits which agents' breaches a query may see
type Scope struct {
	agentID string
}

// AllAgents is the admin scope
func AllAgents() Scope { return Scope{} }

// ForAgent restricts to one agent's breaches
func ForAgent(agentID string) Scope { return Scope{agentID: agentID} }

func (s Scope) IsAll() bool { return s.agentID == "" }

func (s Scope) AgentID() string { return s.agentID }

// Filter narrows a breach listing
type Filter struct {
	Status    *Status
	RiskLevel *RiskLevel
	Limit     int
	Offset    int
}

// Stats is the review-side aggregation over a scope
type Stats struct {
	TotalBreaches         int          `json:"totalBreaches"`
	PendingBreaches       int          `json:"pendingBreaches"`
	InvestigatingBreaches int          `json:"investigatingBreaches"`
	ConfirmedBreaches     int          `json:"confirmedBreaches"`
	DismissedBreaches     int          `json:"dismissedBreaches"`
	HighRiskBreaches      int          `json:"highRiskBreaches"`
	TotalCommissionLoss   values.Money `json:"totalCommissionLoss"`
}

// Consistent checks that the per-status counts add up to the total
func (s Stats) Consistent() bool {
	return s.PendingBreaches+s.InvestigatingBreaches+s.ConfirmedBreaches+s.DismissedBreaches == s.TotalBreaches
}

// Repository defines the interface for breach persistence
type Repository interface {
	// Create inserts the breach. created is false when a non-dismissed breach
	// with the same dedup key already exists.
	Create(ctx context.Context, b *PotentialBreach) (created bool, err error)

	GetByID(ctx context.Context, id uuid.UUID) (*PotentialBreach, error)

	// List joins each breach to its contract terms
	List(ctx context.Context, scope Scope, filter Filter) ([]*ListItem, error)

	// ExistingKeys returns dedup keys of the contract's non-dismissed breaches
	ExistingKeys(ctx context.Context, contractID uuid.UUID) (map[DedupKey]struct{}, error)

	// UpdateWithStatusCheck persists b only if the stored status still equals
	// expected. It reports whether a row was updated.
	UpdateWithStatusCheck(ctx context.Context, b *PotentialBreach, expected Status) (bool, error)

	MarkAgentNotified(ctx context.Context, id uuid.UUID, at time.Time) error

	// ListUnnotifiedConfirmed returns breaches confirmed no later than
	// confirmedBefore that have no agent notification
	ListUnnotifiedConfirmed(ctx context.Context, confirmedBefore time.Time, limit int) ([]*PotentialBreach, error)

	Stats(ctx context.Context, scope Scope) (*Stats, error)
}
