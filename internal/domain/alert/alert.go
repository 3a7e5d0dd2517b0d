package alert

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type categorizes an alert
type Type string

const (
	TypeBreach           Type = "breach"
	TypeMissedShowing    Type = "missed_showing"
	TypeContractExpiring Type = "contract_expiring"
)

// Severity of an alert
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is an agent-facing notification persisted for the dashboard
type Alert struct {
	ID          uuid.UUID  `json:"id"`
	AgentID     string     `json:"agentId"`
	Type        Type       `json:"type"`
	Severity    Severity   `json:"severity"`
	Title       string     `json:"title"`
	Message     string     `json:"message"`
	ReferenceID *uuid.UUID `json:"referenceId,omitempty"`
	Read        bool       `json:"read"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// New creates an unread alert
func New(agentID string, typ Type, severity Severity, title, message string, ref *uuid.UUID, now time.Time) *Alert {
	return &Alert{
		ID:          uuid.New(),
		AgentID:     agentID,
		Type:        typ,
		Severity:    severity,
		Title:       title,
		Message:     message,
		ReferenceID: ref,
		CreatedAt:   now,
	}
}

// Repository defines the interface for alert persistence
type Repository interface {
	Create(ctx context.Context, a *Alert) error

	// CreateOnce inserts a contract-expiring alert unless one already exists
	// for the same contract and reports whether it was written
	CreateOnce(ctx context.Context, a *Alert) (bool, error)

	ListByAgent(ctx context.Context, agentID string, unreadOnly bool) ([]*Alert, error)

	// MarkRead returns ErrNotFound-wrapping errors when the alert is not the agent's
	MarkRead(ctx context.Context, agentID string, id uuid.UUID) error

	// CountUnread counts unread alerts of one type for the agent
	CountUnread(ctx context.Context, agentID string, typ Type) (int, error)
}
