package showing

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/commission-protection-backend/internal/domain/errors"
)

// DefaultGracePeriod is how long after its scheduled time a showing may stay
// unchecked before it is considered missed
const DefaultGracePeriod = 2 * time.Hour

// Showing is a scheduled client visit to a property with the agent
type Showing struct {
	ID              uuid.UUID  `json:"id"`
	AgentID         string     `json:"agentId"`
	ClientID        string     `json:"clientId"`
	PropertyAddress string     `json:"propertyAddress"`
	ScheduledDate   time.Time  `json:"scheduledDate"`
	Status          Status     `json:"status"`
	CheckedInAt     *time.Time `json:"checkedInAt,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Status of a showing
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusNoShow    Status = "no-show"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// NewShowing creates a scheduled showing
func NewShowing(agentID, clientID, address string, scheduled, now time.Time) (*Showing, error) {
	if strings.TrimSpace(agentID) == "" {
		return nil, errors.NewValidationError("INVALID_AGENT", "agent ID is required")
	}
	if strings.TrimSpace(clientID) == "" {
		return nil, errors.NewValidationError("INVALID_CLIENT", "client ID is required")
	}
	if strings.TrimSpace(address) == "" {
		return nil, errors.NewValidationError("INVALID_ADDRESS", "property address is required")
	}
	if scheduled.IsZero() {
		return nil, errors.NewValidationError("INVALID_SCHEDULE", "scheduled date is required")
	}
	return &Showing{
		ID:              uuid.New(),
		AgentID:         agentID,
		ClientID:        clientID,
		PropertyAddress: strings.TrimSpace(address),
		ScheduledDate:   scheduled,
		Status:          StatusScheduled,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

func (s *Showing) BelongsTo(agentID string) bool {
	return s.AgentID == agentID
}

// IsOverdue is true for a scheduled showing more than grace past its time
func (s *Showing) IsOverdue(now time.Time, grace time.Duration) bool {
	return s.Status == StatusScheduled && s.ScheduledDate.Before(now.Add(-grace))
}

// CheckIn records the agent's arrival and completes the showing
func (s *Showing) CheckIn(now time.Time) error {
	if s.Status != StatusScheduled {
		return errors.NewInvalidStateTransitionError("showing", s.Status.String(), "check in")
	}
	s.CheckedInAt = &now
	s.Status = StatusCompleted
	s.UpdatedAt = now
	return nil
}

// Cancel withdraws a showing that has not happened yet
func (s *Showing) Cancel(now time.Time) error {
	if s.Status != StatusScheduled {
		return errors.NewInvalidStateTransitionError("showing", s.Status.String(), "cancel")
	}
	s.Status = StatusCancelled
	s.UpdatedAt = now
	return nil
}

// MarkNoShow transitions a scheduled showing to no-show
func (s *Showing) MarkNoShow(now time.Time) error {
	if s.Status != StatusScheduled {
		return errors.NewInvalidStateTransitionError("showing", s.Status.String(), "mark no-show")
	}
	s.Status = StatusNoShow
	s.UpdatedAt = now
	return nil
}
