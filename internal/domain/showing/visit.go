package showing

import (
	"time"

	"github.com/google/uuid"
)

// RiskLevel mirrors the breach risk scale for visit evidence
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// PropertyVisit is a recorded or inferred client presence at a property
type PropertyVisit struct {
	ID               uuid.UUID  `json:"id"`
	AgentID          string     `json:"agentId"`
	ClientID         string     `json:"clientId"`
	ShowingID        *uuid.UUID `json:"showingId,omitempty"`
	PropertyAddress  string     `json:"propertyAddress"`
	VisitDate        time.Time  `json:"visitDate"`
	WasScheduled     bool       `json:"wasScheduled"`
	AgentPresent     bool       `json:"agentPresent"`
	RiskLevel        RiskLevel  `json:"riskLevel"`
	FollowUpRequired bool       `json:"followUpRequired"`
	Notes            string     `json:"notes,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
}

// MissedShowingVisit is the companion visit recorded when a showing lapses
// into no-show
func MissedShowingVisit(s *Showing, now time.Time) *PropertyVisit {
	id := s.ID
	return &PropertyVisit{
		ID:               uuid.New(),
		AgentID:          s.AgentID,
		ClientID:         s.ClientID,
		ShowingID:        &id,
		PropertyAddress:  s.PropertyAddress,
		VisitDate:        s.ScheduledDate,
		WasScheduled:     true,
		AgentPresent:     true,
		RiskLevel:        RiskHigh,
		FollowUpRequired: true,
		Notes:            "Scheduled showing was not checked in; client may have visited independently",
		CreatedAt:        now,
	}
}
