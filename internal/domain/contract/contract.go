package contract

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidleathers/commission-protection-backend/internal/domain/errors"
	"github.com/davidleathers/commission-protection-backend/internal/domain/values"
)

// Contract is an exclusive representation agreement between an agent and a client
type Contract struct {
	ID                 uuid.UUID          `json:"id"`
	AgentID            string             `json:"agentId"`
	// AgentDisplayName and AgentLicense identify the agent on public records
	// when detection runs without a caller, as the scheduled rescan does
	AgentDisplayName   string             `json:"agentDisplayName,omitempty"`
	AgentLicense       string             `json:"agentLicense,omitempty"`
	ClientID           string             `json:"clientId"`
	ClientName         string             `json:"clientName"`
	PropertyAddress    string             `json:"propertyAddress,omitempty"`
	RepresentationType RepresentationType `json:"representationType"`
	StartDate          time.Time          `json:"startDate"`
	EndDate            time.Time          `json:"endDate"`
	Status             Status             `json:"status"`
	CommissionRate     *decimal.Decimal   `json:"commissionRate,omitempty"`
	CreatedAt          time.Time          `json:"createdAt"`
	UpdatedAt          time.Time          `json:"updatedAt"`
}

// RepresentationType is the side of the transaction the agent represents
type RepresentationType string

const (
	RepresentationBuyer  RepresentationType = "buyer"
	RepresentationSeller RepresentationType = "seller"
)

func (r RepresentationType) IsValid() bool {
	return r == RepresentationBuyer || r == RepresentationSeller
}

// Status represents the contract lifecycle state
type Status string

const (
	StatusActive     Status = "active"
	StatusExpired    Status = "expired"
	StatusTerminated Status = "terminated"
)

func (s Status) String() string {
	return string(s)
}

// NewContract validates and creates an active contract
func NewContract(agentID, clientID, clientName string, rep RepresentationType, start, end, now time.Time) (*Contract, error) {
	if strings.TrimSpace(agentID) == "" {
		return nil, errors.NewValidationError("INVALID_AGENT", "agent ID is required")
	}
	if strings.TrimSpace(clientName) == "" {
		return nil, errors.NewValidationError("INVALID_CLIENT", "client name is required")
	}
	if !rep.IsValid() {
		return nil, errors.NewValidationError("INVALID_REPRESENTATION", "representation type must be buyer or seller")
	}
	if _, err := values.NewDateWindow(start, end); err != nil {
		return nil, errors.NewValidationError("INVALID_DATE_RANGE", err.Error())
	}
	if strings.TrimSpace(clientID) == "" {
		clientID = values.SlugOf(clientName)
	}

	return &Contract{
		ID:                 uuid.New(),
		AgentID:            agentID,
		ClientID:           clientID,
		ClientName:         strings.Join(strings.Fields(clientName), " "),
		RepresentationType: rep,
		StartDate:          start,
		EndDate:            end,
		Status:             StatusActive,
		CreatedAt:          now,
		UpdatedAt:          now,
	}, nil
}

// SetAgentIdentity records how the agent appears on public records
func (c *Contract) SetAgentIdentity(displayName, license string) {
	c.AgentDisplayName = strings.TrimSpace(displayName)
	c.AgentLicense = strings.TrimSpace(license)
}

// Window returns the protected date range
func (c *Contract) Window() values.DateWindow {
	return values.DateWindow{Start: c.StartDate, End: c.EndDate}
}

// Covers reports whether t falls inside the contract window, both ends inclusive
func (c *Contract) Covers(t time.Time) bool {
	return c.Window().Contains(t)
}

func (c *Contract) IsActive() bool {
	return c.Status == StatusActive
}

func (c *Contract) BelongsTo(agentID string) bool {
	return c.AgentID == agentID
}

// ExpiresWithin is true for an active contract whose end day lies in [now, now+d]
func (c *Contract) ExpiresWithin(now time.Time, d time.Duration) bool {
	if !c.IsActive() {
		return false
	}
	end := values.Day(c.EndDate)
	return !end.Before(values.Day(now)) && !end.After(values.Day(now.Add(d)))
}

// Terminate ends an active contract early
func (c *Contract) Terminate(now time.Time) error {
	if c.Status != StatusActive {
		return errors.NewInvalidStateTransitionError("contract", c.Status.String(), "terminate")
	}
	c.Status = StatusTerminated
	c.UpdatedAt = now
	return nil
}

// EffectiveRate returns the contract override or the supplied default
func (c *Contract) EffectiveRate(def values.CommissionRate) values.CommissionRate {
	if c.CommissionRate == nil {
		return def
	}
	f, _ := c.CommissionRate.Float64()
	rate, err := values.NewCommissionRate(f)
	if err != nil {
		return def
	}
	return rate
}
