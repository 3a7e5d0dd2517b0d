package breach

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/commission-protection-backend/internal/domain/errors"
	"github.com/davidleathers/commission-protection-backend/internal/domain/records"
	"github.com/davidleathers/commission-protection-backend/internal/domain/values"
)

// PotentialBreach is a suspected sale that bypassed the contracted agent
type PotentialBreach struct {
	ID                      uuid.UUID       `json:"id"`
	AgentID                 string          `json:"agentId"`
	ClientID                string          `json:"clientId"`
	ContractID              uuid.UUID       `json:"contractId"`
	PropertyID              string          `json:"propertyId,omitempty"`
	PropertyAddress         string          `json:"propertyAddress"`
	BreachType              Type            `json:"breachType"`
	DetectionMethod         DetectionMethod `json:"detectionMethod"`
	DetectionDate           time.Time       `json:"detectionDate"`
	BreachDate              *time.Time      `json:"breachDate,omitempty"`
	Evidence                EvidenceList    `json:"evidenceData"`
	RiskLevel               RiskLevel       `json:"riskLevel"`
	EstimatedCommissionLoss values.Money    `json:"estimatedCommissionLoss"`
	AutoDetectionScore      int             `json:"autoDetectionScore"`
	Status                  Status          `json:"status"`
	AdminReviewerID         *string         `json:"adminReviewerId,omitempty"`
	AdminNotes              string          `json:"adminNotes,omitempty"`
	ConfirmationDate        *time.Time      `json:"confirmationDate,omitempty"`
	AgentNotifiedDate       *time.Time      `json:"agentNotifiedDate,omitempty"`
	ResolutionDate          *time.Time      `json:"resolutionDate,omitempty"`
	ResolutionOutcome       string          `json:"resolutionOutcome,omitempty"`
	RequiresLegalAction     bool            `json:"requiresLegalAction"`
	Description             string          `json:"description"`
	CreatedAt               time.Time       `json:"createdAt"`
	UpdatedAt               time.Time       `json:"updatedAt"`
}

// Type of breach
type Type string

const (
	TypeUnauthorizedPurchase Type = "unauthorized_purchase"
	TypeContractViolation    Type = "contract_violation"
	TypeOther                Type = "other"
)

// TypeForParty maps the matched side of the sale to a breach type
func TypeForParty(p records.Party) Type {
	switch p {
	case records.PartyBuyer:
		return TypeUnauthorizedPurchase
	case records.PartySeller:
		return TypeContractViolation
	default:
		return TypeOther
	}
}

// DetectionMethod records how the breach was found
type DetectionMethod string

const (
	DetectionPublicRecords DetectionMethod = "public_records"
	DetectionClientReport  DetectionMethod = "client_report"
	DetectionGPSTracking   DetectionMethod = "gps_tracking"
	DetectionManual        DetectionMethod = "manual"
)

// RiskLevel is the coarse severity used for prioritization
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

func (r RiskLevel) IsValid() bool {
	return r == RiskLow || r == RiskMedium || r == RiskHigh
}

// Status is the review state of a breach
type Status string

const (
	StatusPending       Status = "pending"
	StatusInvestigating Status = "investigating"
	StatusConfirmed     Status = "confirmed"
	StatusDismissed     Status = "dismissed"
)

func (s Status) String() string {
	return string(s)
}

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInvestigating, StatusConfirmed, StatusDismissed:
		return true
	}
	return false
}

// IsTerminal is true for confirmed and dismissed
func (s Status) IsTerminal() bool {
	return s == StatusConfirmed || s == StatusDismissed
}

// CanTransitionTo is the single transition table for the review workflow
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusInvestigating || next == StatusConfirmed || next == StatusDismissed
	case StatusInvestigating:
		return next == StatusConfirmed || next == StatusDismissed
	default:
		return false
	}
}

// ParseStatus validates a status query value
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", errors.NewValidationError("INVALID_STATUS", fmt.Sprintf("unknown breach status %q", s))
	}
	return st, nil
}

// ParseRiskLevel validates a risk query value
func ParseRiskLevel(s string) (RiskLevel, error) {
	r := RiskLevel(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", errors.NewValidationError("INVALID_RISK_LEVEL", fmt.Sprintf("unknown risk level %q", s))
	}
	return r, nil
}

// NewFromCandidate materializes a pending public-records breach
func NewFromCandidate(contractID uuid.UUID, agentID, clientID, clientName string, cand Candidate,
	evidence EvidenceList, now time.Time) (*PotentialBreach, error) {
	if contractID == uuid.Nil {
		return nil, errors.NewValidationError("INVALID_CONTRACT", "contract ID is required")
	}
	if cand.EstimatedLoss.IsNegative() {
		return nil, errors.NewValidationError("INVALID_LOSS", "estimated commission loss cannot be negative")
	}
	if err := evidence.Validate(); err != nil {
		return nil, err
	}

	saleDate := values.Day(cand.Record.SaleDate)
	return &PotentialBreach{
		ID:                      uuid.New(),
		AgentID:                 agentID,
		ClientID:                clientID,
		ContractID:              contractID,
		PropertyAddress:         cand.Record.PropertyAddress,
		BreachType:              cand.Type,
		DetectionMethod:         DetectionPublicRecords,
		DetectionDate:           now,
		BreachDate:              &saleDate,
		Evidence:                evidence,
		RiskLevel:               cand.RiskLevel,
		EstimatedCommissionLoss: cand.EstimatedLoss,
		AutoDetectionScore:      cand.Score,
		Status:                  StatusPending,
		Description:             describe(clientName, cand),
		CreatedAt:               now,
		UpdatedAt:               now,
	}, nil
}

func describe(clientName string, cand Candidate) string {
	side := "purchased"
	if cand.Record.MatchedParty == records.PartySeller {
		side = "sold"
	}
	return fmt.Sprintf("%s %s %s on %s through agent %s during the representation period",
		clientName, side, cand.Record.PropertyAddress,
		cand.Record.SaleDate.Format(values.DateLayout), cand.Record.BuyerAgent)
}

// BelongsTo reports agent ownership
func (b *PotentialBreach) BelongsTo(agentID string) bool {
	return b.AgentID == agentID
}

func (b *PotentialBreach) transition(next Status, action string) error {
	if !b.Status.CanTransitionTo(next) {
		return errors.NewInvalidStateTransitionError("breach", b.Status.String(), action)
	}
	b.Status = next
	return nil
}

// StartInvestigation moves a pending breach under review
func (b *PotentialBreach) StartInvestigation(reviewerID string, now time.Time) error {
	if err := b.transition(StatusInvestigating, "investigate"); err != nil {
		return err
	}
	b.AdminReviewerID = &reviewerID
	b.UpdatedAt = now
	return nil
}

// Confirm marks the breach as real
func (b *PotentialBreach) Confirm(reviewerID, notes string, requiresLegalAction bool, now time.Time) error {
	if err := b.transition(StatusConfirmed, "confirm"); err != nil {
		return err
	}
	b.AdminReviewerID = &reviewerID
	b.AdminNotes = notes
	b.RequiresLegalAction = requiresLegalAction
	b.ConfirmationDate = &now
	b.UpdatedAt = now
	return nil
}

// Dismiss closes the breach as a false positive
func (b *PotentialBreach) Dismiss(reviewerID, notes string, now time.Time) error {
	if err := b.transition(StatusDismissed, "dismiss"); err != nil {
		return err
	}
	b.AdminReviewerID = &reviewerID
	b.AdminNotes = notes
	b.ResolutionDate = &now
	b.ResolutionOutcome = "dismissed"
	b.UpdatedAt = now
	return nil
}

// DedupKey identifies the underlying sale for idempotent creation
type DedupKey struct {
	ContractID uuid.UUID
	Address    string
	SaleDate   string
}

func (k DedupKey) String() string {
	return k.ContractID.String() + "|" + k.Address + "|" + k.SaleDate
}

// NewDedupKey normalizes the address and truncates the date to a day
func NewDedupKey(contractID uuid.UUID, address string, saleDate time.Time) DedupKey {
	return DedupKey{
		ContractID: contractID,
		Address:    records.NormalizeAddress(address),
		SaleDate:   values.Day(saleDate).Format(values.DateLayout),
	}
}

// Key returns the dedup key; false when the breach has no sale date
func (b *PotentialBreach) Key() (DedupKey, bool) {
	if b.BreachDate == nil {
		return DedupKey{}, false
	}
	return NewDedupKey(b.ContractID, b.PropertyAddress, *b.BreachDate), true
}
