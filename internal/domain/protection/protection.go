package protection

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/commission-protection-backend/internal/domain/errors"
	"github.com/davidleathers/commission-protection-backend/internal/domain/values"
)

// CommissionProtection is positive evidence that a client relationship is documented
type CommissionProtection struct {
	ID              uuid.UUID    `json:"id"`
	AgentID         string       `json:"agentId"`
	ClientID        string       `json:"clientId"`
	PropertyAddress string       `json:"propertyAddress"`
	ProtectionType  Type         `json:"protectionType"`
	EvidenceType    string       `json:"evidenceType"`
	Status          Status       `json:"status"`
	ProtectedAmount values.Money `json:"protectedAmount"`
	ExpirationDate  time.Time    `json:"expirationDate"`
	CreatedAt       time.Time    `json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`
}

// Type is what kind of evidence backs the protection
type Type string

const (
	TypeShowing         Type = "showing"
	TypeSignedAgreement Type = "signed_agreement"
	TypeGPSLog          Type = "gps_log"
	TypeCommunication   Type = "communication"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeShowing, TypeSignedAgreement, TypeGPSLog, TypeCommunication:
		return true
	}
	return false
}

// Status of a protection record
type Status string

const (
	StatusActive  Status = "active"
	StatusExpired Status = "expired"
	StatusRevoked Status = "revoked"
)

// NewCommissionProtection validates and creates an active protection
func NewCommissionProtection(agentID, clientID, address string, typ Type, evidenceType string,
	amount values.Money, expires, now time.Time) (*CommissionProtection, error) {
	if strings.TrimSpace(agentID) == "" {
		return nil, errors.NewValidationError("INVALID_AGENT", "agent ID is required")
	}
	if strings.TrimSpace(clientID) == "" {
		return nil, errors.NewValidationError("INVALID_CLIENT", "client ID is required")
	}
	if !typ.IsValid() {
		return nil, errors.NewValidationError("INVALID_PROTECTION_TYPE", "unknown protection type")
	}
	if amount.IsNegative() {
		return nil, errors.NewValidationError("INVALID_AMOUNT", "protected amount cannot be negative")
	}
	if !expires.After(now) {
		return nil, errors.NewValidationError("INVALID_EXPIRATION", "expiration date must be in the future")
	}
	if evidenceType == "" {
		evidenceType = string(typ)
	}
	return &CommissionProtection{
		ID:              uuid.New(),
		AgentID:         agentID,
		ClientID:        clientID,
		PropertyAddress: strings.TrimSpace(address),
		ProtectionType:  typ,
		EvidenceType:    evidenceType,
		Status:          StatusActive,
		ProtectedAmount: amount,
		ExpirationDate:  expires,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// IsActive is true while the record is active and unexpired at now
func (p *CommissionProtection) IsActive(now time.Time) bool {
	return p.Status == StatusActive && now.Before(p.ExpirationDate)
}

// Revoke withdraws the protection
func (p *CommissionProtection) Revoke(now time.Time) error {
	if p.Status != StatusActive {
		return errors.NewInvalidStateTransitionError("protection", string(p.Status), "revoke")
	}
	p.Status = StatusRevoked
	p.UpdatedAt = now
	return nil
}

// TotalActive sums ProtectedAmount over records active at now
func TotalActive(items []*CommissionProtection, now time.Time) values.Money {
	total := values.Zero()
	for _, p := range items {
		if p.IsActive(now) {
			total = total.Add(p.ProtectedAmount)
		}
	}
	return total
}

// Repository defines the interface for protection persistence
type Repository interface {
	Create(ctx context.Context, p *CommissionProtection) error
	ListByAgent(ctx context.Context, agentID string) ([]*CommissionProtection, error)
}
