// Package notification delivers confirmed-breach notices to agents over a
// webhook relay and live websocket sessions.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/commission-protection-backend/internal/domain/breach"
	"github.com/davidleathers/commission-protection-backend/internal/domain/values"
)

// ErrNoRecipient is returned when a notifier has nowhere to deliver
var ErrNoRecipient = errors.New("no recipient for notification")

// Notifier delivers one notice
type Notifier interface {
	NotifyBreachConfirmed(ctx context.Context, notice BreachNotice) error
}

// BreachNotice is the payload agents receive when a breach is confirmed
type BreachNotice struct {
	BreachID                uuid.UUID    `json:"breachId"`
	AgentID                 string       `json:"agentId"`
	ClientID                string       `json:"clientId"`
	PropertyAddress         string       `json:"propertyAddress"`
	BreachType              string       `json:"breachType"`
	RiskLevel               string       `json:"riskLevel"`
	EstimatedCommissionLoss values.Money `json:"estimatedCommissionLoss"`
	RequiresLegalAction     bool         `json:"requiresLegalAction"`
	AdminNotes              string       `json:"adminNotes,omitempty"`
	ConfirmedAt             *time.Time   `json:"confirmedAt,omitempty"`
	Description             string       `json:"description"`
}

// NoticeFor builds the notice for a confirmed breach
func NoticeFor(b *breach.PotentialBreach) BreachNotice {
	return BreachNotice{
		BreachID:                b.ID,
		AgentID:                 b.AgentID,
		ClientID:                b.ClientID,
		PropertyAddress:         b.PropertyAddress,
		BreachType:              string(b.BreachType),
		RiskLevel:               string(b.RiskLevel),
		EstimatedCommissionLoss: b.EstimatedCommissionLoss,
		RequiresLegalAction:     b.RequiresLegalAction,
		AdminNotes:              b.AdminNotes,
		ConfirmedAt:             b.ConfirmationDate,
		Description:             b.Description,
	}
}

// Multi fans a notice out and succeeds when any notifier succeeds
type Multi []Notifier

func (m Multi) NotifyBreachConfirmed(ctx context.Context, notice BreachNotice) error {
	if len(m) == 0 {
		return ErrNoRecipient
	}
	var errs []error
	delivered := false
	for _, n := range m {
		if err := n.NotifyBreachConfirmed(ctx, notice); err != nil {
			errs = append(errs, err)
			continue
		}
		delivered = true
	}
	if delivered {
		return nil
	}
	return fmt.Errorf("all notifiers failed: %w", errors.Join(errs...))
}
