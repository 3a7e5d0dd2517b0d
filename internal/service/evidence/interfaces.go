package evidence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/davidleathers/commission-protection-backend/internal/domain/alert"
	"github.com/davidleathers/commission-protection-backend/internal/domain/contract"
	"github.com/davidleathers/commission-protection-backend/internal/domain/protection"
	"github.com/davidleathers/commission-protection-backend/internal/domain/showing"
	"github.com/davidleathers/commission-protection-backend/internal/domain/values"
)

// Service records and lists the agent-owned evidence that backs detection.
// Every call is scoped to one agent.
type Service interface {
	CreateContract(ctx context.Context, agentID string, req CreateContractRequest) (*contract.Contract, error)
	ListContracts(ctx context.Context, agentID string) ([]*contract.Contract, error)
	GetContract(ctx context.Context, agentID string, id uuid.UUID) (*contract.Contract, error)
	TerminateContract(ctx context.Context, agentID string, id uuid.UUID) (*contract.Contract, error)

	CreateShowing(ctx context.Context, agentID string, req CreateShowingRequest) (*showing.Showing, error)
	// ListShowings reconciles overdue showings before listing
	ListShowings(ctx context.Context, agentID string) ([]*showing.Showing, error)
	// CheckInShowing and CancelShowing only move a showing out of scheduled
	CheckInShowing(ctx context.Context, agentID string, id uuid.UUID) (*showing.Showing, error)
	CancelShowing(ctx context.Context, agentID string, id uuid.UUID) (*showing.Showing, error)
	ListVisits(ctx context.Context, agentID string) ([]*showing.PropertyVisit, error)

	CreateProtection(ctx context.Context, agentID string, req CreateProtectionRequest) (*protection.CommissionProtection, error)
	ListProtections(ctx context.Context, agentID string) ([]*protection.CommissionProtection, error)

	ListAlerts(ctx context.Context, agentID string, unreadOnly bool) ([]*alert.Alert, error)
	MarkAlertRead(ctx context.Context, agentID string, id uuid.UUID) error
}

// Reconciler turns overdue scheduled showings into no-shows
type Reconciler interface {
	ReconcileOverdueShowings(ctx context.Context, agentID string) (int, error)
}

// CreateContractRequest is the body of POST /contracts
type CreateContractRequest struct {
	ClientID           string           `json:"clientId,omitempty"`
	ClientName         string           `json:"clientName" validate:"required"`
	PropertyAddress    string           `json:"propertyAddress,omitempty"`
	RepresentationType string           `json:"representationType" validate:"required,oneof=buyer seller"`
	StartDate          time.Time        `json:"startDate" validate:"required"`
	EndDate            time.Time        `json:"endDate" validate:"required"`
	CommissionRate     *decimal.Decimal `json:"commissionRate,omitempty"`

	// Filled from the caller's token, never from the body
	AgentDisplayName string `json:"-"`
	AgentLicense     string `json:"-"`
}

// CreateShowingRequest is the body of POST /showings
type CreateShowingRequest struct {
	ClientID        string    `json:"clientId" validate:"required"`
	PropertyAddress string    `json:"propertyAddress" validate:"required"`
	ScheduledDate   time.Time `json:"scheduledDate" validate:"required"`
}

// CreateProtectionRequest is the body of POST /protections
type CreateProtectionRequest struct {
	ClientID        string       `json:"clientId" validate:"required"`
	PropertyAddress string       `json:"propertyAddress"`
	ProtectionType  string       `json:"protectionType" validate:"required,oneof=showing signed_agreement gps_log communication"`
	EvidenceType    string       `json:"evidenceType,omitempty"`
	ProtectedAmount values.Money `json:"protectedAmount"`
	ExpirationDate  time.Time    `json:"expirationDate" validate:"required"`
}
