// Package monitoring orchestrates a public-records scan for an agent's
// client through detection and persistence.
package monitoring

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/davidleathers/commission-protection-backend/internal/domain/breach"
	"github.com/davidleathers/commission-protection-backend/internal/domain/values"
	"github.com/davidleathers/commission-protection-backend/internal/service/scanner"
)

// Service defines the monitoring interface
type Service interface {
	// MonitorPublicRecords scans for the client and persists breaches when a
	// contract can be resolved
	MonitorPublicRecords(ctx context.Context, agent breach.AgentIdentity, req MonitorRequest) (*MonitorResult, error)

	// RescanActiveContracts re-runs detection for every active contract
	RescanActiveContracts(ctx context.Context) (*RescanSummary, error)
}

// MonitorRequest is the scan input. Providers are queried over the requested
// window; a resolved contract is only checked on the days both windows share.
type MonitorRequest struct {
	ClientName        string
	ContractStartDate time.Time
	ContractEndDate   time.Time
	ContractID        *uuid.UUID
}

// MonitorResult is returned to the agent. EstimatedLostCommission sums
// BreachRecords.
type MonitorResult struct {
	TotalRecordsFound       int                      `json:"totalRecordsFound"`
	BreachesDetected        int                      `json:"breachesDetected"`
	NewBreaches             int                      `json:"newBreaches"`
	BreachRecords           []breach.Candidate       `json:"breachRecords"`
	EstimatedLostCommission values.Money             `json:"estimatedLostCommission"`
	DataSource              string                   `json:"dataSource"`
	Persisted               bool                     `json:"persisted"`
	ContractID              *uuid.UUID               `json:"contractId,omitempty"`
	Providers               []scanner.ProviderReport `json:"providers"`
	Errors                  []string                 `json:"errors"`
	Monitoring              scanner.Monitoring       `json:"monitoring"`
}

// RescanSummary reports one scheduled rescan pass
type RescanSummary struct {
	Contracts   int `json:"contracts"`
	Scanned     int `json:"scanned"`
	Failed      int `json:"failed"`
	NewBreaches int `json:"newBreaches"`
}
