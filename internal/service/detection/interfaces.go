// Package detection turns normalized sale records into persisted potential
// breaches and maintains showing-derived evidence.
package detection

import (
	"context"
	"time"

	"github.com/davidleathers/commission-protection-backend/internal/domain/breach"
	"github.com/davidleathers/commission-protection-backend/internal/domain/contract"
	"github.com/davidleathers/commission-protection-backend/internal/domain/records"
)

// Service defines the breach detection interface
type Service interface {
	// Classify is pure: no I/O, no clock
	Classify(c *contract.Contract, identity breach.AgentIdentity, recs []records.SaleRecord, now time.Time) []breach.Candidate

	// Detect classifies, deduplicates and persists new breaches with alerts
	Detect(ctx context.Context, c *contract.Contract, identity breach.AgentIdentity, recs []records.SaleRecord) (*Result, error)

	// ReconcileOverdueShowings marks overdue scheduled showings as no-shows.
	// An empty agentID reconciles every agent. Returns the number transitioned.
	ReconcileOverdueShowings(ctx context.Context, agentID string) (int, error)
}

// Result of one Detect call
type Result struct {
	Candidates []breach.Candidate        `json:"candidates"`
	Created    []*breach.PotentialBreach `json:"created"`
	Duplicates int                       `json:"duplicates"`
}
