package contract

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for contract persistence
type Repository interface {
	Create(ctx context.Context, c *Contract) error

	GetByID(ctx context.Context, id uuid.UUID) (*Contract, error)

	// UpdateWithStatusCheck persists the status of c only if the stored
	// status is still expected
	UpdateWithStatusCheck(ctx context.Context, c *Contract, expected Status) (bool, error)

	// ListByAgent returns every contract owned by the agent, newest first
	ListByAgent(ctx context.Context, agentID string) ([]*Contract, error)

	// ListActive returns active contracts across all agents
	ListActive(ctx context.Context) ([]*Contract, error)

	// FindActiveForClient returns the most recent active contract for a client name
	FindActiveForClient(ctx context.Context, agentID, clientName string) (*Contract, error)

	// ExpireOverdue flips active contracts whose end day is before now
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)
}
