package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repositories holds all repository instances over one pool
type Repositories struct {
	Contracts   *ContractRepository
	Breaches    *BreachRepository
	Showings    *ShowingRepository
	Visits      *VisitRepository
	Protections *ProtectionRepository
	Alerts      *AlertRepository
}

// NewRepositories creates a new repository collection
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Contracts:   NewContractRepository(pool),
		Breaches:    NewBreachRepository(pool),
		Showings:    NewShowingRepository(pool),
		Visits:      NewVisitRepository(pool),
		Protections: NewProtectionRepository(pool),
		Alerts:      NewAlertRepository(pool),
	}
}
