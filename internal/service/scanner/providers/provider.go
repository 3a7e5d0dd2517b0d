// Package providers wraps the public-records vendors behind one search call.
// Adapters are the only code aware of vendor field names.
package providers

import (
	"context"
	"time"

	"github.com/davidleathers/commission-protection-backend/internal/domain/records"
)

// Tier orders providers. Official sources are preferred; secondary sources
// are only used when no official source is configured.
type Tier string

const (
	TierOfficial  Tier = "official"
	TierSecondary Tier = "secondary"
)

// SearchQuery asks for sales where the party name appears on either side
// within [Start, End]
type SearchQuery struct {
	PartyName string
	Start     time.Time
	End       time.Time
}

// Provider is one public-records vendor. SearchSales returns records with
// vendor fields mapped; client matching and commission are left to the scanner.
// A vendor that needs several calls returns what it got with an error for
// which IsPartial is true when only some of them failed.
type Provider interface {
	Name() string
	Tier() Tier
	// Configured is false when credentials are missing
	Configured() bool
	SearchSales(ctx context.Context, q SearchQuery) ([]records.SaleRecord, error)
}
