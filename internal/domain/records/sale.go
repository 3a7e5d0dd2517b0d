// Package records holds the provider-agnostic shape of a public property sale.
package records

import (
	"strings"
	"time"

	"github.com/davidleathers/commission-protection-backend/internal/domain/values"
)

// Party identifies which side of a sale matched the client
type Party string

const (
	PartyBuyer  Party = "buyer"
	PartySeller Party = "seller"
)

// SaleRecord is one normalized deed or sale transaction. It only lives for
// the duration of a scan.
type SaleRecord struct {
	Source                  string       `json:"source"`
	County                  string       `json:"county,omitempty"`
	PropertyAddress         string       `json:"propertyAddress"`
	BuyerName               string       `json:"buyerName"`
	SellerName              string       `json:"sellerName"`
	BuyerAgent              string       `json:"buyerAgent"`
	ListingAgent            string       `json:"listingAgent"`
	SaleDate                time.Time    `json:"saleDate"`
	RecordingDate           *time.Time   `json:"recordingDate,omitempty"`
	SalePrice               values.Money `json:"salePrice"`
	DocumentNumber          string       `json:"documentNumber,omitempty"`
	EstimatedLostCommission values.Money `json:"estimatedLostCommission"`
	MatchedParty            Party        `json:"matchedParty"`
}

// NormalizeName lowercases and collapses runs of whitespace
func NormalizeName(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// NormalizeAddress is the form used in dedup keys
func NormalizeAddress(s string) string {
	return NormalizeName(s)
}

// MatchParty reports which party exactly matches the client name. The
// buyer side wins when both match.
func (r SaleRecord) MatchParty(clientName string) (Party, bool) {
	want := NormalizeName(clientName)
	if want == "" {
		return "", false
	}
	if NormalizeName(r.BuyerName) == want {
		return PartyBuyer, true
	}
	if NormalizeName(r.SellerName) == want {
		return PartySeller, true
	}
	return "", false
}

// HasBuyerAgent is false for blank or "unknown" agents
func (r SaleRecord) HasBuyerAgent() bool {
	return IsKnownAgent(r.BuyerAgent)
}

// IsKnownAgent is false for placeholder values providers emit for missing data
func IsKnownAgent(agent string) bool {
	switch NormalizeName(agent) {
	case "", "unknown", "n/a", "none":
		return false
	}
	return true
}
