package providers

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/davidleathers/commission-protection-backend/internal/domain/records"
	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/config"
)

const RentcastName = "rentcast"

// Rentcast looks up property records by owner name and reports the last sale
type Rentcast struct {
	baseClient
}

type rentcastProperty struct {
	ID               string  `json:"id"`
	FormattedAddress string  `json:"formattedAddress"`
	County           string  `json:"county"`
	LastSaleDate     string  `json:"lastSaleDate"`
	LastSalePrice    float64 `json:"lastSalePrice"`
	Owner            struct {
		Names []string `json:"names"`
	} `json:"owner"`
}

func NewRentcast(cfg config.ProviderConfig, logger *zap.Logger) *Rentcast {
	return &Rentcast{baseClient: newBaseClient(RentcastName, TierSecondary, cfg, logger)}
}

func (r *Rentcast) SearchSales(ctx context.Context, q SearchQuery) ([]records.SaleRecord, error) {
	params := url.Values{}
	params.Set("ownerName", q.PartyName)
	params.Set("limit", "100")

	req, err := r.newRequest(ctx, "/properties?"+params.Encode())
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Api-Key", r.config.APIKey)

	var payload []rentcastProperty
	if err := r.getJSON(ctx, req, &payload); err != nil {
		return nil, err
	}

	var out []records.SaleRecord
	for _, p := range payload {
		saleDate, ok := parseVendorDate(p.LastSaleDate)
		if !ok || !inWindow(saleDate, q.Start, q.End) {
			continue
		}
		out = append(out, records.SaleRecord{
			Source:          RentcastName,
			County:          p.County,
			PropertyAddress: p.FormattedAddress,
			BuyerName:       ownerFor(p.Owner.Names, q.PartyName),
			SaleDate:        saleDate,
			SalePrice:       priceFromFloat(p.LastSalePrice),
			DocumentNumber:  p.ID,
		})
	}
	return out, nil
}

// ownerFor picks the co-owner matching the searched party so the scanner's
// exact name match sees that owner alone
func ownerFor(names []string, party string) string {
	want := records.NormalizeName(party)
	for _, n := range names {
		if records.NormalizeName(n) == want {
			return n
		}
	}
	return strings.Join(names, " & ")
}
