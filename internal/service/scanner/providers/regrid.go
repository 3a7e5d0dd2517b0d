package providers

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"github.com/davidleathers/commission-protection-backend/internal/domain/records"
	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/config"
)

const RegridName = "regrid"

// Regrid searches parcel ownership. It reports the current owner and last
// sale only, so agents are never populated.
type Regrid struct {
	baseClient
}

type regridResponse struct {
	Parcels struct {
		Features []regridFeature `json:"features"`
	} `json:"parcels"`
}

type regridFeature struct {
	Properties struct {
		Fields regridFields `json:"fields"`
	} `json:"properties"`
}

type regridFields struct {
	ParcelNumber string  `json:"parcelnumb"`
	Address      string  `json:"address"`
	City         string  `json:"scity"`
	County       string  `json:"county"`
	Owner        string  `json:"owner"`
	PrevOwner    string  `json:"prevowner"`
	SaleDate     string  `json:"saledate"`
	SalePrice    float64 `json:"saleprice"`
}

func NewRegrid(cfg config.ProviderConfig, logger *zap.Logger) *Regrid {
	return &Regrid{baseClient: newBaseClient(RegridName, TierSecondary, cfg, logger)}
}

func (r *Regrid) SearchSales(ctx context.Context, q SearchQuery) ([]records.SaleRecord, error) {
	params := url.Values{}
	params.Set("token", r.config.APIKey)
	params.Set("owner", q.PartyName)
	params.Set("limit", "100")

	req, err := r.newRequest(ctx, "/parcels/owner?"+params.Encode())
	if err != nil {
		return nil, err
	}

	var payload regridResponse
	if err := r.getJSON(ctx, req, &payload); err != nil {
		return nil, err
	}

	var out []records.SaleRecord
	for _, f := range payload.Parcels.Features {
		p := f.Properties.Fields
		saleDate, ok := parseVendorDate(p.SaleDate)
		if !ok || !inWindow(saleDate, q.Start, q.End) {
			continue
		}
		address := p.Address
		if p.City != "" {
			address += ", " + p.City
		}
		out = append(out, records.SaleRecord{
			Source:          RegridName,
			County:          p.County,
			PropertyAddress: address,
			BuyerName:       p.Owner,
			SellerName:      p.PrevOwner,
			SaleDate:        saleDate,
			SalePrice:       priceFromFloat(p.SalePrice),
			DocumentNumber:  p.ParcelNumber,
		})
	}
	return out, nil
}
