package providers

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"github.com/davidleathers/commission-protection-backend/internal/domain/records"
	"github.com/davidleathers/commission-protection-backend/internal/domain/values"
	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/config"
)

const CountyRecorderName = "county_recorder"

// CountyRecorder queries a county deed index (grantor/grantee search)
type CountyRecorder struct {
	baseClient
}

// countyDeedResponse is the deed search payload
type countyDeedResponse struct {
	Records []countyDeed `json:"records"`
}

type countyDeed struct {
	DocumentNumber  string `json:"documentNumber"`
	County          string `json:"county"`
	PropertyAddress string `json:"propertyAddress"`
	Grantee         string `json:"grantee"`
	Grantor         string `json:"grantor"`
	GranteeAgent    string `json:"granteeAgent"`
	GrantorAgent    string `json:"grantorAgent"`
	SaleDate        string `json:"saleDate"`
	RecordingDate   string `json:"recordingDate"`
	Consideration   string `json:"consideration"`
}

func NewCountyRecorder(cfg config.ProviderConfig, logger *zap.Logger) *CountyRecorder {
	return &CountyRecorder{baseClient: newBaseClient(CountyRecorderName, TierOfficial, cfg, logger)}
}

func (c *CountyRecorder) SearchSales(ctx context.Context, q SearchQuery) ([]records.SaleRecord, error) {
	params := url.Values{}
	params.Set("party", q.PartyName)
	params.Set("from", q.Start.Format(values.DateLayout))
	params.Set("to", q.End.Format(values.DateLayout))
	params.Set("instrument", "deed")

	req, err := c.newRequest(ctx, "/deeds/search?"+params.Encode())
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	var payload countyDeedResponse
	if err := c.getJSON(ctx, req, &payload); err != nil {
		return nil, err
	}

	out := make([]records.SaleRecord, 0, len(payload.Records))
	for _, d := range payload.Records {
		saleDate, ok := parseVendorDate(d.SaleDate)
		if !ok {
			// a deed without a sale date cannot be placed in a window
			c.logger.Debug("skipping deed without sale date", zap.String("document", d.DocumentNumber))
			continue
		}
		out = append(out, records.SaleRecord{
			Source:          CountyRecorderName,
			County:          d.County,
			PropertyAddress: d.PropertyAddress,
			BuyerName:       d.Grantee,
			SellerName:      d.Grantor,
			BuyerAgent:      d.GranteeAgent,
			ListingAgent:    d.GrantorAgent,
			SaleDate:        saleDate,
			RecordingDate:   optionalDate(d.RecordingDate),
			SalePrice:       parsePrice(d.Consideration),
			DocumentNumber:  d.DocumentNumber,
		})
	}
	return out, nil
}
