package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/davidleathers/commission-protection-backend/internal/domain/records"
	"github.com/davidleathers/commission-protection-backend/internal/infrastructure/config"
)

const AttomName = "attom"

// Attom queries the ATTOM sales history snapshot. Buyer and seller searches
// are separate calls; both are merged, and one side failing still returns
// the other side's records.
type Attom struct {
	baseClient
}

type attomResponse struct {
	Status   attomStatus     `json:"status"`
	Property []attomProperty `json:"property"`
}

type attomStatus struct {
	Code  int    `json:"code"`
	Msg   string `json:"msg"`
	Total int    `json:"total"`
}

type attomProperty struct {
	Identifier struct {
		AttomID int64 `json:"attomId"`
	} `json:"identifier"`
	Address struct {
		OneLine string `json:"oneLine"`
	} `json:"address"`
	Area struct {
		CountrySecSubd string `json:"countrysecsubd"`
	} `json:"area"`
	Sale struct {
		SaleTransDate string `json:"saleTransDate"`
		SaleRecDate   string `json:"saleRecDate"`
		BuyerName     string `json:"buyerName"`
		SellerName    string `json:"sellerName"`
		Amount        struct {
			SaleAmt    float64 `json:"saleamt"`
			SaleDocNum string  `json:"saledocnum"`
		} `json:"amount"`
	} `json:"sale"`
	Agent struct {
		BuyerAgentName   string `json:"buyerAgentName"`
		ListingAgentName string `json:"listingAgentName"`
	} `json:"agent"`
}

// attom status codes for an empty but valid result
const attomSuccessWithoutResult = 1

func NewAttom(cfg config.ProviderConfig, logger *zap.Logger) *Attom {
	return &Attom{baseClient: newBaseClient(AttomName, TierOfficial, cfg, logger)}
}

func (a *Attom) SearchSales(ctx context.Context, q SearchQuery) ([]records.SaleRecord, error) {
	var (
		out      []records.SaleRecord
		answered int
		failed   error
		side     string
	)
	for _, field := range []string{"buyerName", "sellerName"} {
		recs, err := a.search(ctx, field, q)
		if err != nil {
			a.logger.Warn("attom search failed",
				zap.String("field", field),
				zap.String("code", Code(err)),
				zap.Error(err))
			if failed == nil {
				failed, side = err, field
			}
			continue
		}
		answered++
		out = append(out, recs...)
	}

	switch {
	case failed == nil:
		return out, nil
	case answered == 0:
		return nil, failed
	default:
		return out, partialError(a.name, side, failed)
	}
}

func (a *Attom) search(ctx context.Context, field string, q SearchQuery) ([]records.SaleRecord, error) {
	params := url.Values{}
	params.Set(field, q.PartyName)
	params.Set("startSaleSearchDate", q.Start.Format("2006/01/02"))
	params.Set("endSaleSearchDate", q.End.Format("2006/01/02"))

	req, err := a.newRequest(ctx, "/saleshistory/snapshot?"+params.Encode())
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", a.config.APIKey)

	var payload attomResponse
	if err := a.getJSON(ctx, req, &payload); err != nil {
		return nil, err
	}
	if payload.Status.Code != 0 && payload.Status.Code != attomSuccessWithoutResult {
		return nil, newError(a.name, ErrCodeInvalidResponse,
			fmt.Sprintf("status %d: %s", payload.Status.Code, payload.Status.Msg), false)
	}

	out := make([]records.SaleRecord, 0, len(payload.Property))
	for _, p := range payload.Property {
		saleDate, ok := parseVendorDate(p.Sale.SaleTransDate)
		if !ok {
			continue
		}
		out = append(out, records.SaleRecord{
			Source:          AttomName,
			County:          strings.TrimSuffix(p.Area.CountrySecSubd, " County"),
			PropertyAddress: p.Address.OneLine,
			BuyerName:       p.Sale.BuyerName,
			SellerName:      p.Sale.SellerName,
			BuyerAgent:      p.Agent.BuyerAgentName,
			ListingAgent:    p.Agent.ListingAgentName,
			SaleDate:        saleDate,
			RecordingDate:   optionalDate(p.Sale.SaleRecDate),
			SalePrice:       priceFromFloat(p.Sale.Amount.SaleAmt),
			DocumentNumber:  p.Sale.Amount.SaleDocNum,
		})
	}
	return out, nil
}
