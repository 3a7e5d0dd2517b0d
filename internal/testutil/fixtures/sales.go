package fixtures

import (
	"time"

	"github.com/davidleathers/commission-protection-backend/internal/domain/records"
	"github.com/davidleathers/commission-protection-backend/internal/domain/values"
)

// SaleRecordBuilder builds normalized sale records
type SaleRecordBuilder struct {
	rec records.SaleRecord
}

// NewSaleRecordBuilder defaults to Jane Doe buying 123 Main St on 2024-03-15
// for $500,000 through another agent
func NewSaleRecordBuilder() *SaleRecordBuilder {
	return &SaleRecordBuilder{rec: records.SaleRecord{
		Source:                  "county_recorder",
		County:                  "Travis",
		PropertyAddress:         "123 Main St",
		BuyerName:               "Jane Doe",
		SellerName:              "John Smith",
		BuyerAgent:              "Other Agent",
		ListingAgent:            "Listing Agent",
		SaleDate:                time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		SalePrice:               values.NewMoneyFromInt(500000),
		EstimatedLostCommission: values.NewMoneyFromInt(15000),
		MatchedParty:            records.PartyBuyer,
	}}
}

func (b *SaleRecordBuilder) WithAddress(address string) *SaleRecordBuilder {
	b.rec.PropertyAddress = address
	return b
}

func (b *SaleRecordBuilder) WithSaleDate(d time.Time) *SaleRecordBuilder {
	b.rec.SaleDate = d
	return b
}

func (b *SaleRecordBuilder) WithBuyerAgent(agent string) *SaleRecordBuilder {
	b.rec.BuyerAgent = agent
	return b
}

// WithPrice sets the price and the 3% estimated loss
func (b *SaleRecordBuilder) WithPrice(price values.Money) *SaleRecordBuilder {
	b.rec.SalePrice = price
	b.rec.EstimatedLostCommission = values.MustNewCommissionRate(values.DefaultCommissionRate).Estimate(price)
	return b
}

// AsSeller swaps the parties so the client is the seller
func (b *SaleRecordBuilder) AsSeller() *SaleRecordBuilder {
	b.rec.BuyerName, b.rec.SellerName = b.rec.SellerName, b.rec.BuyerName
	b.rec.MatchedParty = records.PartySeller
	return b
}

func (b *SaleRecordBuilder) Build() records.SaleRecord {
	return b.rec
}
