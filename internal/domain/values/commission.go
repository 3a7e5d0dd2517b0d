package values

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultCommissionRate is the buyer-side commission assumed when estimating
// lost commission on a sale.
const DefaultCommissionRate = 0.03

// CommissionRate is a fraction of the sale price, strictly between 0 and 1
type CommissionRate struct {
	rate decimal.Decimal
}

// NewCommissionRate validates and wraps a commission fraction
func NewCommissionRate(rate float64) (CommissionRate, error) {
	d := decimal.NewFromFloat(rate)
	if !d.IsPositive() || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return CommissionRate{}, fmt.Errorf("commission rate must be in (0, 1), got %v", rate)
	}
	return CommissionRate{rate: d}, nil
}

// MustNewCommissionRate panics on an invalid rate (for constants/tests)
func MustNewCommissionRate(rate float64) CommissionRate {
	r, err := NewCommissionRate(rate)
	if err != nil {
		panic(err)
	}
	return r
}

// Decimal returns the raw fraction
func (r CommissionRate) Decimal() decimal.Decimal {
	return r.rate
}

func (r CommissionRate) String() string {
	return r.rate.Mul(decimal.NewFromInt(100)).String() + "%"
}

// Estimate returns round(price × rate) in whole dollars. Negative prices
// estimate to zero.
func (r CommissionRate) Estimate(price Money) Money {
	if !price.IsPositive() {
		return Zero()
	}
	return price.Mul(r.rate).Round(0)
}
