package values

import (
	"bytes"
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a US-dollar amount. Sale prices and commission figures are all
// recorded in dollars, so the currency is implied.
type Money struct {
	amount decimal.Decimal
}

// NewMoney creates a Money value object
func NewMoney(amount decimal.Decimal) Money {
	return Money{amount: amount}
}

// NewMoneyFromInt creates Money from whole dollars
func NewMoneyFromInt(dollars int64) Money {
	return Money{amount: decimal.NewFromInt(dollars)}
}

// NewMoneyFromFloat creates Money from float64 amount
// Note: Use with caution due to floating point precision issues
func NewMoneyFromFloat(amount float64) Money {
	return Money{amount: decimal.NewFromFloat(amount)}
}

// ParseMoney parses "1234.50", "$1,234.50" or "1234"
func ParseMoney(s string) (Money, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return Money{}, fmt.Errorf("empty money value")
	}
	dec, err := decimal.NewFromString(cleaned)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Money{amount: dec}, nil
}

// Zero returns a zero Money value
func Zero() Money {
	return Money{amount: decimal.Zero}
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// String returns formatted money string (e.g., "$123.45")
func (m Money) String() string {
	return "$" + m.amount.StringFixed(2)
}

func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

func (m Money) Equal(other Money) bool {
	return m.amount.Equal(other.amount)
}

// Compare returns -1, 0, or 1 based on comparison with other Money
func (m Money) Compare(other Money) int {
	return m.amount.Cmp(other.amount)
}

func (m Money) GreaterThan(other Money) bool {
	return m.amount.GreaterThan(other.amount)
}

func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

// Mul multiplies Money by a decimal factor
func (m Money) Mul(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor)}
}

// Round rounds half away from zero to the given decimal places
func (m Money) Round(places int32) Money {
	return Money{amount: m.amount.Round(places)}
}

// Float64 converts to float64 (use with caution for precision)
func (m Money) Float64() float64 {
	f, _ := m.amount.Float64()
	return f
}

// IntPart returns whole dollars
func (m Money) IntPart() int64 {
	return m.amount.IntPart()
}

// Sum adds a list of amounts
func Sum(amounts ...Money) Money {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a.amount)
	}
	return Money{amount: total}
}

// MarshalJSON encodes Money as a bare JSON number
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.amount.String()), nil
}

// UnmarshalJSON accepts a JSON number or a quoted amount
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = Money{}
		return nil
	}
	parsed, err := ParseMoney(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Scan implements sql.Scanner for NUMERIC columns
func (m *Money) Scan(value interface{}) error {
	if value == nil {
		*m = Money{}
		return nil
	}
	var dec decimal.Decimal
	if err := dec.Scan(value); err != nil {
		return fmt.Errorf("cannot scan %T into Money: %w", value, err)
	}
	m.amount = dec
	return nil
}

// Value implements driver.Valuer
func (m Money) Value() (driver.Value, error) {
	return m.amount.String(), nil
}
