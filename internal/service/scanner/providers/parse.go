package providers

import (
	"io"
	"strings"
	"time"

	"github.com/davidleathers/commission-protection-backend/internal/domain/values"
)

type limitedReader struct {
	r io.Reader
	n int64
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if l.n <= 0 {
		return 0, io.ErrUnexpectedEOF
	}
	if int64(len(p)) > l.n {
		p = p[:l.n]
	}
	n, err := l.r.Read(p)
	l.n -= int64(n)
	return n, err
}

var vendorDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
}

// parseVendorDate accepts the date shapes vendors return; ok is false for
// empty or unrecognized values
func parseVendorDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range vendorDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func optionalDate(s string) *time.Time {
	if t, ok := parseVendorDate(s); ok {
		return &t
	}
	return nil
}

// parsePrice accepts "$1,250,000.00", "1250000" or an empty string (zero)
func parsePrice(s string) values.Money {
	m, err := values.ParseMoney(s)
	if err != nil || m.IsNegative() {
		return values.Zero()
	}
	return m
}

func priceFromFloat(f float64) values.Money {
	if f <= 0 {
		return values.Zero()
	}
	return values.NewMoneyFromFloat(f)
}

// inWindow filters locally for vendors that cannot filter by date
func inWindow(t, start, end time.Time) bool {
	d := values.Day(t)
	return !d.Before(values.Day(start)) && !d.After(values.Day(end))
}
