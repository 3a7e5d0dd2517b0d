package contract

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidleathers/commission-protection-backend/internal/domain/errors"
	"github.com/davidleathers/commission-protection-backend/internal/domain/values"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestContract(t *testing.T) *Contract {
	t.Helper()
	c, err := NewContract("agent-1", "", "Jane  Client", RepresentationBuyer,
		day(2024, 1, 1), day(2024, 6, 30), day(2023, 12, 20))
	require.NoError(t, err)
	return c
}

func TestNewContract(t *testing.T) {
	tests := []struct {
		name    string
		agentID string
		client  string
		rep     RepresentationType
		start   time.Time
		end     time.Time
		errCode string
	}{
		{name: "valid", agentID: "agent-1", client: "Jane", rep: RepresentationBuyer, start: day(2024, 1, 1), end: day(2024, 6, 30)},
		{name: "missing agent", client: "Jane", rep: RepresentationBuyer, start: day(2024, 1, 1), end: day(2024, 6, 30), errCode: "INVALID_AGENT"},
		{name: "missing client", agentID: "agent-1", client: "  ", rep: RepresentationBuyer, start: day(2024, 1, 1), end: day(2024, 6, 30), errCode: "INVALID_CLIENT"},
		{name: "bad representation", agentID: "agent-1", client: "Jane", rep: "landlord", start: day(2024, 1, 1), end: day(2024, 6, 30), errCode: "INVALID_REPRESENTATION"},
		{name: "end before start", agentID: "agent-1", client: "Jane", rep: RepresentationSeller, start: day(2024, 6, 30), end: day(2024, 1, 1), errCode: "INVALID_DATE_RANGE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewContract(tt.agentID, "", tt.client, tt.rep, tt.start, tt.end, day(2024, 1, 1))
			if tt.errCode != "" {
				require.Error(t, err)
				var appErr *errors.AppError
				require.ErrorAs(t, err, &appErr)
				assert.Equal(t, tt.errCode, appErr.Code)
				assert.Equal(t, errors.KindValidation, appErr.Kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, StatusActive, c.Status)
			assert.Equal(t, "jane", c.ClientID)
		})
	}
}

func TestContract_Covers(t *testing.T) {
	c := newTestContract(t)
	assert.Equal(t, "Jane Client", c.ClientName)

	assert.True(t, c.Covers(day(2024, 1, 1)))
	assert.True(t, c.Covers(day(2024, 3, 15)))
	assert.True(t, c.Covers(day(2024, 6, 30).Add(20*time.Hour)))
	assert.False(t, c.Covers(day(2023, 12, 31)))
	assert.False(t, c.Covers(day(2024, 7, 15)))
}

func TestContract_ExpiresWithin(t *testing.T) {
	c := newTestContract(t)
	window := 30 * 24 * time.Hour

	assert.True(t, c.ExpiresWithin(day(2024, 6, 10), window))
	assert.True(t, c.ExpiresWithin(day(2024, 6, 30), window))
	assert.False(t, c.ExpiresWithin(day(2024, 5, 1), window))
	assert.False(t, c.ExpiresWithin(day(2024, 7, 1), window))

	c.Status = StatusTerminated
	assert.False(t, c.ExpiresWithin(day(2024, 6, 10), window))
}

func TestContract_Terminate(t *testing.T) {
	c := newTestContract(t)
	require.NoError(t, c.Terminate(day(2024, 5, 1)))
	assert.Equal(t, StatusTerminated, c.Status)
	assert.Equal(t, day(2024, 5, 1), c.UpdatedAt)
	assert.False(t, c.IsActive())

	err := c.Terminate(day(2024, 5, 2))
	assert.True(t, errors.IsKind(err, errors.KindInvalidStateTransition))

	c.Status = StatusExpired
	err = c.Terminate(day(2024, 7, 2))
	assert.True(t, errors.IsKind(err, errors.KindInvalidStateTransition))
}

func TestContract_EffectiveRate(t *testing.T) {
	def := values.MustNewCommissionRate(values.DefaultCommissionRate)
	c := newTestContract(t)
	assert.Equal(t, def, c.EffectiveRate(def))

	override := decimal.NewFromFloat(0.025)
	c.CommissionRate = &override
	assert.Equal(t, "2.5%", c.EffectiveRate(def).String())

	bogus := decimal.NewFromInt(4)
	c.CommissionRate = &bogus
	assert.Equal(t, def, c.EffectiveRate(def))
}
