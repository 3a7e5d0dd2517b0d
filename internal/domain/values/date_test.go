package values

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := ParseDate(s)
	require.NoError(t, err)
	return d
}

func TestDateWindow_Contains(t *testing.T) {
	w, err := NewDateWindow(date(t, "2024-01-01"), date(t, "2024-06-30"))
	require.NoError(t, err)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"start day inclusive", date(t, "2024-01-01"), true},
		{"end day inclusive", date(t, "2024-06-30"), true},
		{"late on end day", time.Date(2024, 6, 30, 23, 59, 0, 0, time.UTC), true},
		{"inside", date(t, "2024-03-15"), true},
		{"day before start", date(t, "2023-12-31"), false},
		{"day after end", date(t, "2024-07-01"), false},
		{"well after", date(t, "2024-07-15"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.Contains(tt.at))
		})
	}
}

func TestDateWindow_Intersect(t *testing.T) {
	contract := DateWindow{Start: date(t, "2024-01-01"), End: date(t, "2024-06-30")}

	tests := []struct {
		name      string
		other     DateWindow
		wantStart string
		wantEnd   string
		ok        bool
	}{
		{"wider request is clipped", DateWindow{Start: date(t, "2023-06-01"), End: date(t, "2024-12-31")}, "2024-01-01", "2024-06-30", true},
		{"overlapping tail", DateWindow{Start: date(t, "2024-05-01"), End: date(t, "2024-09-01")}, "2024-05-01", "2024-06-30", true},
		{"single shared day", DateWindow{Start: date(t, "2024-06-30"), End: date(t, "2024-08-01")}, "2024-06-30", "2024-06-30", true},
		{"disjoint", DateWindow{Start: date(t, "2024-07-01"), End: date(t, "2024-08-01")}, "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := contract.Intersect(tt.other)
			require.Equal(t, tt.ok, ok)
			if !ok {
				return
			}
			assert.Equal(t, tt.wantStart, got.Start.Format(DateLayout))
			assert.Equal(t, tt.wantEnd, got.End.Format(DateLayout))
		})
	}
}

func TestNewDateWindow_RejectsInvertedRange(t *testing.T) {
	_, err := NewDateWindow(date(t, "2024-06-30"), date(t, "2024-01-01"))
	assert.Error(t, err)

	_, err = NewDateWindow(date(t, "2024-01-01"), date(t, "2024-01-01"))
	assert.Error(t, err)

	_, err = NewDateWindow(time.Time{}, date(t, "2024-01-01"))
	assert.Error(t, err)
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-15T10:30:00-05:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 15, 30, 0, 0, time.UTC), d)

	_, err = ParseDate("03/15/2024")
	assert.Error(t, err)

	w, _ := NewDateWindow(date(t, "2024-01-01"), date(t, "2024-06-30"))
	assert.Equal(t, "2024-01-01..2024-06-30", w.Key())
}
