package values

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire format for calendar dates
const DateLayout = "2006-01-02"

// Day truncates t to midnight UTC of its calendar day
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts "2006-01-02" or an RFC3339 timestamp
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD or RFC3339", s)
	}
	return t.UTC(), nil
}

// DateWindow is an inclusive calendar-day interval
type DateWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewDateWindow requires start strictly before end
func NewDateWindow(start, end time.Time) (DateWindow, error) {
	if start.IsZero() || end.IsZero() {
		return DateWindow{}, fmt.Errorf("window bounds are required")
	}
	if !start.Before(end) {
		return DateWindow{}, fmt.Errorf("window start %s must be before end %s",
			start.Format(DateLayout), end.Format(DateLayout))
	}
	return DateWindow{Start: start, End: end}, nil
}

// Contains reports whether t falls on or between the start and end days
func (w DateWindow) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(Day(w.Start)) && !d.After(Day(w.End))
}

// Intersect returns the days both windows cover. ok is false when they
// share no day.
func (w DateWindow) Intersect(o DateWindow) (DateWindow, bool) {
	start, end := Day(w.Start), Day(w.End)
	if s := Day(o.Start); s.After(start) {
		start = s
	}
	if e := Day(o.End); e.Before(end) {
		end = e
	}
	if start.After(end) {
		return DateWindow{}, false
	}
	return DateWindow{Start: start, End: end}, true
}

// Key is a stable string form used for cache keys
func (w DateWindow) Key() string {
	return Day(w.Start).Format(DateLayout) + ".." + Day(w.End).Format(DateLayout)
}
