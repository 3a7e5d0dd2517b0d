package values

import "time"

// Clock supplies "now" to detection and review so windows and grace periods
// can be pinned in tests
type Clock interface {
	Now() time.Time
}

// RealClock reports wall time in UTC
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// MockClock is a settable Clock. It is not safe for concurrent Advance.
type MockClock struct {
	CurrentTime time.Time
}

func (m *MockClock) Now() time.Time { return m.CurrentTime }

// Advance moves the clock forward by d
func (m *MockClock) Advance(d time.Duration) { m.CurrentTime = m.CurrentTime.Add(d) }
