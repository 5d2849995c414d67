package clock

import "time"

// Clock provides time operations that can be mocked for testing. The
// matchmaking relaxation window, the disconnect grace period, and the
// session disconnect marks all read time through it.
type Clock interface {
	Now() time.Time
	Since(t time.Time) time.Duration
}

// RealClock implements Clock using the system clock
type RealClock struct{}

// New creates a new RealClock
func New() *RealClock {
	return &RealClock{}
}

// Now returns the current time
func (c *RealClock) Now() time.Time {
	return time.Now()
}

// Since returns the elapsed time since t
func (c *RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}
