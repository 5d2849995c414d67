package model

import "sync"

// ContestStatus tracks a contest through its lifecycle. A contest is never
// re-run or retried.
type ContestStatus string

const (
	ContestPending   ContestStatus = "pending"
	ContestRunning   ContestStatus = "running"
	ContestCompleted ContestStatus = "completed"
	ContestSettled   ContestStatus = "settled"
)

// Contest is one executed match between a fixed-size roster of sessions,
// producing exactly one winner.
type Contest struct {
	Roster []*Session
	Ranked bool

	mu     sync.Mutex
	status ContestStatus
	winner *Session
}

// NewContest creates a pending contest over the given roster.
func NewContest(roster []*Session, ranked bool) *Contest {
	return &Contest{
		Roster: roster,
		Ranked: ranked,
		status: ContestPending,
	}
}

// Status returns the current lifecycle state.
func (c *Contest) Status() ContestStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// SetStatus advances the lifecycle state.
func (c *Contest) SetStatus(s ContestStatus) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// Winner returns the decided winner, or nil before resolution.
func (c *Contest) Winner() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.winner
}

// SetWinner records the outcome. The winner is set exactly once and never
// cleared; later calls are ignored.
func (c *Contest) SetWinner(w *Session) {
	c.mu.Lock()
	if c.winner == nil {
		c.winner = w
	}
	c.mu.Unlock()
}
