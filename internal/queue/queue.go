// Package queue holds the two matchmaking queues. Every critical section
// is a named atomic operation on the queue itself, so no caller ever holds
// a queue lock across a socket operation.
package queue

import (
	"sync"
	"time"

	"github.com/skirmish-gg/skirmish/internal/model"
)

// Kind selects a matchmaking policy.
type Kind string

const (
	KindSimple Kind = "simple"
	KindRanked Kind = "ranked"
)

// Queue is one ordered matchmaking queue. Arrival order is preserved for
// iteration; the grouping rules decide what that order means.
type Queue struct {
	kind Kind

	mu      sync.Mutex
	entries []*model.Session

	// signal wakes one waiter per enqueue. Capacity 1 is enough: a
	// waiter re-checks the length after every wake.
	signal chan struct{}
	closed chan struct{}
	once   sync.Once
}

// New creates an empty queue.
func New(kind Kind) *Queue {
	return &Queue{
		kind:   kind,
		signal: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

// Kind returns the queue's matchmaking policy.
func (q *Queue) Kind() Kind {
	return q.kind
}

// Add appends a session in arrival order and wakes a waiting matcher.
func (q *Queue) Add(s *model.Session) {
	q.mu.Lock()
	q.entries = append(q.entries, s)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Remove deletes a session from the queue, reporting whether it was there.
func (q *Queue) Remove(s *model.Session) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.removeLocked(s)
}

func (q *Queue) removeLocked(s *model.Session) bool {
	for i, e := range q.entries {
		if e == s {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of queued sessions.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Contains reports whether the named session is queued.
func (q *Queue) Contains(name string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.Name == name {
			return true
		}
	}
	return false
}

// FindByToken returns the queued session holding the given reconnect
// token, or nil.
func (q *Queue) FindByToken(token string) *model.Session {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range q.entries {
		if e.Token == token {
			return e
		}
	}
	return nil
}

// WaitReady blocks until the queue holds at least n entries, the retry
// interval elapses, or the queue closes. It returns false only when the
// queue has closed; a true return means the caller should attempt one
// grouping pass (which may still fail on eligibility).
func (q *Queue) WaitReady(n int, retry time.Duration) bool {
	for {
		if q.Len() >= n {
			return true
		}
		select {
		case <-q.signal:
		case <-time.After(retry):
			// Ranked windows widen with wall time, so a matcher must
			// retry even when no new enqueue arrives.
			if q.Len() >= n {
				return true
			}
		case <-q.closed:
			return false
		}
	}
}

// Close releases every waiter permanently.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.closed) })
}

// TryTakeGroup atomically removes and returns the first n sessions
// satisfying eligible, in arrival order. It returns nil without mutating
// the queue when fewer than n are eligible.
func (q *Queue) TryTakeGroup(n int, eligible func(*model.Session) bool) []*model.Session {
	q.mu.Lock()
	defer q.mu.Unlock()

	group := make([]*model.Session, 0, n)
	for _, e := range q.entries {
		if !eligible(e) {
			continue
		}
		group = append(group, e)
		if len(group) == n {
			break
		}
	}
	if len(group) < n {
		return nil
	}

	for _, s := range group {
		q.removeLocked(s)
	}
	return group
}

// TryTakeRankedGroup attempts the skill-proximity grouping rule: for each
// anchor in arrival order, partners must lie within a rating window that
// widens quadratically with the anchor's wait time. The first anchor that
// fills a group of n wins; partial groups are discarded. Returns nil when
// no anchor yields a full group.
func (q *Queue) TryTakeRankedGroup(n int, now time.Time, relaxPeriod time.Duration, relaxQuantity int) []*model.Session {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, anchor := range q.entries {
		if !anchor.Connected() {
			continue
		}

		window := RelaxWindow(now.Sub(anchor.JoinedAt), relaxPeriod, relaxQuantity)
		lo := anchor.Rating() - window
		if lo < 0 {
			lo = 0
		}
		hi := anchor.Rating() + window

		group := make([]*model.Session, 0, n)
		group = append(group, anchor)
		for _, partner := range q.entries {
			if len(group) == n {
				break
			}
			if partner == anchor || !partner.Connected() {
				continue
			}
			if r := partner.Rating(); r >= lo && r <= hi {
				group = append(group, partner)
			}
		}

		if len(group) == n {
			for _, s := range group {
				q.removeLocked(s)
			}
			return group
		}
	}
	return nil
}

// SweepDisconnected applies the reaper rule to every entry: start the
// grace period on first observation of a dead connection, evict once the
// grace period has elapsed, clear the mark when the session came back.
// Returns the evicted sessions.
func (q *Queue) SweepDisconnected(now time.Time, grace time.Duration) []*model.Session {
	q.mu.Lock()
	defer q.mu.Unlock()

	var evicted []*model.Session
	kept := q.entries[:0]
	for _, e := range q.entries {
		if e.Connected() {
			e.ClearDisconnectMark()
			kept = append(kept, e)
			continue
		}

		since, marked := e.DisconnectedSince()
		if !marked {
			e.MarkDisconnected(now)
			kept = append(kept, e)
			continue
		}
		if now.Sub(since) > grace {
			evicted = append(evicted, e)
			continue
		}
		kept = append(kept, e)
	}
	q.entries = kept
	return evicted
}

// RelaxWindow computes the rating tolerance for an anchor that has waited
// the given duration: quantity * relaxations^2, one relaxation per full
// period. Zero wait means only an exact-rating partner qualifies.
func RelaxWindow(waited, period time.Duration, quantity int) int {
	if period <= 0 {
		return 0
	}
	relaxations := int(waited / period)
	return quantity * relaxations * relaxations
}
