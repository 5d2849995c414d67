package model

import (
	"fmt"
	"sync"
	"time"

	"github.com/skirmish-gg/skirmish/internal/wire"
)

// Session is an authenticated player's server-side identity, independent of
// any one socket connection. The connection reference is rebindable: a
// reconnect repoints it, and exactly one session holds a given connection
// at a time.
type Session struct {
	Name     string
	Token    string
	JoinedAt time.Time

	// mu guards the connection reference, the rating, and the disconnect
	// mark. Reconnect rebinding and settlement reattachment must be
	// mutually exclusive, so every access goes through it.
	mu             sync.Mutex
	rating         int
	conn           *wire.Conn
	disconnectMark time.Time
}

// NewSession creates a session bound to its initial connection.
func NewSession(name string, rating int, token string, conn *wire.Conn, joinedAt time.Time) *Session {
	return &Session{
		Name:     name,
		Token:    token,
		JoinedAt: joinedAt,
		rating:   rating,
		conn:     conn,
	}
}

// Conn returns the current connection reference.
func (s *Session) Conn() *wire.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// Attach repoints the session at a new connection. This is the only legal
// mutation path for reconnection; the old reference is abandoned, not
// closed (the reactor owns connection lifecycles).
func (s *Session) Attach(conn *wire.Conn) {
	s.mu.Lock()
	s.conn = conn
	s.disconnectMark = time.Time{}
	s.mu.Unlock()
}

// Connected reports whether the session's current connection is live.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil && s.conn.Connected()
}

// Rating returns the current rating.
func (s *Session) Rating() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rating
}

// AddRating applies a rating delta.
func (s *Session) AddRating(delta int) {
	s.mu.Lock()
	s.rating += delta
	s.mu.Unlock()
}

// MarkDisconnected starts the grace period if no mark exists yet.
func (s *Session) MarkDisconnected(now time.Time) {
	s.mu.Lock()
	if s.disconnectMark.IsZero() {
		s.disconnectMark = now
	}
	s.mu.Unlock()
}

// ClearDisconnectMark resets the grace period, covering token-based
// reconnection observed by the reaper.
func (s *Session) ClearDisconnectMark() {
	s.mu.Lock()
	s.disconnectMark = time.Time{}
	s.mu.Unlock()
}

// DisconnectedSince returns the disconnect mark, or false when the session
// has no mark set.
func (s *Session) DisconnectedSince() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disconnectMark.IsZero() {
		return time.Time{}, false
	}
	return s.disconnectMark, true
}

// Write sends a message over the session's current connection.
func (s *Session) Write(msg string) error {
	conn := s.Conn()
	if conn == nil {
		return ErrConnClosed
	}
	return conn.WriteString(msg)
}

// String implements fmt.Stringer for log lines.
func (s *Session) String() string {
	return fmt.Sprintf("%s - %d rating", s.Name, s.Rating())
}
