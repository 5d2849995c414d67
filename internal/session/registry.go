// Package session owns the authoritative set of authenticated sessions
// and the reconnect-token index. It does no socket I/O; the dispatcher
// feeds it decoded commands and writes the replies.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/skirmish-gg/skirmish/internal/auth"
	"github.com/skirmish-gg/skirmish/internal/dependencies/clock"
	"github.com/skirmish-gg/skirmish/internal/model"
	"github.com/skirmish-gg/skirmish/internal/storage"
	"github.com/skirmish-gg/skirmish/internal/wire"
)

// BaseRating is the rating a freshly registered user starts with.
const BaseRating = 100

// Registry holds all live sessions, indexed three ways: by name, by
// reconnect token, and by current connection. The connection and session
// sides never point at each other; both lookups live here.
type Registry struct {
	store  storage.Store
	clock  clock.Clock
	logger *slog.Logger

	mu      sync.Mutex
	byName  map[string]*model.Session
	byToken map[string]*model.Session
	byConn  map[wire.ConnID]string
}

// NewRegistry creates an empty registry over the credential store.
func NewRegistry(store storage.Store, clk clock.Clock, logger *slog.Logger) *Registry {
	return &Registry{
		store:   store,
		clock:   clk,
		logger:  logger.With(slog.String("component", "registry")),
		byName:  make(map[string]*model.Session),
		byToken: make(map[string]*model.Session),
		byConn:  make(map[wire.ConnID]string),
	}
}

// Login authenticates an existing user and creates their session. A name
// with an already-live session fails: one live session per name.
func (r *Registry) Login(ctx context.Context, name, password string, conn *wire.Conn) (*model.Session, error) {
	r.mu.Lock()
	_, live := r.byName[name]
	r.mu.Unlock()
	if live {
		return nil, model.ErrSessionLive
	}

	cred, err := r.store.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, model.ErrLoginFailed
		}
		return nil, fmt.Errorf("looking up user: %w", err)
	}
	if !auth.Verify(password, cred.PasswordCredential) {
		return nil, model.ErrLoginFailed
	}

	return r.createSession(name, cred.Rating, conn), nil
}

// Register creates a credential row with the base rating, then the
// session. A taken name fails registration.
func (r *Registry) Register(ctx context.Context, name, password string, conn *wire.Conn) (*model.Session, error) {
	credential, err := auth.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	err = r.store.Insert(ctx, &model.Credential{
		Name:               name,
		PasswordCredential: credential,
		Rating:             BaseRating,
	})
	if err != nil {
		if errors.Is(err, model.ErrUsernameExists) {
			return nil, model.ErrRegisterFailed
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}

	return r.createSession(name, BaseRating, conn), nil
}

// Reconnect rebinds the session holding the token to a new connection.
// The token is never consumed; further reconnects keep working. Queue
// membership is untouched, so the session keeps its place.
func (r *Registry) Reconnect(token string, conn *wire.Conn) (*model.Session, bool) {
	r.mu.Lock()
	s, ok := r.byToken[token]
	if !ok {
		r.mu.Unlock()
		return nil, false
	}

	if old := s.Conn(); old != nil {
		delete(r.byConn, old.ID())
	}
	r.byConn[conn.ID()] = s.Name
	r.mu.Unlock()

	// Attach also clears the disconnect mark, resetting the grace period.
	s.Attach(conn)

	r.logger.Info("session reconnected", slog.String("name", s.Name))
	return s, true
}

// ByConn returns the session currently bound to the connection.
func (r *Registry) ByConn(id wire.ConnID) (*model.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.byConn[id]
	if !ok {
		return nil, false
	}
	s, ok := r.byName[name]
	return s, ok
}

// ByName returns the live session for a username.
func (r *Registry) ByName(name string) (*model.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byName[name]
	return s, ok
}

// Remove terminates a session immediately (explicit client quit).
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byName[name]
	if !ok {
		return
	}
	r.removeLocked(s)
}

func (r *Registry) removeLocked(s *model.Session) {
	delete(r.byName, s.Name)
	delete(r.byToken, s.Token)
	if conn := s.Conn(); conn != nil {
		delete(r.byConn, conn.ID())
	}
}

// Sweep applies the disconnect grace period to every session: mark on
// first dead observation, evict after the grace period, clear the mark on
// sessions that came back. Returns the evicted sessions.
func (r *Registry) Sweep(now time.Time, grace time.Duration) []*model.Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []*model.Session
	for _, s := range r.byName {
		if s.Connected() {
			s.ClearDisconnectMark()
			continue
		}

		since, marked := s.DisconnectedSince()
		if !marked {
			s.MarkDisconnected(now)
			continue
		}
		if now.Sub(since) > grace {
			r.removeLocked(s)
			evicted = append(evicted, s)
		}
	}

	for _, s := range evicted {
		r.logger.Info("session evicted after grace period", slog.String("name", s.Name))
	}
	return evicted
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byName)
}

func (r *Registry) createSession(name string, rating int, conn *wire.Conn) *model.Session {
	s := model.NewSession(name, rating, uuid.NewString(), conn, r.clock.Now())

	r.mu.Lock()
	r.byName[name] = s
	r.byToken[s.Token] = s
	r.byConn[conn.ID()] = name
	r.mu.Unlock()

	r.logger.Info("session created",
		slog.String("name", name),
		slog.Int("rating", rating))
	return s
}
