package memory

import (
	"context"
	"sync"

	"github.com/skirmish-gg/skirmish/internal/model"
	"github.com/skirmish-gg/skirmish/internal/storage"
)

// Storage is an in-memory implementation of the storage interface, used in
// tests and for throwaway servers.
type Storage struct {
	mu    sync.RWMutex
	users map[string]*model.Credential
	order []string
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		users: make(map[string]*model.Credential),
	}
}

// Ensure Storage implements the interface
var _ storage.Store = (*Storage)(nil)

func (s *Storage) FindByName(ctx context.Context, name string) (*model.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cred, ok := s.users[name]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	cp := *cred
	return &cp, nil
}

func (s *Storage) Insert(ctx context.Context, cred *model.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[cred.Name]; ok {
		return model.ErrUsernameExists
	}
	cp := *cred
	s.users[cred.Name] = &cp
	s.order = append(s.order, cred.Name)
	return nil
}

func (s *Storage) UpdateRatings(ctx context.Context, ratings map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, rating := range ratings {
		if cred, ok := s.users[name]; ok {
			cred.Rating = rating
		}
	}
	return nil
}

func (s *Storage) All(ctx context.Context) ([]*model.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows := make([]*model.Credential, 0, len(s.order))
	for _, name := range s.order {
		cp := *s.users[name]
		rows = append(rows, &cp)
	}
	return rows, nil
}
