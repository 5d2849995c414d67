// Package file implements the credential store over a line-oriented text
// file, one "name,credential,rating" row per user. This is the repository
// format the server shares with external tooling, so rows are rewritten
// verbatim apart from the rating field.
package file

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/skirmish-gg/skirmish/internal/model"
	"github.com/skirmish-gg/skirmish/internal/storage"
)

// Storage is a flat-file implementation of the storage interface.
type Storage struct {
	mu   sync.Mutex
	path string
}

// New creates a file store, creating the backing file if absent.
func New(path string) (*Storage, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening credential file: %w", err)
	}
	_ = f.Close()
	return &Storage{path: path}, nil
}

// Ensure Storage implements the interface
var _ storage.Store = (*Storage)(nil)

func (s *Storage) FindByName(ctx context.Context, name string) (*model.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.readAll()
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.Name == name {
			return row, nil
		}
	}
	return nil, model.ErrUserNotFound
}

func (s *Storage) Insert(ctx context.Context, cred *model.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.readAll()
	if err != nil {
		return err
	}
	for _, row := range rows {
		if row.Name == cred.Name {
			return model.ErrUsernameExists
		}
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening credential file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s,%s,%d\n", cred.Name, cred.PasswordCredential, cred.Rating); err != nil {
		return fmt.Errorf("appending credential row: %w", err)
	}
	return nil
}

// UpdateRatings reads the whole file, patches the rating field of each
// named row, and writes the whole file back.
func (s *Storage) UpdateRatings(ctx context.Context, ratings map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.readAll()
	if err != nil {
		return err
	}

	for _, row := range rows {
		if rating, ok := ratings[row.Name]; ok {
			row.Rating = rating
		}
	}

	return s.writeAll(rows)
}

func (s *Storage) All(ctx context.Context) ([]*model.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readAll()
}

func (s *Storage) readAll() ([]*model.Credential, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading credential file: %w", err)
	}

	var rows []*model.Credential
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		row, err := parseRow(line)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *Storage) writeAll(rows []*model.Credential) error {
	var b strings.Builder
	for _, row := range rows {
		fmt.Fprintf(&b, "%s,%s,%d\n", row.Name, row.PasswordCredential, row.Rating)
	}
	if err := os.WriteFile(s.path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("rewriting credential file: %w", err)
	}
	return nil
}

func parseRow(line string) (*model.Credential, error) {
	// The password credential contains colons but never commas, so a
	// plain 3-way split is safe.
	parts := strings.Split(line, ",")
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed credential row %q", line)
	}
	rating, err := strconv.Atoi(parts[2])
	if err != nil {
		return nil, fmt.Errorf("malformed rating in row %q: %w", line, err)
	}
	return &model.Credential{
		Name:               parts[0],
		PasswordCredential: parts[1],
		Rating:             rating,
	}, nil
}
