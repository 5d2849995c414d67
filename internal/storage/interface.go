package storage

import (
	"context"

	"github.com/skirmish-gg/skirmish/internal/model"
)

// Store defines the interface to the user credential repository.
//
// UpdateRatings deliberately has read-all/rewrite-all semantics: ranked
// settlement rewrites every affected row in one pass, and a write failure
// loses the whole batch (logged by the caller, never retried).
type Store interface {
	// FindByName returns the row for a username, or model.ErrUserNotFound.
	FindByName(ctx context.Context, name string) (*model.Credential, error)

	// Insert adds a new row. Fails with model.ErrUsernameExists when the
	// name is taken.
	Insert(ctx context.Context, cred *model.Credential) error

	// UpdateRatings rewrites the rating of every named row. Names without
	// a row are skipped silently, matching the settlement contract.
	UpdateRatings(ctx context.Context, ratings map[string]int) error

	// All returns every row, for diagnostics and tests.
	All(ctx context.Context) ([]*model.Credential, error)
}
