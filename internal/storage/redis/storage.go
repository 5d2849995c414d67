// Package redis backs the credential store with Redis for deployments that
// share the user repository between server instances. Rows are stored as
// JSON values with a username index set for All.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skirmish-gg/skirmish/internal/model"
	"github.com/skirmish-gg/skirmish/internal/storage"
)

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &Storage{client: client, cfg: cfg}, nil
}

// NewWithClient creates a Redis storage with an existing client (for testing)
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{client: client, cfg: cfg}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Store = (*Storage)(nil)

func (s *Storage) FindByName(ctx context.Context, name string) (*model.Credential, error) {
	data, err := s.client.Get(ctx, userKey(name)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrUserNotFound
		}
		return nil, err
	}

	var cred model.Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, err
	}
	return &cred, nil
}

func (s *Storage) Insert(ctx context.Context, cred *model.Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return err
	}

	// SetNX gives the uniqueness check and the write in one round trip.
	ok, err := s.client.SetNX(ctx, userKey(cred.Name), data, 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return model.ErrUsernameExists
	}

	return s.client.SAdd(ctx, userIndexKey(), cred.Name).Err()
}

func (s *Storage) UpdateRatings(ctx context.Context, ratings map[string]int) error {
	// Read every affected row first, then rewrite them in one pipeline,
	// mirroring the file store's read-all/rewrite-all settlement write.
	rows := make([]*model.Credential, 0, len(ratings))
	for name, rating := range ratings {
		cred, err := s.FindByName(ctx, name)
		if err != nil {
			if errors.Is(err, model.ErrUserNotFound) {
				continue
			}
			return err
		}
		cred.Rating = rating
		rows = append(rows, cred)
	}

	pipe := s.client.Pipeline()
	for _, cred := range rows {
		data, err := json.Marshal(cred)
		if err != nil {
			return err
		}
		pipe.Set(ctx, userKey(cred.Name), data, 0)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *Storage) All(ctx context.Context) ([]*model.Credential, error) {
	names, err := s.client.SMembers(ctx, userIndexKey()).Result()
	if err != nil {
		return nil, err
	}

	rows := make([]*model.Credential, 0, len(names))
	for _, name := range names {
		cred, err := s.FindByName(ctx, name)
		if err != nil {
			if errors.Is(err, model.ErrUserNotFound) {
				continue
			}
			return nil, err
		}
		rows = append(rows, cred)
	}
	return rows, nil
}
