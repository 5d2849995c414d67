// Package reaper evicts what the grace period has expired: closed
// connections from the reactor, dead sessions from the registry, and dead
// entries from both queues. Each collection is swept under its own lock.
package reaper

import (
	"context"
	"log/slog"
	"time"

	"github.com/skirmish-gg/skirmish/internal/dependencies/clock"
	"github.com/skirmish-gg/skirmish/internal/queue"
	"github.com/skirmish-gg/skirmish/internal/session"
)

// ConnPruner drops closed connections from the tracked set. The reactor
// implements it.
type ConnPruner interface {
	PruneClosed(ctx context.Context) (int, error)
}

// Config holds the reaper's timing.
type Config struct {
	// Interval between sweeps.
	Interval time.Duration
	// Grace is how long a disconnected session or queue entry survives
	// before eviction.
	Grace time.Duration
}

// DefaultConfig returns the production reaper timing.
func DefaultConfig() Config {
	return Config{
		Interval: time.Second,
		Grace:    30 * time.Second,
	}
}

// Reaper periodically sweeps all four collections.
type Reaper struct {
	pruner   ConnPruner
	registry *session.Registry
	queues   *queue.Set
	clock    clock.Clock
	cfg      Config
	logger   *slog.Logger
}

// New creates a reaper over the given collections.
func New(pruner ConnPruner, registry *session.Registry, queues *queue.Set, clk clock.Clock, cfg Config, logger *slog.Logger) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Reaper{
		pruner:   pruner,
		registry: registry,
		queues:   queues,
		clock:    clk,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "reaper")),
	}
}

// Run ticks until the context is cancelled.
func (r *Reaper) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over all collections. Exported so tests can drive
// it without the ticker.
func (r *Reaper) Sweep(ctx context.Context) {
	if pruned, err := r.pruner.PruneClosed(ctx); err == nil && pruned > 0 {
		r.logger.Info("pruned closed connections", slog.Int("count", pruned))
	}

	now := r.clock.Now()

	for _, s := range r.registry.Sweep(now, r.cfg.Grace) {
		r.logger.Info("removed session", slog.String("name", s.Name))
	}
	for _, s := range r.queues.Simple.SweepDisconnected(now, r.cfg.Grace) {
		r.logger.Info("removed player from the simple queue", slog.String("name", s.Name))
	}
	for _, s := range r.queues.Ranked.SweepDisconnected(now, r.cfg.Grace) {
		r.logger.Info("removed player from the ranked queue", slog.String("name", s.Name))
	}
}
