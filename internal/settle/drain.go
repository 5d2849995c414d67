// Package settle drains completed contests: players get their sockets
// reattached to the dispatcher, and ranked results are persisted through
// the credential repository's read-all/rewrite-all update.
package settle

import (
	"context"
	"log/slog"
	"time"

	"github.com/skirmish-gg/skirmish/internal/model"
	"github.com/skirmish-gg/skirmish/internal/storage"
	"github.com/skirmish-gg/skirmish/internal/wire"
)

// Completer yields finished contests exactly once. The executor
// implements it.
type Completer interface {
	TakeSettleable() []*model.Contest
}

// Reattacher restores dispatcher delivery for a connection. The reactor
// implements it.
type Reattacher interface {
	Reattach(ctx context.Context, conn *wire.Conn) error
}

// Config holds the drain interval.
type Config struct {
	Interval time.Duration
}

// DefaultConfig returns the production drain timing.
func DefaultConfig() Config {
	return Config{Interval: 500 * time.Millisecond}
}

// Drain settles completed contests on an interval.
type Drain struct {
	completer  Completer
	reattacher Reattacher
	store      storage.Store
	cfg        Config
	logger     *slog.Logger
}

// New creates a settlement drain.
func New(completer Completer, reattacher Reattacher, store storage.Store, cfg Config, logger *slog.Logger) *Drain {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	return &Drain{
		completer:  completer,
		reattacher: reattacher,
		store:      store,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "settle")),
	}
}

// Run ticks until the context is cancelled.
func (d *Drain) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Settle(ctx)
		}
	}
}

// Settle processes every currently completed contest exactly once.
// Exported so tests can drive it without the ticker.
func (d *Drain) Settle(ctx context.Context) {
	for _, c := range d.completer.TakeSettleable() {
		d.settleOne(ctx, c)
	}
}

func (d *Drain) settleOne(ctx context.Context, c *model.Contest) {
	winner := c.Winner()
	d.logger.Info("settling contest",
		slog.String("winner", winner.Name),
		slog.Bool("ranked", c.Ranked))

	for _, player := range c.Roster {
		conn := player.Conn()
		if conn == nil {
			continue
		}
		if err := d.reattacher.Reattach(ctx, conn); err != nil {
			// A closed socket cannot be reattached; the reaper will
			// collect the session if the player never comes back.
			d.logger.Warn("failed to reattach player",
				slog.String("player", player.Name),
				slog.String("error", err.Error()))
		}
	}

	if !c.Ranked {
		c.SetStatus(model.ContestSettled)
		return
	}

	ratings := make(map[string]int, len(c.Roster))
	for _, player := range c.Roster {
		ratings[player.Name] = player.Rating()
	}
	if err := d.store.UpdateRatings(ctx, ratings); err != nil {
		// No retry: the contest is discarded and these ranked results
		// are lost. Known durability gap.
		d.logger.Error("failed to persist ranked ratings",
			slog.String("error", err.Error()))
	}

	c.SetStatus(model.ContestSettled)
}
