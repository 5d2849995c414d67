// Package match runs the two matcher loops. Both share one shape: wait
// for a full queue, take a group under the queue's own lock, detach the
// group's connections from the dispatcher, submit a contest. Only the
// grouping rule differs.
package match

import (
	"context"
	"log/slog"
	"time"

	"github.com/skirmish-gg/skirmish/internal/contest"
	"github.com/skirmish-gg/skirmish/internal/dependencies/clock"
	"github.com/skirmish-gg/skirmish/internal/model"
	"github.com/skirmish-gg/skirmish/internal/queue"
	"github.com/skirmish-gg/skirmish/internal/wire"
)

// inboxCapacity buffers a player's contest lines between the reactor and
// the worker consuming them.
const inboxCapacity = 8

// Config holds the grouping parameters shared by both matchers.
type Config struct {
	// PlayersPerContest is the roster size N.
	PlayersPerContest int
	// RelaxPeriod is the wait time per ranked window relaxation.
	RelaxPeriod time.Duration
	// RelaxQuantity scales the ranked window: quantity * relaxations^2.
	RelaxQuantity int
	// RetryInterval is how long a matcher backs off after a failed
	// grouping pass. Ranked windows widen with time, so passes must
	// repeat without new enqueues.
	RetryInterval time.Duration
}

// DefaultConfig returns the production matchmaking parameters.
func DefaultConfig() Config {
	return Config{
		PlayersPerContest: 2,
		RelaxPeriod:       5 * time.Second,
		RelaxQuantity:     50,
		RetryInterval:     500 * time.Millisecond,
	}
}

// Detacher hands a connection's line delivery to a contest mailbox. The
// reactor implements it.
type Detacher interface {
	Detach(ctx context.Context, conn *wire.Conn, inbox chan<- string) error
}

// Submitter accepts formed contests. The executor implements it.
type Submitter interface {
	Submit(task *contest.Task)
}

// Matcher is one matcher loop over one queue.
type Matcher struct {
	queue     *queue.Queue
	clock     clock.Clock
	detacher  Detacher
	submitter Submitter
	cfg       Config
	logger    *slog.Logger
}

// NewMatcher creates a matcher for the given queue.
func NewMatcher(q *queue.Queue, clk clock.Clock, detacher Detacher, submitter Submitter, cfg Config, logger *slog.Logger) *Matcher {
	if cfg.PlayersPerContest <= 0 {
		cfg.PlayersPerContest = DefaultConfig().PlayersPerContest
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultConfig().RetryInterval
	}
	return &Matcher{
		queue:     q,
		clock:     clk,
		detacher:  detacher,
		submitter: submitter,
		cfg:       cfg,
		logger: logger.With(
			slog.String("component", "matcher"),
			slog.String("queue", string(q.Kind()))),
	}
}

// Run drives the matcher until the context is cancelled or the queue
// closes.
func (m *Matcher) Run(ctx context.Context) {
	n := m.cfg.PlayersPerContest
	for {
		if !m.queue.WaitReady(n, m.cfg.RetryInterval) {
			return
		}
		if ctx.Err() != nil {
			return
		}

		group := m.takeGroup(n)
		if group == nil {
			// Enough entries but no eligible grouping; back off so a
			// full-but-unmatchable queue does not spin this loop.
			select {
			case <-time.After(m.cfg.RetryInterval):
			case <-ctx.Done():
				return
			}
			continue
		}

		m.submitGroup(ctx, group)
	}
}

func (m *Matcher) takeGroup(n int) []*model.Session {
	if m.queue.Kind() == queue.KindRanked {
		return m.queue.TryTakeRankedGroup(n, m.clock.Now(), m.cfg.RelaxPeriod, m.cfg.RelaxQuantity)
	}
	return m.queue.TryTakeGroup(n, func(s *model.Session) bool { return s.Connected() })
}

// submitGroup detaches the group's connections and hands the contest to
// the executor. Queue removal and detachment belong to the same grouping
// step: once here, the contest owns these sockets exclusively.
func (m *Matcher) submitGroup(ctx context.Context, group []*model.Session) {
	inputs := make([]<-chan string, len(group))
	for i, s := range group {
		inbox := make(chan string, inboxCapacity)
		if err := m.detacher.Detach(ctx, s.Conn(), inbox); err != nil {
			m.logger.Warn("failed to detach player connection",
				slog.String("player", s.Name),
				slog.String("error", err.Error()))
		}
		inputs[i] = inbox
	}

	ranked := m.queue.Kind() == queue.KindRanked
	names := make([]string, len(group))
	for i, s := range group {
		names[i] = s.Name
	}
	m.logger.Info("contest formed",
		slog.Bool("ranked", ranked),
		slog.Any("players", names))

	m.submitter.Submit(&contest.Task{
		Contest: model.NewContest(group, ranked),
		Inputs:  inputs,
	})
}
