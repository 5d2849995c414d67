package contest

import (
	"log/slog"
	"time"

	"github.com/skirmish-gg/skirmish/internal/model"
)

// Rating deltas applied to ranked contests. The loser floor is asymmetric:
// a loser only pays when their rating exceeds the delta, so ratings can
// settle anywhere in (0, 10] and stay there.
const (
	winnerDelta    = 10
	loserDelta     = 10
	loserRatingMin = 10
)

// Task pairs a contest with its players' input mailboxes, in roster order.
// The mailboxes receive the lines the reactor routed away from the
// dispatcher while the contest owns the connections.
type Task struct {
	Contest *model.Contest
	Inputs  []<-chan string
}

// RunnerConfig holds the timing knobs for a single contest.
type RunnerConfig struct {
	// InputTimeout bounds the wait for one player's input line. Without
	// it a silent player would hold a worker forever.
	InputTimeout time.Duration
	// SettleDelay is the pause between deciding the winner and
	// broadcasting the result.
	SettleDelay time.Duration
}

// DefaultRunnerConfig returns the production timings.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		InputTimeout: 60 * time.Second,
		SettleDelay:  2 * time.Second,
	}
}

// Runner executes one contest fully and synchronously on the calling
// worker.
type Runner struct {
	resolver Resolver
	cfg      RunnerConfig
	logger   *slog.Logger
}

// NewRunner creates a Runner with the given outcome strategy.
func NewRunner(resolver Resolver, cfg RunnerConfig, logger *slog.Logger) *Runner {
	if cfg.InputTimeout == 0 {
		cfg.InputTimeout = DefaultRunnerConfig().InputTimeout
	}
	return &Runner{
		resolver: resolver,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run drives a contest from Pending to Completed: greet the roster,
// collect one input per player in roster order, resolve the winner, apply
// ranked rating deltas, then broadcast the result after the settle delay.
func (r *Runner) Run(task *Task) {
	c := task.Contest
	c.SetStatus(model.ContestRunning)

	greeting := model.GreetingMessage(c.Roster)
	for _, player := range c.Roster {
		if err := player.Write(greeting); err != nil {
			r.logger.Warn("failed to greet player",
				slog.String("player", player.Name),
				slog.String("error", err.Error()))
		}
	}

	for i, player := range c.Roster {
		input, err := r.awaitInput(task.Inputs[i])
		if err != nil {
			r.logger.Warn("no input from player",
				slog.String("player", player.Name),
				slog.String("error", err.Error()))
			continue
		}
		r.logger.Info("player input",
			slog.String("player", player.Name),
			slog.String("input", input))
	}

	winner := c.Roster[r.resolver.Resolve(c.Roster)]
	c.SetWinner(winner)

	if c.Ranked {
		for _, player := range c.Roster {
			if player == winner {
				player.AddRating(winnerDelta)
			} else if player.Rating() > loserRatingMin {
				player.AddRating(-loserDelta)
			}
		}
	}

	if r.cfg.SettleDelay > 0 {
		time.Sleep(r.cfg.SettleDelay)
	}

	result := model.WinnerMessage(winner)
	for _, player := range c.Roster {
		if err := player.Write(result); err != nil {
			r.logger.Warn("failed to send result",
				slog.String("player", player.Name),
				slog.String("error", err.Error()))
		}
	}

	c.SetStatus(model.ContestCompleted)
}

// awaitInput waits for the player's one contest input, tolerating empty
// lines, up to the configured timeout.
func (r *Runner) awaitInput(inbox <-chan string) (string, error) {
	deadline := time.NewTimer(r.cfg.InputTimeout)
	defer deadline.Stop()

	for {
		select {
		case line, ok := <-inbox:
			if !ok {
				return "", model.ErrConnClosed
			}
			if line == "" {
				continue
			}
			return line, nil
		case <-deadline.C:
			return "", model.ErrInputTimeout
		}
	}
}
