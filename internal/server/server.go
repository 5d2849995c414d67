// Package server assembles the full matchmaking service: the connection
// reactor, the protocol dispatcher, both matcher loops, the contest
// executor, and the reaper and settlement tickers.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/skirmish-gg/skirmish/internal/contest"
	"github.com/skirmish-gg/skirmish/internal/dependencies/clock"
	"github.com/skirmish-gg/skirmish/internal/dependencies/random"
	"github.com/skirmish-gg/skirmish/internal/match"
	"github.com/skirmish-gg/skirmish/internal/queue"
	"github.com/skirmish-gg/skirmish/internal/reactor"
	"github.com/skirmish-gg/skirmish/internal/reaper"
	"github.com/skirmish-gg/skirmish/internal/session"
	"github.com/skirmish-gg/skirmish/internal/settle"
	"github.com/skirmish-gg/skirmish/internal/storage"
)

// Config collects every component's tunables.
type Config struct {
	// Addr is the TCP listen address, e.g. ":7777".
	Addr string
	// Workers is the contest executor pool size.
	Workers int

	Match  match.Config
	Runner contest.RunnerConfig
	Reaper reaper.Config
	Settle settle.Config
}

// DefaultConfig returns the production configuration for the given listen
// address.
func DefaultConfig(addr string) Config {
	return Config{
		Addr:    addr,
		Workers: contest.DefaultWorkers,
		Match:   match.DefaultConfig(),
		Runner:  contest.DefaultRunnerConfig(),
		Reaper:  reaper.DefaultConfig(),
		Settle:  settle.DefaultConfig(),
	}
}

// Server owns the listener and every background loop.
type Server struct {
	cfg    Config
	logger *slog.Logger

	registry *session.Registry
	queues   *queue.Set
	reactor  *reactor.Reactor
	executor *contest.Executor
	matchers []*match.Matcher
	reaper   *reaper.Reaper
	drain    *settle.Drain

	mu     sync.Mutex
	ln     net.Listener
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires a server from its dependencies. Nothing runs until Start.
func New(cfg Config, store storage.Store, clk clock.Clock, rnd random.Random, logger *slog.Logger) *Server {
	registry := session.NewRegistry(store, clk, logger)
	queues := queue.NewSet()
	dispatcher := NewDispatcher(registry, queues, logger)
	rct := reactor.New(dispatcher, logger)

	runner := contest.NewRunner(contest.NewRandomResolver(rnd), cfg.Runner, logger)
	executor := contest.NewExecutor(cfg.Workers, runner, logger)

	matchers := []*match.Matcher{
		match.NewMatcher(queues.Simple, clk, rct, executor, cfg.Match, logger),
		match.NewMatcher(queues.Ranked, clk, rct, executor, cfg.Match, logger),
	}

	return &Server{
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "server")),
		registry: registry,
		queues:   queues,
		reactor:  rct,
		executor: executor,
		matchers: matchers,
		reaper:   reaper.New(rct, registry, queues, clk, cfg.Reaper, logger),
		drain:    settle.New(executor, rct, store, cfg.Settle, logger),
	}
}

// Start binds the listener and launches every loop. It returns once the
// server is accepting connections.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Addr, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.ln = ln
	s.cancel = cancel
	s.mu.Unlock()

	s.executor.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.reactor.Run(ctx, ln)
	}()
	for _, m := range s.matchers {
		m := m
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			m.Run(ctx)
		}()
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.reaper.Run(ctx)
	}()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.drain.Run(ctx)
	}()

	s.logger.Info("server listening", slog.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the bound listen address, for callers that started on
// port 0.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Shutdown stops accepting, cancels every loop, and waits for running
// contests to finish.
func (s *Server) Shutdown() {
	s.mu.Lock()
	ln, cancel := s.ln, s.cancel
	s.ln, s.cancel = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}

	s.logger.Info("shutting down")
	if ln != nil {
		ln.Close()
	}
	s.queues.Close()
	cancel()
	s.wg.Wait()
	s.executor.Shutdown()
}

// Registry exposes the session registry for diagnostics.
func (s *Server) Registry() *session.Registry {
	return s.registry
}

// Queues exposes the matchmaking queues for diagnostics.
func (s *Server) Queues() *queue.Set {
	return s.queues
}

// Executor exposes the contest executor for diagnostics.
func (s *Server) Executor() *contest.Executor {
	return s.executor
}

// Reactor exposes the connection reactor for diagnostics.
func (s *Server) Reactor() *reactor.Reactor {
	return s.reactor
}

// Live counters for the admin status endpoint.

func (s *Server) ConnCount(ctx context.Context) (int, error) {
	return s.reactor.ConnCount(ctx)
}

func (s *Server) SessionCount() int {
	return s.registry.Len()
}

func (s *Server) SimpleQueueLen() int {
	return s.queues.Simple.Len()
}

func (s *Server) RankedQueueLen() int {
	return s.queues.Ranked.Len()
}

func (s *Server) PendingContests() int {
	return s.executor.PendingLen()
}

func (s *Server) CompletedContests() int {
	return s.executor.CompletedLen()
}
