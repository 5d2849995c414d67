package reaper_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/skirmish-gg/skirmish/internal/dependencies/mocks"
	"github.com/skirmish-gg/skirmish/internal/model"
	"github.com/skirmish-gg/skirmish/internal/queue"
	"github.com/skirmish-gg/skirmish/internal/reaper"
	"github.com/skirmish-gg/skirmish/internal/session"
	"github.com/skirmish-gg/skirmish/internal/storage/memory"
	"github.com/skirmish-gg/skirmish/internal/testutil"
	"github.com/skirmish-gg/skirmish/internal/wire"
)

type fakePruner struct {
	calls  int
	pruned int
}

func (p *fakePruner) PruneClosed(ctx context.Context) (int, error) {
	p.calls++
	return p.pruned, nil
}

type ReaperSuite struct {
	suite.Suite

	clk      *mocks.MockClock
	pruner   *fakePruner
	registry *session.Registry
	queues   *queue.Set
	reaper   *reaper.Reaper

	nextConn wire.ConnID
}

func TestReaperSuite(t *testing.T) {
	suite.Run(t, new(ReaperSuite))
}

func (s *ReaperSuite) SetupTest() {
	s.clk = mocks.NewMockClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	s.pruner = &fakePruner{}
	s.registry = session.NewRegistry(memory.New(), s.clk, testutil.NopLogger())
	s.queues = queue.NewSet()
	s.reaper = reaper.New(s.pruner, s.registry, s.queues, s.clk,
		reaper.Config{Interval: time.Second, Grace: 30 * time.Second}, testutil.NopLogger())
	s.nextConn = 0
}

func (s *ReaperSuite) newConn() *wire.Conn {
	s.nextConn++
	server, client := net.Pipe()
	s.T().Cleanup(func() {
		server.Close()
		client.Close()
	})
	return wire.NewConn(s.nextConn, server)
}

func (s *ReaperSuite) registerQueued(name string, kind queue.Kind) *model.Session {
	sess, err := s.registry.Register(context.Background(), name, "pw", s.newConn())
	s.Require().NoError(err)
	s.Require().NoError(s.queues.Enqueue(sess, kind))
	return sess
}

func (s *ReaperSuite) TestSweepPrunesConnections() {
	s.reaper.Sweep(context.Background())
	s.Equal(1, s.pruner.calls)
}

func (s *ReaperSuite) TestConnectedSessionsSurvive() {
	s.registerQueued("alice", queue.KindSimple)
	s.registerQueued("bob", queue.KindRanked)

	for i := 0; i < 3; i++ {
		s.reaper.Sweep(context.Background())
		s.clk.Advance(time.Minute)
	}

	s.Equal(2, s.registry.Len())
	s.Equal(1, s.queues.Simple.Len())
	s.Equal(1, s.queues.Ranked.Len())
}

func (s *ReaperSuite) TestDeadSessionEvictedAfterGrace() {
	alice := s.registerQueued("alice", queue.KindSimple)
	bob := s.registerQueued("bob", queue.KindRanked)
	alice.Conn().Close()
	bob.Conn().Close()

	// First sweep only starts the grace period.
	s.reaper.Sweep(context.Background())
	s.Equal(2, s.registry.Len())

	// Just inside the grace period: still held.
	s.clk.Advance(30*time.Second - time.Second)
	s.reaper.Sweep(context.Background())
	s.Equal(2, s.registry.Len())
	s.Equal(1, s.queues.Simple.Len())

	// Past the grace period: gone from the registry and both queues.
	s.clk.Advance(2 * time.Second)
	s.reaper.Sweep(context.Background())
	s.Equal(0, s.registry.Len())
	s.Equal(0, s.queues.Simple.Len())
	s.Equal(0, s.queues.Ranked.Len())
}

func (s *ReaperSuite) TestReconnectDuringGraceSpares() {
	alice := s.registerQueued("alice", queue.KindSimple)
	token := alice.Token
	alice.Conn().Close()

	s.reaper.Sweep(context.Background())
	s.clk.Advance(20 * time.Second)

	_, ok := s.registry.Reconnect(token, s.newConn())
	s.Require().True(ok)

	s.clk.Advance(time.Minute)
	s.reaper.Sweep(context.Background())
	s.Equal(1, s.registry.Len())
	s.Equal(1, s.queues.Simple.Len())
}

func (s *ReaperSuite) TestRunStopsOnCancel() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.reaper.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		s.Fail("reaper did not stop on cancel")
	}
}
