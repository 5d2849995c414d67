package match

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skirmish-gg/skirmish/internal/contest"
	"github.com/skirmish-gg/skirmish/internal/dependencies/mocks"
	"github.com/skirmish-gg/skirmish/internal/model"
	"github.com/skirmish-gg/skirmish/internal/queue"
	"github.com/skirmish-gg/skirmish/internal/testutil"
	"github.com/skirmish-gg/skirmish/internal/wire"
)

var baseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeDetacher struct {
	mu       sync.Mutex
	detached []wire.ConnID
}

func (f *fakeDetacher) Detach(ctx context.Context, conn *wire.Conn, inbox chan<- string) error {
	f.mu.Lock()
	f.detached = append(f.detached, conn.ID())
	f.mu.Unlock()
	conn.SetInbox(inbox)
	return nil
}

func (f *fakeDetacher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.detached)
}

type fakeSubmitter struct {
	mu    sync.Mutex
	tasks []*contest.Task
}

func (f *fakeSubmitter) Submit(task *contest.Task) {
	f.mu.Lock()
	f.tasks = append(f.tasks, task)
	f.mu.Unlock()
}

func (f *fakeSubmitter) all() []*contest.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*contest.Task(nil), f.tasks...)
}

var nextConnID wire.ConnID

func newSession(t *testing.T, name string, rating int, joined time.Time) *model.Session {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	nextConnID++
	return model.NewSession(name, rating, "token-"+name, wire.NewConn(nextConnID, server), joined)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryInterval = 10 * time.Millisecond
	return cfg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestSimpleMatcherGroupsInArrivalOrder(t *testing.T) {
	q := queue.New(queue.KindSimple)
	clk := mocks.NewMockClock(baseTime)
	det := &fakeDetacher{}
	sub := &fakeSubmitter{}

	m := NewMatcher(q, clk, det, sub, testConfig(), testutil.NopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	a := newSession(t, "a", 100, baseTime)
	b := newSession(t, "b", 100, baseTime)
	c := newSession(t, "c", 100, baseTime)
	d := newSession(t, "d", 100, baseTime)
	q.Add(a)
	q.Add(b)
	q.Add(c)
	q.Add(d)

	waitFor(t, func() bool { return len(sub.all()) == 2 })

	tasks := sub.all()
	require.Equal(t, []*model.Session{a, b}, tasks[0].Contest.Roster, "first group is the first two arrivals")
	require.Equal(t, []*model.Session{c, d}, tasks[1].Contest.Roster)
	assert.False(t, tasks[0].Contest.Ranked)
	assert.Equal(t, 4, det.count(), "every grouped player is detached")
	assert.Zero(t, q.Len())
}

func TestSimpleMatcherWaitsForFullGroup(t *testing.T) {
	q := queue.New(queue.KindSimple)
	sub := &fakeSubmitter{}

	m := NewMatcher(q, mocks.NewMockClock(baseTime), &fakeDetacher{}, sub, testConfig(), testutil.NopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	q.Add(newSession(t, "solo", 100, baseTime))

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, sub.all())
	assert.Equal(t, 1, q.Len())
}

func TestRankedMatcherHonoursRelaxWindow(t *testing.T) {
	q := queue.New(queue.KindRanked)
	clk := mocks.NewMockClock(baseTime)
	sub := &fakeSubmitter{}

	m := NewMatcher(q, clk, &fakeDetacher{}, sub, testConfig(), testutil.NopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	// 180 rating apart: window must reach 180 before they group.
	q.Add(newSession(t, "carol", 200, baseTime))
	q.Add(newSession(t, "dave", 20, baseTime))

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, sub.all(), "window is zero with no wait")

	// After 10 mock seconds the window is 50*2^2 = 200 >= 180.
	clk.Advance(10 * time.Second)

	waitFor(t, func() bool { return len(sub.all()) == 1 })
	task := sub.all()[0]
	assert.True(t, task.Contest.Ranked)
	assert.Len(t, task.Contest.Roster, 2)
}

func TestRankedMatcherGroupsEqualRatingsImmediately(t *testing.T) {
	q := queue.New(queue.KindRanked)
	sub := &fakeSubmitter{}

	m := NewMatcher(q, mocks.NewMockClock(baseTime), &fakeDetacher{}, sub, testConfig(), testutil.NopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	q.Add(newSession(t, "x", 150, baseTime))
	q.Add(newSession(t, "y", 150, baseTime))

	waitFor(t, func() bool { return len(sub.all()) == 1 })
}

func TestMatcherStopsWhenQueueCloses(t *testing.T) {
	q := queue.New(queue.KindSimple)
	m := NewMatcher(q, mocks.NewMockClock(baseTime), &fakeDetacher{}, &fakeSubmitter{}, testConfig(), testutil.NopLogger())

	done := make(chan struct{})
	go func() {
		m.Run(context.Background())
		close(done)
	}()

	q.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("matcher did not stop on queue close")
	}
}
