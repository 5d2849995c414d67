package queue

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skirmish-gg/skirmish/internal/model"
	"github.com/skirmish-gg/skirmish/internal/wire"
)

var baseTime = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

var nextConnID wire.ConnID

func newSession(t *testing.T, name string, rating int) *model.Session {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() {
		_ = client.Close()
		_ = server.Close()
	})
	nextConnID++
	conn := wire.NewConn(nextConnID, server)
	return model.NewSession(name, rating, "token-"+name, conn, baseTime)
}

func connected(s *model.Session) bool { return s.Connected() }

func TestTryTakeGroupFIFO(t *testing.T) {
	q := New(KindSimple)
	a := newSession(t, "a", 100)
	b := newSession(t, "b", 100)
	c := newSession(t, "c", 100)
	d := newSession(t, "d", 100)
	for _, s := range []*model.Session{a, b, c, d} {
		q.Add(s)
	}

	first := q.TryTakeGroup(2, connected)
	require.Equal(t, []*model.Session{a, b}, first, "first group is the two oldest arrivals")

	second := q.TryTakeGroup(2, connected)
	require.Equal(t, []*model.Session{c, d}, second)

	assert.Nil(t, q.TryTakeGroup(2, connected))
	assert.Zero(t, q.Len())
}

func TestTryTakeGroupSkipsIneligibleWithoutRemoving(t *testing.T) {
	q := New(KindSimple)
	a := newSession(t, "a", 100)
	b := newSession(t, "b", 100)
	c := newSession(t, "c", 100)
	q.Add(a)
	q.Add(b)
	q.Add(c)

	require.NoError(t, a.Conn().Close())

	group := q.TryTakeGroup(2, connected)
	require.Equal(t, []*model.Session{b, c}, group)

	// The dead head stays queued; the reaper owns its removal.
	assert.Equal(t, 1, q.Len())
	assert.True(t, q.Contains("a"))
}

func TestTryTakeGroupPartialLeavesQueueUntouched(t *testing.T) {
	q := New(KindSimple)
	q.Add(newSession(t, "a", 100))

	assert.Nil(t, q.TryTakeGroup(2, connected))
	assert.Equal(t, 1, q.Len())
}

func TestRelaxWindowMonotonicity(t *testing.T) {
	period := 5 * time.Second
	quantity := 50

	assert.Equal(t, 0, RelaxWindow(0, period, quantity))
	assert.Equal(t, 0, RelaxWindow(4*time.Second, period, quantity))
	assert.Equal(t, 50, RelaxWindow(5*time.Second, period, quantity))
	assert.Equal(t, 50, RelaxWindow(9*time.Second, period, quantity))
	assert.Equal(t, 200, RelaxWindow(10*time.Second, period, quantity))
	assert.Equal(t, 450, RelaxWindow(15*time.Second, period, quantity))
}

func TestTryTakeRankedGroupZeroWaitNeedsExactRating(t *testing.T) {
	q := New(KindRanked)
	carol := newSession(t, "carol", 200)
	dave := newSession(t, "dave", 20)
	q.Add(carol)
	q.Add(dave)

	// No wait has elapsed: window 0, ratings differ, no group forms.
	assert.Nil(t, q.TryTakeRankedGroup(2, baseTime, 5*time.Second, 50))
	assert.Equal(t, 2, q.Len())

	// After 10s the window is 200, which covers the 180 rating gap.
	group := q.TryTakeRankedGroup(2, baseTime.Add(10*time.Second), 5*time.Second, 50)
	require.Len(t, group, 2)
	assert.Zero(t, q.Len())
}

func TestTryTakeRankedGroupExactMatchImmediate(t *testing.T) {
	q := New(KindRanked)
	q.Add(newSession(t, "x", 150))
	q.Add(newSession(t, "y", 150))

	group := q.TryTakeRankedGroup(2, baseTime, 5*time.Second, 50)
	require.Len(t, group, 2)
}

func TestTryTakeRankedGroupAnchorMaySkipAhead(t *testing.T) {
	q := New(KindRanked)
	loner := newSession(t, "loner", 1000)
	x := newSession(t, "x", 100)
	y := newSession(t, "y", 100)
	q.Add(loner)
	q.Add(x)
	q.Add(y)

	// The head anchor has no partner in range, but a later anchor pair
	// matches; ranked grouping is deliberately not FIFO-fair.
	group := q.TryTakeRankedGroup(2, baseTime, 5*time.Second, 50)
	require.Equal(t, []*model.Session{x, y}, group)
	assert.True(t, q.Contains("loner"))
}

func TestTryTakeRankedGroupIgnoresDisconnectedPartners(t *testing.T) {
	q := New(KindRanked)
	a := newSession(t, "a", 100)
	b := newSession(t, "b", 100)
	q.Add(a)
	q.Add(b)
	require.NoError(t, b.Conn().Close())

	assert.Nil(t, q.TryTakeRankedGroup(2, baseTime, 5*time.Second, 50))
}

func TestSweepDisconnected(t *testing.T) {
	grace := 30 * time.Second
	q := New(KindSimple)
	s := newSession(t, "a", 100)
	q.Add(s)
	require.NoError(t, s.Conn().Close())

	// First sweep starts the grace period, nothing evicted.
	assert.Empty(t, q.SweepDisconnected(baseTime, grace))
	assert.Equal(t, 1, q.Len())

	// One second before expiry: still retained.
	assert.Empty(t, q.SweepDisconnected(baseTime.Add(grace-time.Second), grace))
	assert.Equal(t, 1, q.Len())

	// Past the grace period: evicted exactly once.
	evicted := q.SweepDisconnected(baseTime.Add(grace+time.Second), grace)
	require.Equal(t, []*model.Session{s}, evicted)
	assert.Zero(t, q.Len())
	assert.Empty(t, q.SweepDisconnected(baseTime.Add(grace+2*time.Second), grace))
}

func TestSweepClearsMarkOnReconnect(t *testing.T) {
	grace := 30 * time.Second
	q := New(KindSimple)
	s := newSession(t, "a", 100)
	q.Add(s)
	require.NoError(t, s.Conn().Close())

	q.SweepDisconnected(baseTime, grace)
	_, marked := s.DisconnectedSince()
	require.True(t, marked)

	// Rebind to a live connection, as a token reconnect would.
	replacement := newSession(t, "a2", 100)
	s.Attach(replacement.Conn())

	q.SweepDisconnected(baseTime.Add(grace*2), grace)
	_, marked = s.DisconnectedSince()
	assert.False(t, marked)
	assert.Equal(t, 1, q.Len())
}

func TestWaitReadySignalsOnAdd(t *testing.T) {
	q := New(KindSimple)

	ready := make(chan bool, 1)
	go func() {
		ready <- q.WaitReady(2, time.Minute)
	}()

	q.Add(newSession(t, "a", 100))
	q.Add(newSession(t, "b", 100))

	select {
	case ok := <-ready:
		assert.True(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitReady did not wake on enqueue")
	}
}

func TestWaitReadyReturnsFalseOnClose(t *testing.T) {
	q := New(KindSimple)

	ready := make(chan bool, 1)
	go func() {
		ready <- q.WaitReady(2, time.Minute)
	}()

	q.Close()

	select {
	case ok := <-ready:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitReady did not observe close")
	}
}

func TestSetExclusivity(t *testing.T) {
	qs := NewSet()
	s := newSession(t, "a", 100)

	require.NoError(t, qs.Enqueue(s, KindSimple))
	assert.ErrorIs(t, qs.Enqueue(s, KindRanked), model.ErrAlreadyQueued)
	assert.ErrorIs(t, qs.Enqueue(s, KindSimple), model.ErrAlreadyQueued)

	assert.True(t, qs.Member("a"))
	assert.Equal(t, 1, qs.Simple.Len())
	assert.Zero(t, qs.Ranked.Len())

	require.True(t, qs.Remove(s))
	require.NoError(t, qs.Enqueue(s, KindRanked))
	assert.Equal(t, 1, qs.Ranked.Len())
}

func TestSetFindByToken(t *testing.T) {
	qs := NewSet()
	s := newSession(t, "a", 100)
	require.NoError(t, qs.Enqueue(s, KindRanked))

	assert.Equal(t, s, qs.FindByToken("token-a"))
	assert.Nil(t, qs.FindByToken("unknown"))
}
