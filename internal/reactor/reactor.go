// Package reactor owns every client connection. One goroutine accepts,
// one goroutine per connection frames lines, and a single loop applies
// every structural change to the connection set. Other components never
// touch that set directly; they send commands to the loop instead.
package reactor

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/skirmish-gg/skirmish/internal/model"
	"github.com/skirmish-gg/skirmish/internal/wire"
)

// Dispatcher interprets protocol lines. HandleLine runs on the reactor's
// own goroutine, so implementations must not issue reactor commands from
// inside it.
type Dispatcher interface {
	HandleLine(conn *wire.Conn, line string)
}

type eventKind int

const (
	evAccepted eventKind = iota
	evLine
	evClosed
)

type event struct {
	kind eventKind
	conn *wire.Conn
	line string
}

type command struct {
	apply func()
	done  chan struct{}
}

// Reactor multiplexes all client connections onto one control loop.
type Reactor struct {
	logger     *slog.Logger
	dispatcher Dispatcher

	events   chan event
	commands chan command

	nextID atomic.Uint64

	// conns is owned exclusively by the Run goroutine.
	conns map[wire.ConnID]*wire.Conn
}

// New creates a reactor delivering protocol lines to the dispatcher.
func New(dispatcher Dispatcher, logger *slog.Logger) *Reactor {
	return &Reactor{
		logger:     logger.With(slog.String("component", "reactor")),
		dispatcher: dispatcher,
		events:     make(chan event, 64),
		commands:   make(chan command),
		conns:      make(map[wire.ConnID]*wire.Conn),
	}
}

// Run accepts connections from the listener and processes events until the
// context is cancelled or the listener is closed.
func (r *Reactor) Run(ctx context.Context, ln net.Listener) {
	go r.acceptLoop(ctx, ln)

	for {
		select {
		case <-ctx.Done():
			for _, conn := range r.conns {
				_ = conn.Close()
			}
			return
		case ev := <-r.events:
			r.handleEvent(ev)
		case cmd := <-r.commands:
			cmd.apply()
			close(cmd.done)
		}
	}
}

func (r *Reactor) handleEvent(ev event) {
	switch ev.kind {
	case evAccepted:
		r.conns[ev.conn.ID()] = ev.conn
		r.logger.Info("client connected", slog.String("addr", ev.conn.RemoteAddr()))
	case evLine:
		r.dispatcher.HandleLine(ev.conn, ev.line)
	case evClosed:
		// The connection stays registered until the reaper prunes it;
		// sessions referencing it need to observe the closed state first.
		r.logger.Info("client connection closed", slog.String("addr", ev.conn.RemoteAddr()))
	}
}

func (r *Reactor) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			r.logger.Warn("accept failed", slog.String("error", err.Error()))
			continue
		}

		conn := wire.NewConn(wire.ConnID(r.nextID.Add(1)), nc)
		select {
		case r.events <- event{kind: evAccepted, conn: conn}:
		case <-ctx.Done():
			_ = conn.Close()
			return
		}
		go r.readLoop(ctx, conn)
	}
}

// readLoop frames one connection's lines. A read failure closes only this
// connection; the reactor loop itself never stops because of a peer.
func (r *Reactor) readLoop(ctx context.Context, conn *wire.Conn) {
	for {
		line, err := conn.ReadLine()
		if err != nil {
			_ = conn.Close()
			select {
			case r.events <- event{kind: evClosed, conn: conn}:
			case <-ctx.Done():
			}
			return
		}

		if inbox := conn.Inbox(); inbox != nil {
			// A contest owns this connection; lines bypass the
			// dispatcher entirely.
			select {
			case inbox <- line:
			default:
				r.logger.Warn("contest inbox full, dropping line",
					slog.String("addr", conn.RemoteAddr()))
			}
			continue
		}

		select {
		case r.events <- event{kind: evLine, conn: conn, line: line}:
		case <-ctx.Done():
			return
		}
	}
}

// execute runs fn on the reactor goroutine and waits for it.
func (r *Reactor) execute(ctx context.Context, fn func()) error {
	cmd := command{apply: fn, done: make(chan struct{})}
	select {
	case r.commands <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-cmd.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Detach hands exclusive line delivery for the connection to the given
// contest mailbox. The dispatcher stops seeing this connection's lines
// until Reattach.
func (r *Reactor) Detach(ctx context.Context, conn *wire.Conn, inbox chan<- string) error {
	return r.execute(ctx, func() {
		conn.SetInbox(inbox)
	})
}

// Reattach restores dispatcher delivery for the connection after a
// contest. Fails when the connection has closed in the meantime.
func (r *Reactor) Reattach(ctx context.Context, conn *wire.Conn) error {
	var err error
	execErr := r.execute(ctx, func() {
		conn.SetInbox(nil)
		if !conn.Connected() {
			err = model.ErrConnClosed
		}
	})
	if execErr != nil {
		return execErr
	}
	return err
}

// PruneClosed removes closed connections from the tracked set, returning
// how many were dropped. Called by the reaper on its interval.
func (r *Reactor) PruneClosed(ctx context.Context) (int, error) {
	var pruned int
	err := r.execute(ctx, func() {
		for id, conn := range r.conns {
			if !conn.Connected() {
				delete(r.conns, id)
				pruned++
			}
		}
	})
	return pruned, err
}

// ConnCount returns the number of tracked connections.
func (r *Reactor) ConnCount(ctx context.Context) (int, error) {
	var n int
	err := r.execute(ctx, func() { n = len(r.conns) })
	return n, err
}
