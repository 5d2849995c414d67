package server

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/skirmish-gg/skirmish/internal/model"
	"github.com/skirmish-gg/skirmish/internal/queue"
	"github.com/skirmish-gg/skirmish/internal/session"
	"github.com/skirmish-gg/skirmish/internal/wire"
)

// Dispatcher interprets protocol lines from connections the reactor still
// owns. It runs on the reactor goroutine, so it only touches the registry
// and queues, never the reactor's own command channel.
//
// Line forms, checked in order:
//
//	<token>                          reconnect to a live session
//	<mode>:<choice>:<user>/<pass>    authenticate (1 simple, 2 ranked, 3 quit)
//	1 | 2 | 3                        requeue or quit for a live session
type Dispatcher struct {
	registry *session.Registry
	queues   *queue.Set
	logger   *slog.Logger
}

// NewDispatcher creates a protocol dispatcher over the registry and queues.
func NewDispatcher(registry *session.Registry, queues *queue.Set, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		queues:   queues,
		logger:   logger.With(slog.String("component", "dispatcher")),
	}
}

// HandleLine dispatches one decoded line.
func (d *Dispatcher) HandleLine(conn *wire.Conn, line string) {
	if line == "" {
		return
	}

	// A line matching a live token always means reconnect. Tokens are
	// UUIDs, so they can never collide with the other forms.
	if sess, ok := d.registry.Reconnect(line, conn); ok {
		d.logger.Info("player reconnected",
			slog.String("player", sess.Name),
			slog.Uint64("conn", uint64(conn.ID())))
		d.reply(conn, model.MsgReconnected)
		return
	}

	if strings.Contains(line, ":") {
		d.handleAuth(conn, line)
		return
	}

	sess, live := d.registry.ByConn(conn.ID())

	switch line {
	case "1", "2":
		if !live {
			d.reply(conn, model.MsgNoSession)
			return
		}
		d.enqueue(sess, choiceKind(line))
	case "3":
		if !live {
			d.reply(conn, model.MsgNoSession)
			return
		}
		d.quit(sess, conn)
	default:
		// Not a token, not a command. The reply depends on whether the
		// connection could plausibly have been trying to reconnect.
		if !live {
			d.reply(conn, model.MsgInvalidToken)
			return
		}
		d.reply(conn, model.MsgUnrecognized)
	}
}

// handleAuth parses <mode>:<choice>:<user>/<pass>.
func (d *Dispatcher) handleAuth(conn *wire.Conn, line string) {
	parts := strings.SplitN(line, ":", 3)
	if len(parts) != 3 {
		d.malformed(conn)
		return
	}
	mode, choice := parts[0], parts[1]

	if mode == "3" {
		if sess, live := d.registry.ByConn(conn.ID()); live {
			d.quit(sess, conn)
			return
		}
		conn.Close()
		return
	}
	if mode != "1" && mode != "2" {
		d.malformed(conn)
		return
	}

	creds := strings.SplitN(parts[2], "/", 2)
	if len(creds) != 2 {
		d.malformed(conn)
		return
	}
	name, password := creds[0], creds[1]

	ctx := context.Background()
	var (
		sess *model.Session
		err  error
	)
	switch choice {
	case "1":
		sess, err = d.registry.Login(ctx, name, password, conn)
		if err != nil {
			d.logger.Info("login rejected",
				slog.String("player", name),
				slog.String("error", err.Error()))
			d.reply(conn, model.MsgLoginFailed)
			return
		}
	case "2":
		sess, err = d.registry.Register(ctx, name, password, conn)
		if err != nil {
			d.logger.Info("registration rejected",
				slog.String("player", name),
				slog.String("error", err.Error()))
			d.reply(conn, model.MsgRegisterFailed)
			return
		}
	default:
		d.malformed(conn)
		return
	}

	// The client must persist the token for reconnects.
	d.reply(conn, sess.Token)
	d.enqueue(sess, choiceKind(mode))
}

func (d *Dispatcher) enqueue(sess *model.Session, kind queue.Kind) {
	if err := d.queues.Enqueue(sess, kind); err != nil {
		if errors.Is(err, model.ErrAlreadyQueued) {
			d.logger.Info("player already queued", slog.String("player", sess.Name))
			return
		}
		d.logger.Warn("enqueue failed",
			slog.String("player", sess.Name),
			slog.String("error", err.Error()))
		return
	}
	d.logger.Info("player queued",
		slog.String("player", sess.Name),
		slog.String("queue", string(kind)))
}

// quit terminates the session immediately. No grace period: this is the
// one path where the player asked to leave.
func (d *Dispatcher) quit(sess *model.Session, conn *wire.Conn) {
	d.logger.Info("player quit", slog.String("player", sess.Name))
	d.queues.Remove(sess)
	d.registry.Remove(sess.Name)
	conn.Close()
}

func (d *Dispatcher) malformed(conn *wire.Conn) {
	if _, live := d.registry.ByConn(conn.ID()); live {
		d.reply(conn, model.MsgUnrecognized)
		return
	}
	d.reply(conn, model.MsgInvalidToken)
}

// reply writes on the calling (reactor) goroutine, so a peer that stops
// reading can hold up dispatch for at most one write deadline.
func (d *Dispatcher) reply(conn *wire.Conn, msg string) {
	if err := conn.WriteString(msg); err != nil {
		d.logger.Warn("failed to write reply",
			slog.Uint64("conn", uint64(conn.ID())),
			slog.String("error", err.Error()))
	}
}

func choiceKind(s string) queue.Kind {
	if s == "2" {
		return queue.KindRanked
	}
	return queue.KindSimple
}
