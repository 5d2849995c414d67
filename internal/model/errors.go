package model

import (
	"errors"

	"github.com/skirmish-gg/skirmish/internal/wire"
)

// Common errors used across the application
var (
	// Authentication errors
	ErrLoginFailed      = errors.New("login failed")
	ErrRegisterFailed   = errors.New("register failed")
	ErrUserNotFound     = errors.New("user not found")
	ErrUsernameExists   = errors.New("username already exists")
	ErrSessionLive      = errors.New("session already live for this user")
	ErrInvalidToken     = errors.New("invalid reconnect token")
	ErrNoSession        = errors.New("no session for this connection")
	ErrMalformedCommand = errors.New("malformed command")

	// Queue errors
	ErrAlreadyQueued = errors.New("session is already queued")

	// Connection errors. The sentinel lives in wire so the low-level
	// connection type does not depend on this package.
	ErrConnClosed = wire.ErrClosed

	// Contest errors
	ErrInputTimeout = errors.New("timed out waiting for player input")
	ErrNoWinner     = errors.New("contest has no winner")
)
