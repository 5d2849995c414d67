package model

import (
	"fmt"
	"strings"
)

// Literal wire replies. Clients match on these strings exactly, so they
// must never change shape.
const (
	MsgReconnected    = "Reconnected, back in queue."
	MsgInvalidToken   = "Invalid token"
	MsgLoginFailed    = "Failed to login, re-input your credentials."
	MsgRegisterFailed = "Failed to register, re-input your credentials."

	// Distinct replies for inputs the legacy protocol folded into
	// "Invalid token" or silently dropped.
	MsgNoSession    = "No session for this connection"
	MsgUnrecognized = "Unrecognized input"
)

// GreetingMessage builds the roster announcement broadcast when a contest
// starts. The embedded newlines are part of the protocol.
func GreetingMessage(roster []*Session) string {
	names := make([]string, len(roster))
	for i, s := range roster {
		names[i] = s.Name
	}
	return "Found game with players: \n" + strings.Join(names, "\n") + "\n"
}

// WinnerMessage builds the result announcement.
func WinnerMessage(winner *Session) string {
	return fmt.Sprintf("Winner was: %s!", winner.Name)
}
