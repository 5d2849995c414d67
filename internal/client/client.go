// Package client implements the interactive terminal client: token
// replay, the authentication menu, and the contest loop.
package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"

	"github.com/skirmish-gg/skirmish/internal/model"
)

// maxMessageBytes matches the server's line limit.
const maxMessageBytes = 1024

// errQuit ends the session from inside the menu loop.
var errQuit = errors.New("user quit")

// Client drives one interactive session over an established connection.
// User I/O goes through the given reader and writer so tests can script
// it.
type Client struct {
	conn net.Conn
	cfg  *Config
	in   *bufio.Scanner
	out  io.Writer
}

// New creates a client over an open connection.
func New(conn net.Conn, cfg *Config, in io.Reader, out io.Writer) *Client {
	return &Client{
		conn: conn,
		cfg:  cfg,
		in:   bufio.NewScanner(in),
		out:  out,
	}
}

// Run drives the session until the user quits or the server goes away.
func (c *Client) Run() error {
	if err := c.connect(); err != nil {
		if errors.Is(err, errQuit) {
			return nil
		}
		return err
	}
	return c.play()
}

// connect establishes a session: replay a persisted token if one exists,
// otherwise walk the authentication menu.
func (c *Client) connect() error {
	token, err := c.cfg.LoadToken()
	if err != nil {
		return fmt.Errorf("failed to load token: %w", err)
	}

	if token != "" {
		if err := c.send(token); err != nil {
			return err
		}
		reply, err := c.read()
		if err != nil {
			return err
		}
		if !strings.Contains(reply, model.MsgInvalidToken) {
			fmt.Fprintln(c.out, reply)
			return nil
		}
		// The session behind the token is gone. Start over.
		fmt.Fprintln(c.out, "Stored token expired, please authenticate.")
		if err := c.cfg.DeleteToken(); err != nil {
			return err
		}
	}

	return c.authenticate()
}

// authenticate loops the menu until the server issues a token.
func (c *Client) authenticate() error {
	for {
		mode := c.prompt("Choose contest mode (1 = simple, 2 = ranked, 3 = quit): ")
		if mode == "3" {
			return c.quit()
		}
		if mode != "1" && mode != "2" {
			fmt.Fprintln(c.out, "Please enter 1, 2 or 3.")
			continue
		}

		choice := c.prompt("Login (1) or register (2): ")
		if choice != "1" && choice != "2" {
			fmt.Fprintln(c.out, "Please enter 1 or 2.")
			continue
		}

		user := c.prompt("Username: ")
		pass := c.prompt("Password: ")

		if err := c.send(fmt.Sprintf("%s:%s:%s/%s", mode, choice, user, pass)); err != nil {
			return err
		}
		reply, err := c.read()
		if err != nil {
			return err
		}
		if strings.Contains(reply, model.MsgLoginFailed) ||
			strings.Contains(reply, model.MsgRegisterFailed) {
			fmt.Fprintln(c.out, reply)
			continue
		}

		// The reply is the reconnect token. Keep it for next time.
		token := strings.TrimSpace(reply)
		if err := c.cfg.SaveToken(token); err != nil {
			fmt.Fprintf(c.out, "Warning: could not persist token: %v\n", err)
		}
		fmt.Fprintln(c.out, "Queued. Waiting for an opponent...")
		return nil
	}
}

// play relays contest traffic until the user quits.
func (c *Client) play() error {
	for {
		msg, err := c.read()
		if err != nil {
			return err
		}
		fmt.Fprint(c.out, msg)
		if !strings.HasSuffix(msg, "\n") {
			fmt.Fprintln(c.out)
		}

		switch {
		case strings.Contains(msg, "Found game with players:"):
			move := c.prompt("Your move: ")
			if err := c.send(move); err != nil {
				return err
			}

		case strings.Contains(msg, "Winner was:"):
			next := c.prompt("Requeue? (1 = simple, 2 = ranked, 3 = quit): ")
			if next == "3" {
				if err := c.send("3"); err != nil {
					return err
				}
				return c.cfg.DeleteToken()
			}
			if next == "1" || next == "2" {
				if err := c.send(next); err != nil {
					return err
				}
				fmt.Fprintln(c.out, "Queued. Waiting for an opponent...")
			}
		}
	}
}

func (c *Client) quit() error {
	fmt.Fprintln(c.out, "Goodbye.")
	c.conn.Close()
	if err := c.cfg.DeleteToken(); err != nil {
		return err
	}
	return errQuit
}

func (c *Client) prompt(label string) string {
	fmt.Fprint(c.out, label)
	if !c.in.Scan() {
		return "3"
	}
	return strings.TrimSpace(c.in.Text())
}

func (c *Client) send(line string) error {
	_, err := c.conn.Write([]byte(line + "\n"))
	if err != nil {
		return fmt.Errorf("failed to send: %w", err)
	}
	return nil
}

// read collects one burst of server output.
func (c *Client) read() (string, error) {
	b := make([]byte, maxMessageBytes)
	n, err := c.conn.Read(b)
	if err != nil {
		return "", fmt.Errorf("server connection lost: %w", err)
	}
	return string(b[:n]), nil
}
