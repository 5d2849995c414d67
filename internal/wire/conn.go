package wire

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ErrClosed reports a write against a connection that has already been
// closed. model re-exports it as ErrConnClosed.
var ErrClosed = errors.New("connection closed")

// MaxLineBytes bounds a single client message. Longer lines close the
// offending connection; they never affect other peers.
const MaxLineBytes = 1024

// ConnID uniquely identifies a connection for the registry's
// connection -> session lookup. IDs are never reused within a process.
type ConnID uint64

// Conn is a single client connection with line framing toward the server
// and raw writes toward the client. The reactor owns its lifecycle; a
// session holds a non-owning reference that may be repointed on reconnect.
type Conn struct {
	id ConnID
	nc net.Conn
	br *bufio.Reader

	closed atomic.Bool

	writeMu sync.Mutex

	// routeMu guards the contest inbox. While a contest owns this
	// connection, incoming lines go to the inbox instead of the reactor's
	// dispatcher. Only the reactor flips the route.
	routeMu sync.Mutex
	inbox   chan<- string
}

// NewConn wraps an accepted socket.
func NewConn(id ConnID, nc net.Conn) *Conn {
	return &Conn{
		id: id,
		nc: nc,
		br: bufio.NewReaderSize(nc, MaxLineBytes),
	}
}

// ID returns the connection's identifier.
func (c *Conn) ID() ConnID {
	return c.id
}

// RemoteAddr returns the peer address for logging.
func (c *Conn) RemoteAddr() string {
	if addr := c.nc.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return "unknown"
}

// ReadLine reads one newline-terminated message of at most MaxLineBytes.
// It blocks until a full line, EOF, or a transport error.
func (c *Conn) ReadLine() (string, error) {
	raw, err := c.br.ReadSlice('\n')
	if err != nil {
		if errors.Is(err, bufio.ErrBufferFull) {
			return "", fmt.Errorf("line exceeds %d bytes: %w", MaxLineBytes, err)
		}
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

// writeTimeout bounds a single write so a peer that stops reading cannot
// stall the goroutine replying to it.
const writeTimeout = 10 * time.Second

// WriteString writes a message to the peer as-is. Server replies are not
// line-framed; the greeting contains embedded newlines by protocol.
func (c *Conn) WriteString(msg string) error {
	if c.closed.Load() {
		return ErrClosed
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.nc.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := c.nc.Write([]byte(msg))
	return err
}

// Close marks the connection closed and releases the socket. Safe to call
// more than once.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.nc.Close()
}

// Connected reports whether the connection is still usable.
func (c *Conn) Connected() bool {
	return !c.closed.Load()
}

// SetInbox detaches line delivery to a contest mailbox (non-nil inbox) or
// restores delivery to the reactor's dispatcher (nil inbox).
func (c *Conn) SetInbox(inbox chan<- string) {
	c.routeMu.Lock()
	c.inbox = inbox
	c.routeMu.Unlock()
}

// Inbox returns the current contest mailbox, or nil when the dispatcher
// owns incoming lines.
func (c *Conn) Inbox() chan<- string {
	c.routeMu.Lock()
	defer c.routeMu.Unlock()
	return c.inbox
}
