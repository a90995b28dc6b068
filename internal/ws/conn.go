package ws

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrConnClosed is returned when writing to a connection that is no longer
// connected.  Handlers may return it (wrapped or not) to signal a normal
// disconnect; the registry does not report it as a failure.
var ErrConnClosed = errors.New("ws: connection closed")

// Transport is the subset of *websocket.Conn used by Conn.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// State is the lifecycle state of a connection.
type State int32

const (
	StateConnecting State = iota
	StateConnected
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Conn wraps a transport with a lifecycle state and serialized writes.  A
// Conn is read by exactly one goroutine (its protocol loop) and may be
// written from any goroutine.
type Conn struct {
	id           string
	t            Transport
	writeTimeout time.Duration
	state        atomic.Int32
	writeMu      sync.Mutex
	closeOnce    sync.Once
}

// NewConn wraps a transport whose handshake has completed.
func NewConn(t Transport, writeTimeout time.Duration) *Conn {
	c := &Conn{id: uuid.NewString(), t: t, writeTimeout: writeTimeout}
	c.state.Store(int32(StateConnected))
	return c
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) State() State { return State(c.state.Load()) }

// Connected reports whether both directions are still usable.
func (c *Conn) Connected() bool { return c.State() == StateConnected }

// Send writes env as a single text frame.  It returns ErrConnClosed when the
// connection is not connected; a failed write marks it disconnected.
func (c *Conn) Send(env Envelope) error {
	if !c.Connected() {
		return ErrConnClosed
	}
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if !c.Connected() {
		return ErrConnClosed
	}
	if c.writeTimeout > 0 {
		_ = c.t.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	if err := c.t.WriteMessage(websocket.TextMessage, data); err != nil {
		c.state.Store(int32(StateDisconnected))
		return err
	}
	return nil
}

// Read blocks for the next data frame.  Any read error leaves the
// connection disconnected.
func (c *Conn) Read() ([]byte, error) {
	_, data, err := c.t.ReadMessage()
	if err != nil {
		c.state.Store(int32(StateDisconnected))
		return nil, err
	}
	return data, nil
}

// Close sends a close frame with code (when still connected) and closes the
// transport.  It is safe to call more than once and from any goroutine.
func (c *Conn) Close(code int, text string) error {
	var err error
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		if c.Connected() {
			msg := websocket.FormatCloseMessage(code, text)
			_ = c.t.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		}
		c.state.Store(int32(StateDisconnected))
		c.writeMu.Unlock()
		err = c.t.Close()
	})
	return err
}
