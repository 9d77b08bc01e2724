// Package ws carries wire messages over gorilla/websocket. The same Conn
// wraps both the client side (via Dialer) and the server side of a channel.
package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/roach88/scorelog/internal/wire"
)

const (
	// DefaultWriteTimeout bounds a single frame write.
	DefaultWriteTimeout = 10 * time.Second

	// MaxMessageSize bounds a single inbound frame. A batch of 100 actions
	// fits comfortably.
	MaxMessageSize = 1 << 20
)

// Conn is one websocket carrying wire messages. Send is safe for concurrent
// use; Receive must be called from one goroutine.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex
}

// NewConn wraps an established websocket.
func NewConn(c *websocket.Conn, writeTimeout time.Duration) *Conn {
	if writeTimeout <= 0 {
		writeTimeout = DefaultWriteTimeout
	}
	c.SetReadLimit(MaxMessageSize)
	return &Conn{ws: c, writeTimeout: writeTimeout}
}

// Send encodes m and writes it as one text frame.
func (c *Conn) Send(ctx context.Context, m wire.Message) error {
	data, err := wire.Encode(m)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("send %s: %w", m.Kind(), err)
	}
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("send %s: %w", m.Kind(), err)
	}
	return nil
}

// Receive blocks for the next message. Cancelling ctx unblocks it. A frame
// that does not decode is returned as a *wire.ProtocolError.
func (c *Conn) Receive(ctx context.Context) (wire.Message, error) {
	stop := context.AfterFunc(ctx, func() {
		c.ws.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	mt, data, err := c.ws.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("receive: %w", err)
	}
	if mt != websocket.TextMessage {
		return nil, &wire.ProtocolError{Message: fmt.Sprintf("unexpected frame type %d", mt)}
	}
	return wire.Decode(data)
}

// Close sends a close frame and closes the socket.
func (c *Conn) Close() error {
	c.writeMu.Lock()
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.ws.Close()
}

// IsClosed reports whether err means the peer closed the channel normally.
func IsClosed(err error) bool {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway
	}
	return false
}
