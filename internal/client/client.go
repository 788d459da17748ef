// Package client connects to a running intake server and submits
// events for adjudication. Used by the `procwatch send` debug command
// and by event sources written in Go.
package client

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/procwatch/procwatch/internal/model"
	"github.com/procwatch/procwatch/internal/server"
)

// Client holds one WebSocket connection to the intake endpoint.
// Send may be called concurrently; replies arrive out of order and are
// correlated by message ID.
type Client struct {
	conn   *websocket.Conn
	nextID atomic.Int64

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[int64]chan server.VerdictMessage
	readErr error
	closed  bool
}

// Dial connects to the intake server at addr (host:port).
func Dial(ctx context.Context, addr string) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/events"}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", u.String(), err)
	}

	c := &Client{
		conn:    conn,
		pending: make(map[int64]chan server.VerdictMessage),
	}
	go c.readLoop()
	return c, nil
}

// Send submits one event and blocks until its verdict arrives or ctx is
// done. Fail closed: any transport failure reports a deny.
func (c *Client) Send(ctx context.Context, ev model.Event) (bool, string, error) {
	id := c.nextID.Add(1)
	ch := make(chan server.VerdictMessage, 1)

	c.mu.Lock()
	if c.readErr != nil {
		err := c.readErr
		c.mu.Unlock()
		return false, "intake connection lost", err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(server.EventMessage{ID: id, Event: ev})
	c.writeMu.Unlock()
	if err != nil {
		return false, "intake write failed", fmt.Errorf("client: send event: %w", err)
	}

	select {
	case <-ctx.Done():
		return false, "verdict wait cancelled", ctx.Err()
	case v, ok := <-ch:
		if !ok {
			return false, "intake connection lost", c.readError()
		}
		return v.Allow, v.Reason, nil
	}
}

// Close tears down the connection. In-flight Sends report deny.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.conn.Close()
}

func (c *Client) readLoop() {
	for {
		var v server.VerdictMessage
		if err := c.conn.ReadJSON(&v); err != nil {
			c.mu.Lock()
			c.readErr = fmt.Errorf("client: read verdict: %w", err)
			for _, ch := range c.pending {
				close(ch)
			}
			c.pending = make(map[int64]chan server.VerdictMessage)
			c.mu.Unlock()
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[v.ID]
		c.mu.Unlock()
		if ok {
			ch <- v
		}
	}
}

func (c *Client) readError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	return c.readErr
}
