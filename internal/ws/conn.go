// File: internal/ws/conn.go
package ws

import (
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/carebridge/carechat/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 16 * 1024
	sendBufferSize = 64
)

// Conn is one authenticated websocket connection. The principal is fixed at
// handshake; the room set is mutated only from the connection's own read
// loop, so it needs no lock of its own.
type Conn struct {
	principal domain.Principal
	sock      *websocket.Conn
	send      chan Event
	rooms     map[string]struct{}

	done      chan struct{}
	closeOnce sync.Once
}

func newConn(principal domain.Principal, sock *websocket.Conn) *Conn {
	return &Conn{
		principal: principal,
		sock:      sock,
		send:      make(chan Event, sendBufferSize),
		rooms:     make(map[string]struct{}),
		done:      make(chan struct{}),
	}
}

// Principal returns the identity bound to this connection.
func (c *Conn) Principal() domain.Principal { return c.principal }

// Send queues an event for delivery. A slow consumer whose buffer is full
// loses the event rather than stalling the sender; durable state lives in
// the stores, not in this channel.
func (c *Conn) Send(ev Event) {
	select {
	case c.send <- ev:
	case <-c.done:
	default:
		log.Printf("[Conn] send buffer full for user %d, dropping %s event", c.principal.ID, ev.Type)
	}
}

// close makes the connection unusable; safe to call more than once.
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.sock.Close()
	})
}

// writePump serializes all writes to the socket and keeps the connection
// alive with periodic pings. Exactly one writePump runs per connection.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case ev := <-c.send:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// readEvent blocks for the next inbound envelope.
func (c *Conn) readEvent() (Event, error) {
	var ev Event
	err := c.sock.ReadJSON(&ev)
	return ev, err
}

// configureRead applies limits and the pong-based liveness deadline.
func (c *Conn) configureRead() {
	c.sock.SetReadLimit(maxMessageSize)
	_ = c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		return c.sock.SetReadDeadline(time.Now().Add(pongWait))
	})
}
