package transport

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// pingInterval keeps NAT/proxy connections alive between task dispatches.
const pingInterval = 30 * time.Second

// Channel is one authenticated, bidirectional message connection between a
// Manager and a RemoteWorker. Reads are serialized by the caller's loop;
// writes are safe for concurrent use.
type Channel struct {
	conn *websocket.Conn

	writeMu sync.Mutex
	closeMu sync.Mutex
	closed  bool

	stopPing chan struct{}
}

// NewChannel wraps an established websocket connection.
func NewChannel(conn *websocket.Conn) *Channel {
	c := &Channel{conn: conn, stopPing: make(chan struct{})}
	go c.keepAlive()
	return c
}

// Send writes one Message, encoded as JSON.
func (c *Channel) Send(msg Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(msg)
}

// Receive blocks for the next Message. A connection breakage is reported
// as an error; callers must translate that into a spontaneous SHUTDOWN
// per spec §4.7.
func (c *Channel) Receive() (Message, error) {
	var msg Message
	err := c.conn.ReadJSON(&msg)
	if err != nil {
		return Message{}, fmt.Errorf("transport: receive: %w", err)
	}
	return msg, nil
}

// Close shuts down the underlying connection. Safe to call more than once.
func (c *Channel) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.stopPing)
	return c.conn.Close()
}

func (c *Channel) keepAlive() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopPing:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
