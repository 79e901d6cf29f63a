package notifier

import (
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Conn wraps one websocket connection. Frames are never written to the
// socket directly; they go through the buffered send channel so the write
// pump is the only goroutine touching the wire. sendMu serializes enqueues
// against the close in closeSend, since emitters run concurrently with the
// hub removing the connection.
type Conn struct {
	id     string
	userID string
	ws     *websocket.Conn
	hub    *Hub

	sendMu sync.Mutex
	send   chan []byte
	closed bool
}

func (c *Conn) ID() string     { return c.id }
func (c *Conn) UserID() string { return c.userID }

// enqueue hands a frame to the write pump without blocking. It reports false
// when the frame was dropped, either because the buffer is full or because
// the connection is already closing.
func (c *Conn) enqueue(data []byte) bool {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend shuts the send channel exactly once. After it returns no emitter
// can reach the channel, so the write pump drains and exits.
func (c *Conn) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Run drives both pumps and blocks until the peer disconnects or the write
// side fails. onClose fires exactly once, after the room membership is gone.
func (c *Conn) Run(onClose func()) {
	go c.writePump()
	c.readPump()

	c.hub.remove(c)
	if onClose != nil {
		onClose()
	}
}

// readPump drains inbound frames. The protocol is push-only, so client
// payloads are discarded; the pump exists to detect disconnects and answer
// pings.
func (c *Conn) readPump() {
	defer c.ws.Close()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.LogSocket(c.userID, fmt.Sprintf("connection %s read error: %v", c.id, err))
			}
			return
		}
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
