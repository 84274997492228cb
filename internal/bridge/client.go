package bridge

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Connection roles, fixed at upgrade time.
type Role string

const (
	RoleClient  Role = "client"  // ordinary token-authenticated device
	RoleConsole Role = "console" // privileged loopback supervisory view
	RoleLocal   Role = "local"   // trusted loopback tool (ai_reply injection)
)

// Application close codes. Clients key specific UI messages off these.
const (
	CloseUnauthorized   = 4001
	CloseKicked         = 4002
	CloseMaxConnections = 4003
	CloseSuperseded     = 4004
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 64
)

// connection binds a live socket to a role and, for clients, a user id. The
// socket handle stays here; it is never stored inside the User record.
type connection struct {
	id     string
	role   Role
	userID string // empty unless role == RoleClient
	ws     *websocket.Conn
	send   chan []byte
	hub    *Hub

	closeOnce sync.Once
}

// enqueue queues an encoded event without blocking. A peer whose buffer is
// full is dropped rather than stalling delivery to everyone else.
func (c *connection) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		log.Printf("bridge: dropping slow connection %s (%s)", c.id, c.role)
		c.closeWith(websocket.CloseGoingAway, "send buffer full")
	}
}

// sendEvent marshals and queues one event for this connection.
func (c *connection) sendEvent(event map[string]interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("bridge: failed to marshal %v event: %v", event["type"], err)
		return
	}
	c.enqueue(data)
}

// closeWith sends a close frame with the given code and tears the socket
// down. Safe to call more than once and concurrently with the pumps.
func (c *connection) closeWith(code int, reason string) {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(writeWait)
		msg := websocket.FormatCloseMessage(code, reason)
		if err := c.ws.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
			log.Printf("bridge: close frame for %s failed: %v", c.id, err)
		}
		c.ws.Close()
	})
}

// readPump reads inbound messages and hands them to the hub dispatcher. It
// owns unregistration: when the read loop ends for any reason the connection
// is released exactly once.
func (c *connection) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.ws.Close()
	}()

	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("bridge: read error on %s: %v", c.id, err)
			}
			return
		}
		c.hub.dispatch(c, data)
	}
}

// writePump drains the send channel and keeps the socket alive with pings.
func (c *connection) writePump() {
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
