package bridge

import (
	"encoding/json"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vonxq/lan-bridge/internal/models"
	"github.com/vonxq/lan-bridge/internal/services"
)

const historyLimit = 50

// Hub is the connection router. It owns the connection table, the shared
// scratch text, and every delivery decision. Delivery is one of three shapes:
// broadcast to all, targeted to one user plus every console, or a unicast
// reply to the sender. A client is never targeted without the consoles also
// seeing the event; the console is the supervisory view of all conversations.
type Hub struct {
	registry  *Registry
	chat      *services.ChatService
	files     *services.FileService
	clipboard *services.ClipboardService
	tokens    *services.TokenService

	upgrader websocket.Upgrader

	mu     sync.RWMutex
	conns  map[string]*connection // connID -> connection
	byUser map[string]string      // userID -> connID

	textMu      sync.Mutex
	currentText string

	startedAt time.Time
}

// NewHub wires the router to its collaborators.
func NewHub(registry *Registry, chat *services.ChatService, files *services.FileService, clipboard *services.ClipboardService, tokens *services.TokenService) *Hub {
	return &Hub{
		registry:  registry,
		chat:      chat,
		files:     files,
		clipboard: clipboard,
		tokens:    tokens,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Phones reach this server by LAN IP, so the Origin header
			// never matches the Host; token auth is the gate instead.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns:     make(map[string]*connection),
		byUser:    make(map[string]string),
		startedAt: time.Now(),
	}
}

// HandleWS upgrades and classifies an inbound connection. Classification and
// authentication happen before any message is read or any state is created;
// a connection that fails is closed with its distinguishing code.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	loopback := isLoopback(r.RemoteAddr)

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("bridge: websocket upgrade failed: %v", err)
		return
	}

	c := &connection{
		id:   uuid.NewString(),
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		hub:  h,
	}

	switch {
	case q.Get("server_token") != "":
		if !loopback || !h.tokens.ValidateServerToken(q.Get("server_token")) {
			c.closeWith(CloseUnauthorized, "unauthorized")
			return
		}
		c.role = RoleConsole

	case q.Get("local") == "true":
		// Trusted solely because only a co-resident process reaches loopback.
		if !loopback {
			c.closeWith(CloseUnauthorized, "unauthorized")
			return
		}
		c.role = RoleLocal

	case q.Get("token") != "":
		if !h.tokens.ValidateToken(q.Get("token")) {
			c.closeWith(CloseUnauthorized, "unauthorized")
			return
		}
		user, err := h.registry.Admit(q.Get("token"), q.Get("device_id"))
		if err != nil {
			c.closeWith(CloseMaxConnections, "max connections reached")
			return
		}
		c.role = RoleClient
		c.userID = user.ID

	default:
		c.closeWith(CloseUnauthorized, "unauthorized")
		return
	}

	h.register(c)
	go c.writePump()
	go c.readPump()

	switch c.role {
	case RoleClient:
		h.welcome(c)
	case RoleConsole:
		// The console starts from the current state of the bridge.
		c.sendEvent(map[string]interface{}{
			"type":  models.EventUserList,
			"users": h.registry.OnlineUsers(),
		})
		c.sendEvent(map[string]interface{}{
			"type":     models.EventChatHistory,
			"messages": h.chat.Recent(historyLimit),
		})
	}
}

// register adds the connection to the table. A second socket for an already
// connected user supersedes the first, which is explicitly closed.
func (h *Hub) register(c *connection) {
	var superseded *connection

	h.mu.Lock()
	if c.role == RoleClient {
		if oldID, ok := h.byUser[c.userID]; ok {
			superseded = h.conns[oldID]
			delete(h.conns, oldID)
		}
		h.byUser[c.userID] = c.id
	}
	h.conns[c.id] = c
	h.mu.Unlock()

	if superseded != nil {
		log.Printf("bridge: superseding connection %s for user %s", superseded.id, c.userID)
		superseded.closeWith(CloseSuperseded, "superseded by a newer connection")
	}
	log.Printf("bridge: connection %s registered (%s)", c.id, c.role)
}

// unregister removes the connection and, when it was the user's current one,
// releases the registry slot and announces the departure. Safe against races
// with in-flight handlers and double closes.
func (h *Hub) unregister(c *connection) {
	h.mu.Lock()
	if _, ok := h.conns[c.id]; !ok {
		// Already superseded or unregistered.
		h.mu.Unlock()
		return
	}
	delete(h.conns, c.id)
	wasCurrent := c.role == RoleClient && h.byUser[c.userID] == c.id
	if wasCurrent {
		delete(h.byUser, c.userID)
	}
	h.mu.Unlock()

	log.Printf("bridge: connection %s closed (%s)", c.id, c.role)
	if !wasCurrent {
		// Console and local disconnects are silent; superseded client
		// sockets were already replaced.
		return
	}
	if u := h.registry.Release(c.userID); u != nil {
		h.Broadcast(map[string]interface{}{
			"type": models.EventUserLeft,
			"user": u.Public(),
		})
		h.BroadcastUserList()
	}
}

// welcome runs the admission sequence for a new client: private identity,
// private history, then the join announced to everyone else.
func (h *Hub) welcome(c *connection) {
	user, ok := h.registry.Get(c.userID)
	if !ok {
		return
	}
	c.sendEvent(map[string]interface{}{
		"type": models.EventUserIdentity,
		"user": user.Public(),
	})
	c.sendEvent(map[string]interface{}{
		"type":     models.EventChatHistory,
		"messages": h.chat.Recent(historyLimit),
	})
	h.broadcastExcept(c.id, map[string]interface{}{
		"type": models.EventUserJoined,
		"user": user.Public(),
	})
	h.BroadcastUserList()
}

// Broadcast fans an event out to every live connection, fire-and-forget.
func (h *Hub) Broadcast(event map[string]interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("bridge: failed to marshal %v event: %v", event["type"], err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.conns {
		c.enqueue(data)
	}
}

func (h *Hub) broadcastExcept(exceptID string, event map[string]interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("bridge: failed to marshal %v event: %v", event["type"], err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for id, c := range h.conns {
		if id != exceptID {
			c.enqueue(data)
		}
	}
}

// BroadcastUserList pushes the refreshed online-user list to everyone.
func (h *Hub) BroadcastUserList() {
	h.Broadcast(map[string]interface{}{
		"type":  models.EventUserList,
		"users": h.registry.OnlineUsers(),
	})
}

// deliverToSenderAndConsoles implements the targeted delivery shape: the
// originating connection plus every console, and nothing else.
func (h *Hub) deliverToSenderAndConsoles(sender *connection, event map[string]interface{}) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Printf("bridge: failed to marshal %v event: %v", event["type"], err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	sender.enqueue(data)
	for id, c := range h.conns {
		if c.role == RoleConsole && id != sender.id {
			c.enqueue(data)
		}
	}
}

// Kick force-disconnects a user: close with the kicked code, mark offline
// immediately, announce. Marking offline here and in the disconnect handler
// is idempotent, whichever fires first.
func (h *Hub) Kick(userID string) bool {
	h.mu.RLock()
	var target *connection
	if connID, ok := h.byUser[userID]; ok {
		target = h.conns[connID]
	}
	h.mu.RUnlock()

	released := h.registry.Release(userID)
	if target == nil && released == nil {
		return false
	}
	if target != nil {
		target.closeWith(CloseKicked, "kicked by operator")
	}
	h.Broadcast(map[string]interface{}{
		"type":    models.EventUserKicked,
		"user_id": userID,
	})
	h.BroadcastUserList()
	return true
}

// CurrentText returns the shared scratch text buffer.
func (h *Hub) CurrentText() string {
	h.textMu.Lock()
	defer h.textMu.Unlock()
	return h.currentText
}

// SetText overwrites the shared scratch text buffer. Last writer wins; the
// bridge deliberately has no per-client isolation.
func (h *Hub) SetText(text string) {
	h.textMu.Lock()
	h.currentText = text
	h.textMu.Unlock()
}

// MaxConnections returns the current admission limit.
func (h *Hub) MaxConnections() int {
	return h.registry.MaxConnections()
}

// SetMaxConnections updates the admission limit, returning the applied value.
func (h *Hub) SetMaxConnections(n int) int {
	return h.registry.SetMaxConnections(n)
}

// ClientCount returns the number of live ordinary client connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byUser)
}

// Uptime reports how long the hub has been running.
func (h *Hub) Uptime() time.Duration {
	return time.Since(h.startedAt)
}

// CloseAll closes every live socket, used during shutdown.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	conns := make([]*connection, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		c.closeWith(websocket.CloseGoingAway, "server shutting down")
	}
}

func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
