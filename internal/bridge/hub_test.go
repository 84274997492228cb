package bridge

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vonxq/lan-bridge/internal/models"
	"github.com/vonxq/lan-bridge/internal/services"
	"github.com/vonxq/lan-bridge/internal/storage"
)

const eventWait = 2 * time.Second

type testBridge struct {
	hub      *Hub
	registry *Registry
	tokens   *services.TokenService
	chat     *services.ChatService
	server   *httptest.Server
}

func newTestBridge(t *testing.T) *testBridge {
	t.Helper()

	dir := t.TempDir()
	if err := storage.EnsureLayout(dir); err != nil {
		t.Fatalf("EnsureLayout() failed: %v", err)
	}

	tokens := services.NewTokenService()
	chat := services.NewChatService(dir)
	files := services.NewFileService(storage.UploadsDir(dir))
	clipboard := services.NewClipboardService()
	registry := NewRegistry(dir)
	hub := NewHub(registry, chat, files, clipboard, tokens)

	m := http.NewServeMux()
	m.HandleFunc("/ws", hub.HandleWS)
	server := httptest.NewServer(m)
	t.Cleanup(server.Close)

	return &testBridge{
		hub:      hub,
		registry: registry,
		tokens:   tokens,
		chat:     chat,
		server:   server,
	}
}

func (tb *testBridge) wsURL(query string) string {
	return "ws" + strings.TrimPrefix(tb.server.URL, "http") + "/ws?" + query
}

func (tb *testBridge) dial(t *testing.T, query string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(tb.wsURL(query), nil)
	if err != nil {
		t.Fatalf("dial %q failed: %v", query, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (tb *testBridge) dialClient(t *testing.T, deviceID string) *websocket.Conn {
	t.Helper()
	query := "token=" + tb.tokens.SessionToken()
	if deviceID != "" {
		query += "&device_id=" + deviceID
	}
	return tb.dial(t, query)
}

func (tb *testBridge) dialConsole(t *testing.T) *websocket.Conn {
	t.Helper()
	token, err := tb.tokens.IssueConsoleToken()
	if err != nil {
		t.Fatalf("IssueConsoleToken() failed: %v", err)
	}
	return tb.dial(t, "server_token="+token)
}

// readEvent reads the next event within the deadline.
func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(eventWait))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var event map[string]interface{}
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("unmarshal %q failed: %v", data, err)
	}
	return event
}

// waitForEvent skips events until one of the wanted type arrives.
func waitForEvent(t *testing.T, conn *websocket.Conn, eventType string) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(eventWait)
	for time.Now().Before(deadline) {
		event := readEvent(t, conn)
		if event["type"] == eventType {
			return event
		}
	}
	t.Fatalf("no %q event within %v", eventType, eventWait)
	return nil
}

// expectNoEvent asserts that no event of the given type arrives shortly.
func expectNoEvent(t *testing.T, conn *websocket.Conn, eventType string) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(400 * time.Millisecond))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return // timeout or close, nothing forbidden seen
		}
		var event map[string]interface{}
		if json.Unmarshal(data, &event) == nil && event["type"] == eventType {
			t.Fatalf("unexpected %q event: %s", eventType, data)
		}
	}
}

// expectClose asserts the connection is closed with the given code.
func expectClose(t *testing.T, conn *websocket.Conn, code int) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(eventWait))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue // drain pending events
		}
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			if closeErr.Code != code {
				t.Fatalf("close code = %d, want %d", closeErr.Code, code)
			}
			return
		}
		t.Fatalf("connection ended without close frame: %v", err)
	}
}

func userChatMessage(userID, content string) models.ChatMessage {
	return models.ChatMessage{
		Role:        models.RoleUser,
		UserID:      userID,
		Content:     content,
		MessageType: models.MessageTypeText,
	}
}

func TestClientWelcomeSequence(t *testing.T) {
	tb := newTestBridge(t)
	conn := tb.dialClient(t, "d1")

	identity := readEvent(t, conn)
	if identity["type"] != "user_identity" {
		t.Fatalf("first event = %v, want user_identity", identity["type"])
	}
	user := identity["user"].(map[string]interface{})
	if user["id"] != "device_d1" {
		t.Errorf("user id = %v, want device_d1", user["id"])
	}
	if user["name"] == "" || user["avatar"] == "" {
		t.Error("welcome identity must carry name and avatar")
	}

	history := readEvent(t, conn)
	if history["type"] != "chat_history" {
		t.Errorf("second event = %v, want chat_history", history["type"])
	}

	list := waitForEvent(t, conn, "user_list")
	users := list["users"].([]interface{})
	if len(users) != 1 {
		t.Errorf("user_list has %d entries, want 1", len(users))
	}
}

func TestUnauthorizedRejected(t *testing.T) {
	tb := newTestBridge(t)

	expectClose(t, tb.dial(t, ""), CloseUnauthorized)
	expectClose(t, tb.dial(t, "token=bogus"), CloseUnauthorized)
	expectClose(t, tb.dial(t, "server_token=bogus"), CloseUnauthorized)
}

func TestMaxConnectionsRefused(t *testing.T) {
	tb := newTestBridge(t)
	tb.registry.SetMaxConnections(1)

	a := tb.dialClient(t, "d1")
	waitForEvent(t, a, "user_identity")

	b := tb.dialClient(t, "d2")
	expectClose(t, b, CloseMaxConnections)

	// Freeing the slot lets the next connection in.
	a.Close()
	waitForDisconnect(t, tb, "device_d1")

	c := tb.dialClient(t, "d3")
	waitForEvent(t, c, "user_identity")
}

func waitForDisconnect(t *testing.T, tb *testBridge, userID string) {
	t.Helper()
	deadline := time.Now().Add(eventWait)
	for time.Now().Before(deadline) {
		if u, ok := tb.registry.Get(userID); ok && !u.IsOnline {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("user %s still online", userID)
}

func TestSupersededConnectionClosed(t *testing.T) {
	tb := newTestBridge(t)

	first := tb.dialClient(t, "d1")
	waitForEvent(t, first, "user_identity")

	second := tb.dialClient(t, "d1")
	waitForEvent(t, second, "user_identity")

	expectClose(t, first, CloseSuperseded)

	if tb.hub.ClientCount() != 1 {
		t.Errorf("ClientCount = %d after supersede, want 1", tb.hub.ClientCount())
	}
	if len(tb.registry.OnlineUsers()) != 1 {
		t.Error("supersede must not duplicate the online user")
	}
}

func TestSubmitTargetsSenderAndConsolesOnly(t *testing.T) {
	tb := newTestBridge(t)

	console := tb.dialConsole(t)
	waitForEvent(t, console, "user_list")

	a := tb.dialClient(t, "d1")
	waitForEvent(t, a, "user_list")
	b := tb.dialClient(t, "d2")
	waitForEvent(t, b, "user_list")

	// Drain b's join from a and the console before the interesting part.
	waitForEvent(t, a, "user_joined")
	waitForEvent(t, console, "user_joined")

	if err := a.WriteJSON(map[string]interface{}{"type": "submit", "text": "hello desk"}); err != nil {
		t.Fatalf("write submit failed: %v", err)
	}

	msg := waitForEvent(t, a, "new_message")
	stored := msg["message"].(map[string]interface{})
	if stored["content"] != "hello desk" || stored["user_id"] != "device_d1" {
		t.Errorf("sender got wrong message: %v", stored)
	}
	waitForEvent(t, a, "paste_success")

	consoleMsg := waitForEvent(t, console, "new_message")
	if consoleMsg["message"].(map[string]interface{})["content"] != "hello desk" {
		t.Error("console must see the submitted message")
	}

	expectNoEvent(t, b, "new_message")

	// The submit is archived and the shared buffer cleared.
	recent := tb.chat.Recent(10)
	if len(recent) != 1 || recent[0].Content != "hello desk" {
		t.Errorf("archive after submit = %v, want the submitted message", recent)
	}
	if tb.hub.CurrentText() != "" {
		t.Error("submit should clear the shared text buffer")
	}
}

func TestConsoleIsolation(t *testing.T) {
	tb := newTestBridge(t)
	tb.registry.SetMaxConnections(1)

	console := tb.dialConsole(t)
	list := waitForEvent(t, console, "user_list")
	if users := list["users"].([]interface{}); len(users) != 0 {
		t.Errorf("console appears in user list: %v", users)
	}

	// The console does not consume the single client slot.
	a := tb.dialClient(t, "d1")
	waitForEvent(t, a, "user_identity")

	joined := waitForEvent(t, console, "user_list")
	if users := joined["users"].([]interface{}); len(users) != 1 {
		t.Errorf("user_list after client join has %d entries, want 1", len(users))
	}
}

func TestLocalToolInjectsAIReply(t *testing.T) {
	tb := newTestBridge(t)

	a := tb.dialClient(t, "d1")
	waitForEvent(t, a, "user_list")

	local := tb.dial(t, "local=true")
	if err := local.WriteJSON(map[string]interface{}{"type": "ai_reply", "content": "42"}); err != nil {
		t.Fatalf("write ai_reply failed: %v", err)
	}

	reply := waitForEvent(t, a, "ai_response")
	msg := reply["message"].(map[string]interface{})
	if msg["content"] != "42" || msg["role"] != "ai" {
		t.Errorf("ai_response message = %v", msg)
	}

	recent := tb.chat.Recent(10)
	if len(recent) != 1 || recent[0].Role != "ai" {
		t.Errorf("ai reply should be archived with the ai role, got %v", recent)
	}
}

func TestKickUser(t *testing.T) {
	tb := newTestBridge(t)

	console := tb.dialConsole(t)
	waitForEvent(t, console, "user_list")

	a := tb.dialClient(t, "d1")
	waitForEvent(t, a, "user_identity")
	waitForEvent(t, console, "user_joined")

	if err := console.WriteJSON(map[string]interface{}{"type": "kick_user", "user_id": "device_d1"}); err != nil {
		t.Fatalf("write kick_user failed: %v", err)
	}

	expectClose(t, a, CloseKicked)
	waitForEvent(t, console, "user_kicked")

	if u, ok := tb.registry.Get("device_d1"); !ok || u.IsOnline {
		t.Error("kicked user should be marked offline")
	}
}

func TestUnknownTypeKeepsConnectionOpen(t *testing.T) {
	tb := newTestBridge(t)

	a := tb.dialClient(t, "d1")
	waitForEvent(t, a, "user_list")

	if err := a.WriteJSON(map[string]interface{}{"type": "bogus_op"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	errEvent := waitForEvent(t, a, "error")
	if msg, _ := errEvent["message"].(string); !strings.Contains(msg, "bogus_op") {
		t.Errorf("error message should name the offending type, got %q", msg)
	}

	// Still alive afterwards.
	if err := a.WriteJSON(map[string]interface{}{"type": "ping"}); err != nil {
		t.Fatalf("write ping failed: %v", err)
	}
	waitForEvent(t, a, "pong")
}

func TestMalformedJSONAnswersError(t *testing.T) {
	tb := newTestBridge(t)

	a := tb.dialClient(t, "d1")
	waitForEvent(t, a, "user_list")

	if err := a.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	waitForEvent(t, a, "error")
	if err := a.WriteJSON(map[string]interface{}{"type": "ping"}); err != nil {
		t.Fatalf("write ping failed: %v", err)
	}
	waitForEvent(t, a, "pong")
}

func TestSyncTextLastWriterWins(t *testing.T) {
	tb := newTestBridge(t)

	a := tb.dialClient(t, "d1")
	waitForEvent(t, a, "user_list")
	b := tb.dialClient(t, "d2")
	waitForEvent(t, b, "user_list")

	if err := a.WriteJSON(map[string]interface{}{"type": "sync_text", "text": "from a"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	waitForEvent(t, a, "text_synced")

	if err := b.WriteJSON(map[string]interface{}{"type": "sync_text", "text": "from b"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	waitForEvent(t, b, "text_synced")

	if got := tb.hub.CurrentText(); got != "from b" {
		t.Errorf("CurrentText = %q, want the last writer's text", got)
	}
}

func TestClearChatBroadcast(t *testing.T) {
	tb := newTestBridge(t)

	console := tb.dialConsole(t)
	waitForEvent(t, console, "user_list")
	a := tb.dialClient(t, "d1")
	waitForEvent(t, a, "user_list")

	tb.chat.Append(userChatMessage("device_d1", "doomed"))

	if err := a.WriteJSON(map[string]interface{}{"type": "clear_chat"}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	waitForEvent(t, a, "chat_cleared")
	waitForEvent(t, console, "chat_cleared")

	if got := tb.chat.Recent(10); len(got) != 0 {
		t.Errorf("archive after clear_chat = %v, want empty", got)
	}
}

func TestSettingsUpdateClampedAndBroadcast(t *testing.T) {
	tb := newTestBridge(t)

	a := tb.dialClient(t, "d1")
	waitForEvent(t, a, "user_list")

	if err := a.WriteJSON(map[string]interface{}{"type": "settings_update", "max_connections": 99}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	updated := waitForEvent(t, a, "settings_updated")
	if updated["max_connections"].(float64) != 10 {
		t.Errorf("settings_updated max_connections = %v, want clamped 10", updated["max_connections"])
	}
	if tb.registry.MaxConnections() != 10 {
		t.Errorf("registry MaxConnections = %d, want 10", tb.registry.MaxConnections())
	}
}

func TestJoinAndLeaveBroadcasts(t *testing.T) {
	tb := newTestBridge(t)

	a := tb.dialClient(t, "d1")
	waitForEvent(t, a, "user_list")

	b := tb.dialClient(t, "d2")
	waitForEvent(t, b, "user_identity")

	joined := waitForEvent(t, a, "user_joined")
	if joined["user"].(map[string]interface{})["id"] != "device_d2" {
		t.Errorf("user_joined carries wrong user: %v", joined["user"])
	}
	list := waitForEvent(t, a, "user_list")
	if users := list["users"].([]interface{}); len(users) != 2 {
		t.Errorf("user_list after join has %d entries, want 2", len(users))
	}

	b.Close()
	left := waitForEvent(t, a, "user_left")
	if left["user"].(map[string]interface{})["id"] != "device_d2" {
		t.Errorf("user_left carries wrong user: %v", left["user"])
	}
	list = waitForEvent(t, a, "user_list")
	if users := list["users"].([]interface{}); len(users) != 1 {
		t.Errorf("user_list after leave has %d entries, want 1", len(users))
	}
}

func TestEnvelopeTokenConnects(t *testing.T) {
	tb := newTestBridge(t)

	envelope, err := tb.tokens.IssueEnvelope()
	if err != nil {
		t.Fatalf("IssueEnvelope() failed: %v", err)
	}
	conn := tb.dial(t, "token="+envelope+"&device_id=d1")
	waitForEvent(t, conn, "user_identity")
}
