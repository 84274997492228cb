package bridge

import (
	"encoding/json"
	"log"

	"github.com/vonxq/lan-bridge/internal/models"
)

// dispatch handles one inbound message. Each case is a small synchronous
// transaction against the shared state, acknowledged to the sender on
// completion. Protocol errors answer with an error event; the connection
// stays open.
func (h *Hub) dispatch(c *connection, raw []byte) {
	var ev models.ClientEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		log.Printf("bridge: malformed message on %s: %v", c.id, err)
		c.sendEvent(map[string]interface{}{
			"type":    models.EventError,
			"message": "invalid message format",
		})
		return
	}

	if c.role == RoleClient {
		h.registry.Touch(c.userID)
	}

	switch ev.Type {
	case models.EventSyncText:
		h.SetText(ev.Text)
		c.sendEvent(map[string]interface{}{"type": models.EventTextSynced})

	case models.EventPasteOnly:
		text := h.resolveText(ev.Text)
		if err := h.clipboard.PasteOnly(text); err != nil {
			log.Printf("bridge: paste failed: %v", err)
		}
		c.sendEvent(map[string]interface{}{
			"type":      models.EventPasteSuccess,
			"submitted": false,
		})

	case models.EventSubmit:
		h.handleSubmit(c, ev)

	case models.EventReplaceLine:
		text := h.resolveText(ev.Text)
		if err := h.clipboard.ReplaceLine(text); err != nil {
			log.Printf("bridge: replace line failed: %v", err)
		}
		c.sendEvent(map[string]interface{}{
			"type":      models.EventPasteSuccess,
			"submitted": false,
		})

	case models.EventGetClipboard:
		content, err := h.clipboard.ReadClipboard()
		if err != nil {
			log.Printf("bridge: read clipboard failed: %v", err)
		}
		c.sendEvent(map[string]interface{}{
			"type":    models.EventClipboardContent,
			"content": content,
		})

	case models.EventGetCurrentLine:
		content, err := h.clipboard.CurrentLine()
		if err != nil {
			log.Printf("bridge: read current line failed: %v", err)
		}
		c.sendEvent(map[string]interface{}{
			"type":    models.EventCurrentLine,
			"content": content,
		})

	case models.EventGetFiles:
		c.sendEvent(map[string]interface{}{
			"type":  models.EventFileList,
			"files": h.files.List(ev.Category),
		})

	case models.EventDeleteFile:
		deleted := h.files.Delete(ev.Filename, ev.Category)
		c.sendEvent(map[string]interface{}{
			"type":     models.EventFileDeleted,
			"filename": ev.Filename,
			"success":  deleted,
		})
		if deleted {
			// All clients share one file namespace.
			h.Broadcast(map[string]interface{}{
				"type":  models.EventFileList,
				"files": h.files.List(""),
			})
		}

	case models.EventGetChatHistory:
		c.sendEvent(map[string]interface{}{
			"type":     models.EventChatHistory,
			"messages": h.chat.Recent(ev.Limit),
		})

	case models.EventClearChat:
		h.chat.PurgeToday()
		h.Broadcast(map[string]interface{}{"type": models.EventChatCleared})

	case models.EventSettingsUpdate:
		applied := h.registry.SetMaxConnections(ev.MaxConnections)
		h.Broadcast(map[string]interface{}{
			"type":            models.EventSettingsUpdated,
			"max_connections": applied,
		})

	case models.EventKickUser:
		if !h.Kick(ev.UserID) {
			c.sendEvent(map[string]interface{}{
				"type":    models.EventError,
				"message": "user not found: " + ev.UserID,
			})
		}

	case models.EventAIReply:
		h.handleAIReply(c, ev)

	case models.EventPing:
		c.sendEvent(map[string]interface{}{"type": models.EventPong})

	default:
		c.sendEvent(map[string]interface{}{
			"type":    models.EventError,
			"message": "unknown message type: " + ev.Type,
		})
	}
}

// handleSubmit archives the current text as the sender's chat message,
// delivers it to the sender and the consoles only, clears the shared buffer,
// and then runs the paste-and-enter pipeline.
func (h *Hub) handleSubmit(c *connection, ev models.ClientEvent) {
	text := h.resolveText(ev.Text)

	msg := models.ChatMessage{
		Role:        models.RoleUser,
		Content:     text,
		MessageType: models.MessageTypeText,
	}
	if c.role == RoleClient {
		if user, ok := h.registry.Get(c.userID); ok {
			msg.UserID = user.ID
			msg.UserName = user.Name
			msg.UserAvatar = user.Avatar
		}
	} else {
		msg.UserID = string(c.role)
		msg.UserName = "Console"
	}
	stored := h.chat.Append(msg)

	// Directed to the sender plus the supervisory consoles, never to the
	// other ordinary clients.
	h.deliverToSenderAndConsoles(c, map[string]interface{}{
		"type":    models.EventNewMessage,
		"message": stored,
	})

	h.SetText("")

	if err := h.clipboard.PasteAndSubmit(text); err != nil {
		log.Printf("bridge: paste and submit failed: %v", err)
	}
	c.sendEvent(map[string]interface{}{
		"type":      models.EventPasteSuccess,
		"submitted": true,
	})
}

// handleAIReply archives an AI-role message and broadcasts it to everyone.
// Usually injected by the local tool, but any live connection may send one.
func (h *Hub) handleAIReply(c *connection, ev models.ClientEvent) {
	content := ev.Content
	if content == "" {
		content = ev.Text
	}
	stored := h.chat.Append(models.ChatMessage{
		Role:        models.RoleAI,
		UserID:      "ai",
		UserName:    "AI",
		Content:     content,
		MessageType: models.MessageTypeText,
	})
	h.Broadcast(map[string]interface{}{
		"type":    models.EventAIResponse,
		"message": stored,
	})
}

// resolveText applies the last-writer-wins text semantics: an action that
// carries text syncs the shared buffer first; one that does not uses
// whatever was last synced.
func (h *Hub) resolveText(text string) string {
	if text != "" {
		h.SetText(text)
		return text
	}
	return h.CurrentText()
}
