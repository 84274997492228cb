package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/vonxq/lan-bridge/internal/models"
)

// ChatHistory handles GET /api/chat/history?limit=.
func (h *Handler) ChatHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"messages": h.chat.Recent(limit),
	})
}

// ClearChatToday handles DELETE /api/chat/today.
func (h *Handler) ClearChatToday(w http.ResponseWriter, r *http.Request) {
	h.chat.PurgeToday()
	h.hub.Broadcast(map[string]interface{}{"type": models.EventChatCleared})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	})
}

// ClearChatUser handles DELETE /api/chat/user/{id}.
func (h *Handler) ClearChatUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	purged := h.chat.PurgeUser(userID)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"purged":  purged,
	})
}
