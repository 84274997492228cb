package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/vonxq/lan-bridge/internal/models"
)

// GetSettings handles GET /api/settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"max_connections": h.hub.MaxConnections(),
	})
}

// UpdateSettings handles POST /api/settings. The applied (clamped) value is
// echoed back and broadcast to every live connection.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MaxConnections int `json:"max_connections"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	applied := h.hub.SetMaxConnections(req.MaxConnections)
	h.hub.Broadcast(map[string]interface{}{
		"type":            models.EventSettingsUpdated,
		"max_connections": applied,
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"max_connections": applied,
	})
}

// KickUser handles POST /api/kick/{userId}.
func (h *Handler) KickUser(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]
	if !h.hub.Kick(userID) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	})
}
