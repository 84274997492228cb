package handlers

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/vonxq/lan-bridge/internal/bridge"
	"github.com/vonxq/lan-bridge/internal/services"
)

// Handler carries the shared collaborators for every HTTP endpoint.
type Handler struct {
	tokens  *services.TokenService
	auth    *services.AuthService
	chat    *services.ChatService
	files   *services.FileService
	hub     *bridge.Hub
	baseURL string // http://<lan-ip>:<port>, used for QR connect links
	webDir  string // bundled UI assets, may be empty
}

// New creates the HTTP handler set.
func New(tokens *services.TokenService, auth *services.AuthService, chat *services.ChatService, files *services.FileService, hub *bridge.Hub, baseURL, webDir string) *Handler {
	return &Handler{
		tokens:  tokens,
		auth:    auth,
		chat:    chat,
		files:   files,
		hub:     hub,
		baseURL: baseURL,
		webDir:  webDir,
	}
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// requestToken extracts the caller's token from the Authorization header or
// the token query parameter.
func requestToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}
	return r.URL.Query().Get("token")
}

// RequireToken gates an endpoint on a valid client token (raw or envelope).
func (h *Handler) RequireToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.tokens.ValidateToken(requestToken(r)) {
			writeError(w, http.StatusUnauthorized, "invalid or missing token")
			return
		}
		next(w, r)
	}
}

// RequireLoopback gates an endpoint on a loopback origin.
func (h *Handler) RequireLoopback(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		ip := net.ParseIP(host)
		if ip == nil || !ip.IsLoopback() {
			writeError(w, http.StatusForbidden, "loopback only")
			return
		}
		next(w, r)
	}
}
