package handlers

import (
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"

	"github.com/skip2/go-qrcode"
)

// Login handles POST /api/login: password in, live session token out.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "password is required")
		return
	}
	token, err := h.auth.Login(req.Password)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid password")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"token":   token,
	})
}

// QRCode handles GET /api/qrcode: a connect URL carrying a fresh encrypted
// envelope, rendered as a PNG data URL. The raw session token never appears
// in the link.
func (h *Handler) QRCode(w http.ResponseWriter, r *http.Request) {
	envelope, err := h.tokens.IssueEnvelope()
	if err != nil {
		log.Printf("failed to issue envelope: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to issue envelope")
		return
	}
	connectURL := h.baseURL + "/?token=" + envelope

	png, err := qrcode.Encode(connectURL, qrcode.Medium, 256)
	if err != nil {
		log.Printf("failed to encode qr code: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to generate qr code")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"qrcode":  "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
		"url":     connectURL,
	})
}

// Status handles GET /api/status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"clients_online": h.hub.ClientCount(),
		"uptime_seconds": int(h.hub.Uptime().Seconds()),
	})
}
