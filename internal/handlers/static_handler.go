package handlers

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

const fallbackPage = `<!DOCTYPE html>
<html>
<head><title>LAN Bridge</title></head>
<body>
<h1>LAN Bridge</h1>
<p>The server is running. No UI bundle was found; connect with the app or scan the QR code from the console.</p>
</body>
</html>
`

// ServeUI serves the bundled UI. The HTML shell gets a fresh token envelope
// injected so the page can open its WebSocket without a separate login when
// it was reached through a QR link.
func (h *Handler) ServeUI(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/")
	if path == "" {
		path = "index.html"
	}

	if h.webDir == "" {
		h.serveShell(w, []byte(fallbackPage))
		return
	}

	full := filepath.Join(h.webDir, filepath.Clean("/"+path))
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		full = filepath.Join(h.webDir, "index.html")
	}

	if filepath.Base(full) == "index.html" {
		html, err := os.ReadFile(full)
		if err != nil {
			h.serveShell(w, []byte(fallbackPage))
			return
		}
		h.serveShell(w, html)
		return
	}
	http.ServeFile(w, r, full)
}

// serveShell injects the token envelope into the HTML shell.
func (h *Handler) serveShell(w http.ResponseWriter, html []byte) {
	envelope, err := h.tokens.IssueEnvelope()
	if err != nil {
		log.Printf("failed to issue envelope for ui shell: %v", err)
		envelope = ""
	}
	script := `<script>window.__BRIDGE_TOKEN__ = "` + envelope + `";</script>`
	page := strings.Replace(string(html), "</head>", script+"</head>", 1)
	if page == string(html) {
		// No head tag; prepend instead.
		page = script + page
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(page))
}
