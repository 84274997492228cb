package handlers

import (
	"log"
	"net/http"
	"os/exec"
	"runtime"

	"github.com/gorilla/mux"

	"github.com/vonxq/lan-bridge/internal/models"
	"github.com/vonxq/lan-bridge/internal/storage"
)

const maxUploadBytes = 200 << 20 // 200 MB

// Upload handles POST /api/upload (multipart, field "file").
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	mimeType := header.Header.Get("Content-Type")
	record, err := h.files.Save(file, header.Filename, mimeType)
	if err != nil {
		log.Printf("upload failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to save file")
		return
	}

	// Everyone shares one file namespace, so push the refreshed list.
	h.hub.Broadcast(map[string]interface{}{
		"type":  models.EventFileList,
		"files": h.files.List(""),
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"file":    record,
	})
}

// Download handles GET /files/{name}?category=. Streams with the detected
// content type; 404s are JSON like every other error.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	path, ok := h.files.Resolve(name, r.URL.Query().Get("category"))
	if !ok {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	http.ServeFile(w, r, path)
}

// ListFiles handles GET /api/files?category=.
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"files":   h.files.List(r.URL.Query().Get("category")),
	})
}

// DeleteFile handles DELETE /api/files/{name}?category=.
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	if !h.files.Delete(name, r.URL.Query().Get("category")) {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	h.hub.Broadcast(map[string]interface{}{
		"type":  models.EventFileList,
		"files": h.files.List(""),
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	})
}

// Reveal handles POST /api/reveal (loopback only): opens the uploads
// directory in the platform file manager. Best-effort.
func (h *Handler) Reveal(w http.ResponseWriter, r *http.Request) {
	dir := storage.UploadsDir(storage.DataDir())
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", dir)
	case "linux":
		cmd = exec.Command("xdg-open", dir)
	case "windows":
		cmd = exec.Command("explorer", dir)
	default:
		writeError(w, http.StatusNotImplemented, "unsupported platform")
		return
	}
	if err := cmd.Start(); err != nil {
		log.Printf("reveal failed: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to open file manager")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	})
}
