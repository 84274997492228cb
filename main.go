package main

import (
	"bufio"
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/vonxq/lan-bridge/internal/bridge"
	"github.com/vonxq/lan-bridge/internal/handlers"
	"github.com/vonxq/lan-bridge/internal/services"
	"github.com/vonxq/lan-bridge/internal/storage"
)

// loadEnvFile loads environment variables from a file
func loadEnvFile(filename string) {
	file, err := os.Open(filename)
	if err != nil {
		return // File doesn't exist, skip silently
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) == 2 {
			key := strings.TrimSpace(parts[0])
			value := strings.TrimSpace(parts[1])
			if os.Getenv(key) == "" {
				os.Setenv(key, value)
			}
		}
	}
}

// CORS middleware
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// lanIP returns the first non-loopback IPv4 address, for the connect URL
// shown to phones. Falls back to 127.0.0.1.
func lanIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return "127.0.0.1"
}

func main() {
	loadEnvFile(".env")

	port := os.Getenv("LAN_BRIDGE_PORT")
	if port == "" {
		port = "8080"
	}

	dataDir := storage.DataDir()
	if err := storage.EnsureLayout(dataDir); err != nil {
		log.Fatalf("failed to prepare data dir: %v", err)
	}
	log.Printf("data dir: %s", dataDir)

	// Services
	tokens := services.NewTokenService()
	auth := services.NewAuthService(tokens, dataDir)
	chat := services.NewChatService(dataDir)
	files := services.NewFileService(storage.UploadsDir(dataDir))
	clipboard := services.NewClipboardService()

	// Router core
	registry := bridge.NewRegistry(dataDir)
	hub := bridge.NewHub(registry, chat, files, clipboard, tokens)

	baseURL := "http://" + lanIP() + ":" + port
	h := handlers.New(tokens, auth, chat, files, hub, baseURL, os.Getenv("LAN_BRIDGE_WEB_DIR"))

	r := mux.NewRouter()

	// Connection endpoint (role decided by query parameters)
	r.HandleFunc("/ws", hub.HandleWS)

	// Auth endpoints
	r.HandleFunc("/api/login", h.Login).Methods("POST")
	r.HandleFunc("/api/qrcode", h.RequireToken(h.QRCode)).Methods("GET")
	r.HandleFunc("/api/status", h.Status).Methods("GET")

	// File endpoints
	r.HandleFunc("/api/upload", h.RequireToken(h.Upload)).Methods("POST")
	r.HandleFunc("/api/files", h.RequireToken(h.ListFiles)).Methods("GET")
	r.HandleFunc("/api/files/{name}", h.RequireToken(h.DeleteFile)).Methods("DELETE")
	r.HandleFunc("/files/{name}", h.RequireToken(h.Download)).Methods("GET")
	r.HandleFunc("/api/reveal", h.RequireLoopback(h.Reveal)).Methods("POST")

	// Chat endpoints
	r.HandleFunc("/api/chat/history", h.RequireToken(h.ChatHistory)).Methods("GET")
	r.HandleFunc("/api/chat/today", h.RequireToken(h.ClearChatToday)).Methods("DELETE")
	r.HandleFunc("/api/chat/user/{id}", h.RequireToken(h.ClearChatUser)).Methods("DELETE")

	// Settings + user management
	r.HandleFunc("/api/settings", h.RequireToken(h.GetSettings)).Methods("GET")
	r.HandleFunc("/api/settings", h.RequireToken(h.UpdateSettings)).Methods("POST")
	r.HandleFunc("/api/kick/{userId}", h.RequireToken(h.KickUser)).Methods("POST")

	// UI shell with token injection, catch-all last
	r.PathPrefix("/").HandlerFunc(h.ServeUI).Methods("GET")

	if consoleToken, err := tokens.IssueConsoleToken(); err == nil {
		log.Printf("console token: %s", consoleToken)
	}
	log.Printf("lan-bridge listening on %s (connect: %s)", ":"+port, baseURL)

	server := &http.Server{
		Addr:    ":" + port,
		Handler: corsMiddleware(r),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("shutting down...")
	hub.CloseAll()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
