// Package server exposes the agent's control surface: a WebSocket endpoint
// the panel front-end connects to, plus static file serving for its assets.
// Handlers never touch the device themselves; every gesture becomes a core
// command, so a slow tool invocation can never block a socket reader.
package server

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"litra-controller/internal/core"
)

// Server manages the HTTP and WebSocket services.
type Server struct {
	Hub      *Hub
	commands core.CommandChannel

	// initialSync builds the snapshot messages sent to a freshly connected
	// client (tool status, device state, presets, routines, schedules).
	initialSync func() []Message

	httpServer     *http.Server
	staticFilesDir string
	allowedOrigins []string
	upgrader       websocket.Upgrader
}

// NewServer creates a new server instance.
func NewServer(commands core.CommandChannel, initialSync func() []Message, port, staticFilesDir string, allowedOrigins []string) *Server {
	hub := NewHub()
	go hub.Run()

	s := &Server{
		Hub:            hub,
		commands:       commands,
		initialSync:    initialSync,
		staticFilesDir: staticFilesDir,
		allowedOrigins: allowedOrigins,
	}

	s.upgrader = websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.Dir(s.staticFilesDir)))
	mux.HandleFunc("/ws", s.handleWebSocket)
	s.httpServer = &http.Server{Addr: ":" + port, Handler: mux}

	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.allowedOrigins) == 0 {
		log.Println("[Server] Warning: WebSocket CheckOrigin is disabled.")
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range s.allowedOrigins {
		if strings.EqualFold(origin, allowed) {
			return true
		}
	}
	log.Printf("[Server] WebSocket connection blocked: Origin '%s' not in allowed list.", origin)
	return false
}

func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Server] WebSocket upgrade error: %v", err)
		return
	}

	if s.initialSync != nil {
		for _, msg := range s.initialSync() {
			_ = conn.WriteJSON(msg)
		}
	}

	s.Hub.register <- conn
	defer func() {
		s.Hub.unregister <- conn
	}()

	for {
		_, msgBytes, err := conn.ReadMessage()
		if err != nil {
			break
		}
		s.dispatch(msgBytes)
	}
}

// dispatch validates a client frame and forwards it to the agent. The send
// is non-blocking: if the agent's queue is full the gesture is dropped and
// the user can simply repeat it.
func (s *Server) dispatch(raw []byte) {
	cmd, err := decodeCommand(raw)
	if err != nil {
		log.Printf("[Server] Rejected client frame: %v", err)
		return
	}
	select {
	case s.commands <- cmd:
	default:
		log.Printf("[Server] Command queue full, dropping %s", cmd.Type)
	}
}
