package api

import (
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/erosion-lab/internal/engine"
	"github.com/talgya/erosion-lab/internal/erosion"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Local tool; CORS is handled for the REST endpoints.
	},
}

// StreamMessage is one frame on the progress stream.
type StreamMessage struct {
	Type     string           `json:"type"` // "status", "progress" or "done"
	Status   *engine.Status   `json:"status,omitempty"`
	Progress *engine.Progress `json:"progress,omitempty"`
	Stats    *erosion.Stats   `json:"stats,omitempty"`
}

// hub fans erosion progress out to websocket clients. Each connection
// has its own write lock since gorilla connections allow one writer.
type hub struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]*sync.Mutex
	count   int32
}

func newHub() *hub {
	return &hub{clients: make(map[*websocket.Conn]*sync.Mutex)}
}

// add registers c and writes first before any broadcast can reach it.
func (h *hub) add(c *websocket.Conn, first StreamMessage) error {
	lock := &sync.Mutex{}
	lock.Lock()
	defer lock.Unlock()
	h.mu.Lock()
	h.clients[c] = lock
	h.mu.Unlock()
	c.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.WriteJSON(first)
}

func (h *hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.Close()
}

func (h *hub) send(c *websocket.Conn, msg StreamMessage) error {
	h.mu.RLock()
	lock, ok := h.clients[c]
	h.mu.RUnlock()
	if !ok {
		return nil
	}
	lock.Lock()
	defer lock.Unlock()
	c.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.WriteJSON(msg)
}

func (h *hub) broadcast(msg StreamMessage) {
	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := h.send(c, msg); err != nil {
			slog.Debug("stream write failed, dropping client", "remote", c.RemoteAddr(), "error", err)
			h.remove(c)
		}
	}
}

// handleStream upgrades to a websocket that receives erosion progress.
// The first frame is the last published session status, plus the latest
// progress when a run is active. It never waits on the session lock.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	current := atomic.AddInt32(&s.hub.count, 1)
	if s.MaxStreams > 0 && int(current) > s.MaxStreams {
		atomic.AddInt32(&s.hub.count, -1)
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer atomic.AddInt32(&s.hub.count, -1)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("stream upgrade failed", "error", err)
		return
	}
	defer s.hub.remove(conn)
	first := StreamMessage{Type: "status", Status: s.snapshot.Load(), Progress: s.progress.Load()}
	if err := s.hub.add(conn, first); err != nil {
		return
	}
	slog.Info("stream client connected", "remote", conn.RemoteAddr())

	// Clients only listen; reading detects the close.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			slog.Info("stream client disconnected", "remote", conn.RemoteAddr())
			return
		}
	}
}
