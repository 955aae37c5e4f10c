package main

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/campuscast/campuscast/control_plane/observability"
)

const maxWSConnections = 200

// StateHub manages WebSocket connections and broadcasts the playback state.
// Single broadcaster pattern prevents N duplicate tickers; playback
// transitions nudge an immediate push on top of the 1 Hz cadence.
type StateHub struct {
	clients    map[*websocket.Conn]struct{}
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	notify     chan struct{}
	mu         sync.RWMutex

	// frame builds the payload for one broadcast.
	frame func() interface{}
}

// NewStateHub creates a new WebSocket hub.
func NewStateHub(frame func() interface{}) *StateHub {
	return &StateHub{
		clients:    make(map[*websocket.Conn]struct{}),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		notify:     make(chan struct{}, 1),
		frame:      frame,
	}
}

// Run starts the hub's main loop.
func (h *StateHub) Run(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return

		case conn := <-h.register:
			h.mu.Lock()
			// Connection cap to prevent overload
			if len(h.clients) >= maxWSConnections {
				h.mu.Unlock()
				conn.Close()
				log.Printf("WebSocket connection rejected: max connections (%d) reached", maxWSConnections)
				continue
			}
			h.clients[conn] = struct{}{}
			count := len(h.clients)
			h.mu.Unlock()
			observability.WSClients.Set(float64(count))
			log.Printf("WebSocket client registered. Total: %d", count)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			count := len(h.clients)
			h.mu.Unlock()
			observability.WSClients.Set(float64(count))
			log.Printf("WebSocket client unregistered. Total: %d", count)

		case <-h.notify:
			h.broadcastAll()

		case <-ticker.C:
			h.broadcastAll()
		}
	}
}

// Notify requests an out-of-band broadcast. Non-blocking: a pending nudge
// already covers this transition.
func (h *StateHub) Notify() {
	select {
	case h.notify <- struct{}{}:
	default:
	}
}

// broadcastAll sends the current state frame to every connected client.
func (h *StateHub) broadcastAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.clients) == 0 {
		return
	}

	payload := h.frame()

	for conn := range h.clients {
		// Set write deadline to prevent blocking on dead connections
		conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := conn.WriteJSON(payload); err != nil {
			log.Printf("WebSocket write error: %v", err)
			// Unregister will be handled by read pump or next ping
			go h.Unregister(conn)
		}
	}
}

// shutdown gracefully closes all client connections.
func (h *StateHub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	log.Printf("Shutting down WebSocket hub with %d clients", len(h.clients))

	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]struct{})
	observability.WSClients.Set(0)
}

// Register adds a new client connection.
func (h *StateHub) Register(conn *websocket.Conn) {
	h.register <- conn
}

// Unregister removes a client connection.
func (h *StateHub) Unregister(conn *websocket.Conn) {
	h.unregister <- conn
}

// ClientCount returns the number of connected clients.
func (h *StateHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
