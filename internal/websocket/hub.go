package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/calliepeck/cubby/internal/model"
)

// Message is a real-time notification broadcast to all connected clients.
// The bridge pushes one whenever a refresh cycle publishes a snapshot, so
// dashboards can re-fetch instead of polling.
type Message struct {
	Type     string    `json:"type"`
	Taken    time.Time `json:"taken,omitempty"`
	Degraded bool      `json:"degraded,omitempty"`
	Children []string  `json:"children,omitempty"`
}

// SnapshotPublished builds the notification for a freshly published snapshot.
// It carries child IDs only, never summaries or photos; clients fetch the
// data they want over the HTTP API.
func SnapshotPublished(snap *model.Snapshot) Message {
	msg := Message{
		Type:     "snapshot_published",
		Taken:    snap.Taken,
		Degraded: snap.Degraded,
	}
	for id := range snap.Children {
		msg.Children = append(msg.Children, id)
	}
	return msg
}

// Hub maintains the set of active WebSocket clients and broadcasts messages.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Broadcast sends a message to all connected clients.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Client buffer full, drop the message to avoid blocking
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
