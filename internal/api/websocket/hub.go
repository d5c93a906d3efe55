package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/hydrowatch/hydrowatch-backend/internal/models"
	"github.com/hydrowatch/hydrowatch-backend/internal/pkg/metrics"
)

// Hub maintains active WebSocket connections and broadcasts alert and
// snapshot events to dashboard clients. It also implements the rule
// evaluator's Notifier interface, which is how alert decisions reach the
// browser without the core knowing about transports.
type Hub struct {
	// Registered clients
	clients map[*Client]bool

	// Outbound messages to all clients
	broadcast chan []byte

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	mu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a new WebSocket hub
func NewHub(ctx context.Context) *Hub {
	hubCtx, cancel := context.WithCancel(ctx)
	return &Hub{
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		ctx:        hubCtx,
		cancel:     cancel,
	}
}

// Run starts the hub
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			metrics.WebSocketConnectionsActive.Set(float64(len(h.clients)))
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			metrics.WebSocketConnectionsActive.Set(float64(len(h.clients)))
			h.mu.Unlock()

		case message := <-h.broadcast:
			// Full lock: a slow client gets dropped here, which mutates the
			// client map.
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Client buffer full, close connection
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	metrics.WebSocketConnectionsActive.Set(0)
}

// NotifyAlert broadcasts an alert decision (service.Notifier).
func (h *Hub) NotifyAlert(decision *models.AlertDecision) {
	event := "opened"
	if decision.SentCount > 0 {
		event = "escalated"
	}
	h.broadcastMessage("alert", event, decision)
}

// NotifyResolution broadcasts a resolution notice (service.Notifier).
func (h *Hub) NotifyResolution(rec *models.ResolutionRecord) {
	h.broadcastMessage("resolution", "resolved", rec)
}

// BroadcastSnapshot broadcasts a fresh derived-metrics snapshot.
func (h *Hub) BroadcastSnapshot(snapshot *models.MetricsSnapshot) {
	h.broadcastMessage("snapshot", "ingested", snapshot)
}

func (h *Hub) broadcastMessage(msgType, event string, payload interface{}) {
	msg := models.WebSocketMessage{
		Type:      msgType,
		Event:     event,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	select {
	case h.broadcast <- data:
	case <-h.ctx.Done():
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
