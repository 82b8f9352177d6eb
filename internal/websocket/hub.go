package websocket

import (
	"encoding/json"
	"log"
	"sync"

	"ridedash-backend/internal/observability"
)

// Hub maintains active WebSocket sessions and fans ride events out to all of
// them. Fan-out is global: every connected session gets every event and
// filters client-side by the ids in the payload. Delivery is fire-and-forget,
// at most once per connected session, no replay for late joiners.
type Hub struct {
	// Registered sessions (driverID -> Client)
	clients map[string]*Client

	// Marshaled events to fan out
	broadcast chan []byte

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	mu sync.RWMutex
}

// Event is the envelope every session receives.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[client.DriverID]; ok {
				// A second login replaces the first session
				old.closeSend()
			}
			h.clients[client.DriverID] = client
			total := len(h.clients)
			h.mu.Unlock()
			observability.ConnectedSessions.Set(float64(total))
			log.Printf("✅ [WS] Driver connected: %s (%d sessions)", client.DriverID, total)

		case client := <-h.unregister:
			h.mu.Lock()
			if current, ok := h.clients[client.DriverID]; ok && current == client {
				delete(h.clients, client.DriverID)
				client.closeSend()
			}
			total := len(h.clients)
			h.mu.Unlock()
			observability.ConnectedSessions.Set(float64(total))
			log.Printf("🔴 [WS] Driver disconnected: %s (%d sessions)", client.DriverID, total)

		case data := <-h.broadcast:
			h.mu.Lock()
			for driverID, client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Client buffer full, disconnect
					client.closeSend()
					delete(h.clients, driverID)
					log.Printf("⚠️ [WS] Buffer full, dropping session: %s", driverID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastAll fans one event out to every connected session.
func (h *Hub) BroadcastAll(eventType string, data interface{}) {
	payload, err := json.Marshal(Event{Type: eventType, Data: data})
	if err != nil {
		log.Printf("❌ Failed to marshal %s event: %v", eventType, err)
		return
	}
	h.broadcast <- payload
}

// ClientCount returns the number of connected sessions
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsDriverConnected checks if a driver has a live session
func (h *Hub) IsDriverConnected(driverID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[driverID]
	return ok
}
