package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Event types pushed to connected dashboards
const (
	TypeOrderStateChanged = "ORDER_STATE_CHANGED"
	TypeBatchCompleted    = "BATCH_COMPLETED"
	TypeQCCompleted       = "QC_COMPLETED"
	TypeWarrantyChanged   = "WARRANTY_CHANGED"
	TypeManifestConverted = "MANIFEST_CONVERTED"
)

// Event is one domain notification broadcast over the events socket
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// Hub maintains the set of active clients and broadcasts events
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	log        *logrus.Logger

	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		log:        log,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug("Events client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.log.Debug("Events client disconnected")

		case message := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer, drop the event
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Publish broadcasts a domain event to every connected client
func (h *Hub) Publish(eventType string, payload interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Errorf("Failed to marshal event %s: %v", eventType, err)
		return
	}

	select {
	case h.broadcast <- data:
	default:
		h.log.Warnf("Event buffer full, dropping %s", eventType)
	}
}
