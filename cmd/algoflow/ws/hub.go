package ws

import (
	"sync"

	"github.com/algoflow/algoflow/common/logger"
)

// Hub maintains active WebSocket connections and fans execution events
// out to all of them. Every client receives every event; the dashboard
// is single-tenant so there is no per-user partitioning.
type Hub struct {
	clients map[*Client]struct{}
	mutex   sync.RWMutex

	// Channel for registering clients
	register chan *Client

	// Channel for unregistering clients
	unregister chan *Client

	// Channel for broadcasting messages
	broadcast chan []byte

	log *logger.Logger
}

// NewHub creates a new Hub instance
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		log:        log,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.log.Info("websocket hub started")

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case message := <-h.broadcast:
			h.broadcastToAll(message)
		}
	}
}

// Broadcast queues a message for delivery to every connected client
func (h *Hub) Broadcast(message []byte) {
	h.broadcast <- message
}

// registerClient adds a client to the hub
func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.clients[client] = struct{}{}
	h.log.Debug("websocket client registered", "client", client.id, "remote", client.remote, "total", len(h.clients))
}

// unregisterClient removes a client from the hub. Safe to call for a
// client that was already dropped by a full send buffer.
func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.log.Debug("websocket client unregistered", "client", client.id, "remote", client.remote, "total", len(h.clients))
}

// broadcastToAll sends a message to every connected client. Clients that
// cannot keep up lose their connection rather than stalling the hub.
func (h *Hub) broadcastToAll(message []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			// Client's send buffer is full, drop the connection
			h.log.Warn("websocket client send buffer full, dropping", "client", client.id, "remote", client.remote)
			delete(h.clients, client)
			close(client.send)
		}
	}
}

// ConnectionCount returns the number of active connections
func (h *Hub) ConnectionCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	return len(h.clients)
}
