// Package websocket serves interactive graph views to browsers.
package websocket

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Gauge is the part of a metric the hub updates.
type Gauge interface {
	Inc()
	Dec()
}

// Hub tracks the open view connections.
type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client

	gauge  Gauge
	logger *zap.Logger
}

// NewHub creates a hub. gauge may be nil.
func NewHub(gauge Gauge, logger *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 100),
		unregister: make(chan *Client, 100),
		gauge:      gauge,
		logger:     logger,
	}
}

// Run processes registrations until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Hub shutting down")
			h.closeAll()
			return nil

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			if h.gauge != nil {
				h.gauge.Inc()
			}
			h.logger.Debug("Client registered", zap.String("connectionID", client.id), zap.Int("connections", n))

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

// Count returns the number of open connections.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	delete(h.clients, client)
	h.mu.Unlock()
	if !ok {
		return
	}
	client.close()
	if h.gauge != nil {
		h.gauge.Dec()
	}
	h.logger.Debug("Client unregistered", zap.String("connectionID", client.id))
}

func (h *Hub) closeAll() {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		h.remove(c)
	}
}
