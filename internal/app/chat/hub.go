/*
Package chat contains the core logic of the real-time chat.

This file defines the Hub, the transport-side set of live websocket clients keyed by
connection handle. It implements Transport for the Controller and owns client shutdown.
*/
package chat

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"livechat/internal/pkg/logx"
)

// ErrHubClosed is returned when attaching a client after Shutdown.
var ErrHubClosed = errors.New("chat: hub is shut down")

// Hub tracks every open connection, joined or not.
type Hub struct {
	// clients maps the connection handle to its Client.
	clients map[string]*Client

	// mu protects clients and closed. Deliver sends while holding the read lock,
	// so a client's send channel is only closed after it left the map under the write lock.
	mu sync.RWMutex

	// closed is set by Shutdown; no client can attach afterwards.
	closed bool

	// structured logger with Hub context.
	logger zerolog.Logger
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logx.Component("Hub"),
	}
}

// Attach adds client under its handle.
func (h *Hub) Attach(client *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrHubClosed
	}

	h.clients[client.id] = client
	h.logger.Debug().Str("conn_id", client.id).Int("connections", len(h.clients)).Msg("Client attached.")

	return nil
}

// Detach removes client if it is still the one registered under its handle and closes its queue.
func (h *Hub) Detach(client *Client) {
	h.mu.Lock()
	current, ok := h.clients[client.id]
	if ok && current == client {
		delete(h.clients, client.id)
	}
	remaining := len(h.clients)
	h.mu.Unlock()

	client.closeSend()

	if ok {
		h.logger.Debug().Str("conn_id", client.id).Int("connections", remaining).Msg("Client detached.")
	}
}

// Deliver queues frame on the client's send channel without blocking.
func (h *Hub) Deliver(handle string, frame []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[handle]
	if !ok {
		return false
	}

	select {
	case client.send <- frame:
		return true
	default:
		return false
	}
}

// Close removes the client for handle and lets its write pump send a close frame.
func (h *Hub) Close(handle string) {
	h.mu.Lock()
	client, ok := h.clients[handle]
	if ok {
		delete(h.clients, handle)
	}
	h.mu.Unlock()

	if !ok {
		return
	}

	h.logger.Warn().Str("conn_id", handle).Msg("Closing client connection.")
	client.closeSend()
}

// Count returns the number of open connections, joined or not.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Shutdown closes every client queue and rejects further attaches.
// Each client's read pump then exits and reports the disconnect to the controller.
func (h *Hub) Shutdown() {
	h.logger.Info().Msg("Shutting down Hub...")

	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[string]*Client)
	h.mu.Unlock()

	for _, client := range clients {
		client.closeSend()
	}

	h.logger.Info().Int("closed_connections", len(clients)).Msg("Hub shutdown complete.")
}
