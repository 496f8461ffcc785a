// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package websocket

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/telemon/internal/logging"
	"github.com/tomtom215/telemon/internal/metrics"
	"github.com/tomtom215/telemon/internal/models"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled indicates the parent context was canceled.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline indicates the context deadline was exceeded.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types for WebSocket communication
const (
	MessageTypeRecords = "records"
	MessageTypePing    = "ping"
	MessageTypePong    = "pong"
	MessageTypeFilter  = "filter"
	MessageTypeError   = "error"
)

const (
	// DefaultClientBuffer is the per-client send queue length.
	DefaultClientBuffer = 256

	// DefaultPingInterval is the interval between server pings.
	DefaultPingInterval = 54 * time.Second

	// broadcastTimeout bounds how long OnRecords waits for the hub loop.
	broadcastTimeout = 2 * time.Second
)

// Message represents a WebSocket message
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// inboundMessage is a message received from a client. Data is decoded
// according to Type.
type inboundMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Hub maintains the set of active clients and streams output records of the
// processing model to them. Hub implements engine.Subscriber.
type Hub struct {
	clients      map[*Client]bool
	broadcast    chan []models.Record
	Register     chan *Client
	Unregister   chan *Client
	mu           sync.RWMutex
	clientBuffer int
	pingInterval time.Duration
}

// HubConfig configures a Hub. Zero values select the defaults.
type HubConfig struct {
	ClientBuffer int
	PingInterval time.Duration
}

// NewHub creates a new Hub
func NewHub(cfg HubConfig) *Hub {
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = DefaultClientBuffer
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = DefaultPingInterval
	}
	return &Hub{
		broadcast:    make(chan []models.Record, 256),
		Register:     make(chan *Client),
		Unregister:   make(chan *Client),
		clients:      make(map[*Client]bool),
		clientBuffer: cfg.ClientBuffer,
		pingInterval: cfg.PingInterval,
	}
}

// OnRecords queues a batch for delivery to connected clients. It blocks
// for at most broadcastTimeout; a batch that cannot be queued in time is
// dropped and counted.
func (h *Hub) OnRecords(batch []models.Record) {
	if len(batch) == 0 {
		return
	}
	timer := time.NewTimer(broadcastTimeout)
	defer timer.Stop()
	select {
	case h.broadcast <- batch:
	case <-timer.C:
		metrics.WSErrors.WithLabelValues("broadcast_timeout").Inc()
		logging.Warn().Int("records", len(batch)).Msg("broadcast channel full, dropping record batch")
	}
}

// RunWithContext runs the hub until ctx is canceled. All connected clients
// are closed on return, so a supervisor can restart the hub without leaving
// orphaned connections.
//
// DETERMINISM: Uses priority-based selection to ensure predictable behavior:
// - Priority 1: Context cancellation (shutdown)
// - Priority 2: Client lifecycle events (Register/Unregister)
// - Priority 3: Record batches
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.addClient(client)
			continue
		case client := <-h.Unregister:
			h.removeClient(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.addClient(client)
		case client := <-h.Unregister:
			h.removeClient(client)
		case batch := <-h.broadcast:
			h.broadcastToClients(batch)
		}
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()
	metrics.WSConnections.Inc()
	logging.Info().Uint64("client_id", client.id).Int("total_clients", total).Msg("websocket client connected")
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	if ok {
		metrics.WSConnections.Dec()
		logging.Info().Uint64("client_id", client.id).Int("total_clients", total).Msg("websocket client disconnected")
	}
}

// logGracefulShutdown closes all clients and logs the shutdown reason.
// ctx.Err() is not logged as an error: cancellation is the normal path.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	clientCount := h.GetClientCount()
	h.closeAllClients()

	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(getShutdownReason(ctx))).
		Int("clients_closed", clientCount).
		Msg("websocket hub stopped")
}

func getShutdownReason(ctx context.Context) ShutdownReason {
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return ShutdownReasonContextDeadline
	default:
		return ShutdownReasonContextCanceled
	}
}

// sortedClients returns the connected clients ordered by id. Caller holds mu.
func (h *Hub) sortedClients() []*Client {
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})
	return clients
}

// broadcastToClients delivers the records each client's filter selects.
// A client whose send queue is full is disconnected.
//
// DETERMINISM: Clients are visited in id order.
func (h *Hub) broadcastToClients(batch []models.Record) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// The unfiltered payload is shared by every client without a filter.
	var unfiltered json.RawMessage

	var toRemove []*Client
	for _, client := range h.sortedClients() {
		filter := client.Filter()
		var payload json.RawMessage
		if filter.IsEmpty() {
			if unfiltered == nil {
				data, err := models.MarshalRecords(batch)
				if err != nil {
					logging.Error().Err(err).Msg("failed to marshal record batch")
					return
				}
				unfiltered = data
			}
			payload = unfiltered
		} else {
			selected := filter.Apply(batch)
			if len(selected) == 0 {
				continue
			}
			data, err := models.MarshalRecords(selected)
			if err != nil {
				logging.Error().Err(err).Uint64("client_id", client.id).Msg("failed to marshal filtered batch")
				continue
			}
			payload = data
		}

		select {
		case client.send <- Message{Type: MessageTypeRecords, Data: payload}:
			metrics.WSMessagesSent.Inc()
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(h.clients, client)
		metrics.WSConnections.Dec()
		metrics.WSErrors.WithLabelValues("slow_client").Inc()
		logging.Warn().Uint64("client_id", client.id).Msg("dropping slow websocket client")
	}
}

// closeAllClients closes every connected client in id order.
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.sortedClients() {
		close(client.send)
		delete(h.clients, client)
		metrics.WSConnections.Dec()
	}
	logging.Info().Msg("closed all websocket clients during shutdown")
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// MarshalMessage converts a message to JSON
func MarshalMessage(msg Message) ([]byte, error) {
	return json.Marshal(msg)
}
