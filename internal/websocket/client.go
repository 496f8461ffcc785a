// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package websocket

import (
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/telemon/internal/logging"
	"github.com/tomtom215/telemon/internal/metrics"
	"github.com/tomtom215/telemon/internal/models"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
)

// clientIDCounter generates unique, monotonically increasing IDs for clients.
// DETERMINISM: Clients are sorted by id for broadcast and shutdown.
var clientIDCounter atomic.Uint64

// Client is a middleman between the websocket connection and the hub
type Client struct {
	id     uint64
	hub    *Hub
	conn   *websocket.Conn
	send   chan Message
	filter atomic.Pointer[models.RecordFilter]
}

// NewClient creates a new Client with a unique deterministic ID. The filter
// selects which records the client receives and can be replaced by the
// client with a "filter" message.
func NewClient(hub *Hub, conn *websocket.Conn, filter models.RecordFilter) *Client {
	c := &Client{
		id:   clientIDCounter.Add(1),
		hub:  hub,
		conn: conn,
		send: make(chan Message, hub.clientBuffer),
	}
	c.filter.Store(&filter)
	return c
}

// ID returns the client's unique identifier
func (c *Client) ID() uint64 {
	return c.id
}

// Filter returns the client's current record filter.
func (c *Client) Filter() models.RecordFilter {
	if f := c.filter.Load(); f != nil {
		return *f
	}
	return models.RecordFilter{}
}

// SetFilter replaces the client's record filter.
func (c *Client) SetFilter(filter models.RecordFilter) {
	c.filter.Store(&filter)
}

func (c *Client) pongWait() time.Duration {
	return c.hub.pingInterval * 10 / 9
}

// handleMessage applies one client message. It reports a reply to queue,
// if any.
func (c *Client) handleMessage(raw []byte) (Message, bool) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		metrics.WSErrors.WithLabelValues("read").Inc()
		return Message{Type: MessageTypeError, Data: "malformed message"}, true
	}

	switch msg.Type {
	case MessageTypePing:
		return Message{Type: MessageTypePong}, true
	case MessageTypeFilter:
		var filter models.RecordFilter
		if len(msg.Data) > 0 && string(msg.Data) != "null" {
			if err := json.Unmarshal(msg.Data, &filter); err != nil {
				return Message{Type: MessageTypeError, Data: "invalid filter: " + err.Error()}, true
			}
		}
		c.SetFilter(filter)
		logging.Debug().Uint64("client_id", c.id).Bool("empty", filter.IsEmpty()).Msg("websocket filter updated")
		return Message{Type: MessageTypeFilter, Data: filter}, true
	default:
		return Message{Type: MessageTypeError, Data: "unknown message type: " + msg.Type}, true
	}
}

// readPump pumps messages from the websocket connection to the client
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.pongWait())); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				metrics.WSErrors.WithLabelValues("read").Inc()
				logging.Error().Err(err).Msg("unexpected websocket close error")
			}
			break
		}

		if reply, ok := c.handleMessage(raw); ok {
			select {
			case c.send <- reply:
			default:
			}
		}
	}
}

// writePump pumps messages from the hub to the websocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(c.hub.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The hub closed the channel
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logging.Debug().Err(err).Msg("failed to write close message")
				}
				return
			}

			data, err := MarshalMessage(message)
			if err != nil {
				logging.Error().Err(err).Str("type", message.Type).Msg("failed to marshal websocket message")
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				metrics.WSErrors.WithLabelValues("write").Inc()
				logging.Debug().Err(err).Msg("failed to write websocket message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Start begins reading and writing for the client
func (c *Client) Start() {
	go c.writePump()
	go c.readPump()
}
