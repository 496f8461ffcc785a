// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/telemon/internal/models"
)

// setupWebSocketServer serves the hub on a test server
func setupWebSocketServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, models.RecordFilter{})
		hub.Register <- client
		client.Start()
	}))
	t.Cleanup(srv.Close)
	return srv
}

// dialWebSocket establishes a WebSocket connection to the test server
func dialWebSocket(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readInbound(t *testing.T, conn *websocket.Conn) inboundMessage {
	t.Helper()
	if err := conn.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("SetReadDeadline: %v", err)
	}
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	return msg
}

func writeMessage(t *testing.T, conn *websocket.Conn, msg Message) {
	t.Helper()
	data, err := MarshalMessage(msg)
	if err != nil {
		t.Fatalf("MarshalMessage: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("WriteMessage: %v", err)
	}
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	hub := NewHub(HubConfig{ClientBuffer: 16})
	filter := models.RecordFilter{Types: []models.RecordType{models.RecordAlarm}}
	a := NewClient(hub, nil, filter)
	b := NewClient(hub, nil, models.RecordFilter{})

	if b.ID() <= a.ID() {
		t.Errorf("client ids not increasing: %d then %d", a.ID(), b.ID())
	}
	if cap(a.send) != 16 {
		t.Errorf("send buffer = %d, want 16", cap(a.send))
	}
	if got := a.Filter(); len(got.Types) != 1 || got.Types[0] != models.RecordAlarm {
		t.Errorf("Filter() = %+v", got)
	}
	if !b.Filter().IsEmpty() {
		t.Error("client without filter should match everything")
	}
}

func TestClientHandleMessage(t *testing.T) {
	t.Parallel()

	hub := NewHub(HubConfig{})
	tests := []struct {
		name     string
		raw      string
		wantType string
	}{
		{"ping", `{"type":"ping"}`, MessageTypePong},
		{"filter", `{"type":"filter","data":{"types":["event"]}}`, MessageTypeFilter},
		{"clear filter", `{"type":"filter","data":null}`, MessageTypeFilter},
		{"bad filter", `{"type":"filter","data":{"types":["bogus"]}}`, MessageTypeError},
		{"unknown", `{"type":"subscribe"}`, MessageTypeError},
		{"malformed", `not json`, MessageTypeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := NewClient(hub, nil, models.RecordFilter{})
			reply, ok := c.handleMessage([]byte(tt.raw))
			if !ok || reply.Type != tt.wantType {
				t.Errorf("reply = %+v (%v), want type %s", reply, ok, tt.wantType)
			}
		})
	}

	c := NewClient(hub, nil, models.RecordFilter{})
	c.handleMessage([]byte(`{"type":"filter","data":{"path_prefixes":["/sat/power"],"types":["parameter"]}}`))
	got := c.Filter()
	if len(got.PathPrefixes) != 1 || got.PathPrefixes[0] != "/sat/power" || got.Types[0] != models.RecordParameter {
		t.Errorf("filter after update = %+v", got)
	}
}

func TestClientStreamsRecordsOverConnection(t *testing.T) {
	t.Parallel()

	hub := setupHub(t, HubConfig{PingInterval: time.Minute})
	srv := setupWebSocketServer(t, hub)
	conn := dialWebSocket(t, srv)
	waitFor(t, func() bool { return hub.GetClientCount() == 1 })

	writeMessage(t, conn, Message{Type: MessageTypePing})
	if msg := readInbound(t, conn); msg.Type != MessageTypePong {
		t.Fatalf("reply to ping = %s", msg.Type)
	}

	writeMessage(t, conn, Message{Type: MessageTypeFilter, Data: models.RecordFilter{
		Types: []models.RecordType{models.RecordEvent},
	}})
	if msg := readInbound(t, conn); msg.Type != MessageTypeFilter {
		t.Fatalf("reply to filter = %s", msg.Type)
	}

	hub.OnRecords(testBatch())
	msg := readInbound(t, conn)
	if msg.Type != MessageTypeRecords {
		t.Fatalf("message type = %s", msg.Type)
	}
	var envs []models.Envelope
	if err := json.Unmarshal(msg.Data, &envs); err != nil {
		t.Fatalf("decode records: %v", err)
	}
	if len(envs) != 1 || envs[0].Type != models.RecordEvent {
		t.Errorf("received %+v, want the event only", envs)
	}

	_ = conn.Close()
	waitFor(t, func() bool { return hub.GetClientCount() == 0 })
}
