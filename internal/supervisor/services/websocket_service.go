// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package services

import (
	"context"

	"github.com/tomtom215/telemon/internal/engine"
	"github.com/tomtom215/telemon/internal/models"
)

// RecordHub matches *websocket.Hub: it runs until its context ends and
// receives record batches from the model.
type RecordHub interface {
	engine.Subscriber
	RunWithContext(ctx context.Context) error
}

// WebSocketHubService runs the WebSocket hub and feeds it every record the
// model produces. Per-client filtering happens in the hub, so the hub
// subscribes without a filter.
//
// Example usage:
//
//	hub := websocket.NewHub(websocket.HubConfig{})
//	svc := services.NewWebSocketHubService(hub, model)
//	tree.AddMessagingService(svc)
type WebSocketHubService struct {
	hub    RecordHub
	source RecordSource
	name   string
}

// NewWebSocketHubService creates a new WebSocket hub service wrapper.
func NewWebSocketHubService(hub RecordHub, source RecordSource) *WebSocketHubService {
	return &WebSocketHubService{
		hub:    hub,
		source: source,
		name:   "websocket-hub",
	}
}

// Serve implements suture.Service.
//
// The subscription is removed before the hub closes its clients, so no
// batch is broadcast into a stopped hub.
func (w *WebSocketHubService) Serve(ctx context.Context) error {
	unsubscribe, err := subscribe(w.source, w.hub, models.RecordFilter{}, w.name)
	if err != nil {
		return err
	}

	hubCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.hub.RunWithContext(hubCtx) }()

	select {
	case err := <-done:
		unsubscribe()
		return err
	case <-ctx.Done():
	}

	unsubscribe()
	cancel()
	<-done
	return ctx.Err()
}

// String implements fmt.Stringer for logging.
func (w *WebSocketHubService) String() string {
	return w.name
}
