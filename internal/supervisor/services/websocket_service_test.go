// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/telemon/internal/engine"
	"github.com/tomtom215/telemon/internal/websocket"
)

type mockHub struct {
	recordCollector
	runErr   error
	runCount atomic.Int32
}

func (m *mockHub) RunWithContext(ctx context.Context) error {
	m.runCount.Add(1)
	if m.runErr != nil {
		return m.runErr
	}
	<-ctx.Done()
	return ctx.Err()
}

func TestWebSocketHubService_Interface(t *testing.T) {
	var _ suture.Service = (*WebSocketHubService)(nil)
	var _ RecordHub = (*websocket.Hub)(nil)
}

func TestWebSocketHubServiceServe(t *testing.T) {
	t.Parallel()

	hub := &mockHub{}
	source := newFakeSource()
	svc := NewWebSocketHubService(hub, source)
	if svc.String() != "websocket-hub" {
		t.Errorf("String() = %q", svc.String())
	}

	cancel, errCh := serveInBackground(svc)
	waitFor(t, "hub start", func() bool { return hub.runCount.Load() == 1 && source.active() == 1 })

	cancel()
	if err := waitServe(t, errCh); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if source.active() != 0 {
		t.Error("hub still subscribed after shutdown")
	}
}

func TestWebSocketHubServicePropagatesHubErrors(t *testing.T) {
	t.Parallel()

	expectedErr := errors.New("hub startup error")
	source := newFakeSource()
	err := NewWebSocketHubService(&mockHub{runErr: expectedErr}, source).Serve(context.Background())
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected %v, got %v", expectedErr, err)
	}
	if source.active() != 0 {
		t.Error("failed hub left its subscription behind")
	}
}

func TestWebSocketHubServiceStoppedModel(t *testing.T) {
	t.Parallel()

	source := newFakeSource()
	source.subscribeErr = engine.ErrStopped
	hub := &mockHub{}
	err := NewWebSocketHubService(hub, source).Serve(context.Background())
	if !errors.Is(err, suture.ErrDoNotRestart) {
		t.Errorf("expected ErrDoNotRestart, got %v", err)
	}
	if hub.runCount.Load() != 0 {
		t.Error("hub ran without a subscription")
	}
}

func TestWebSocketHubServiceFeedsRealHub(t *testing.T) {
	t.Parallel()

	model := newTestModel(t)
	if err := model.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	hub := websocket.NewHub(websocket.HubConfig{PingInterval: time.Hour})

	sup := suture.New("test-sup", suture.Spec{
		FailureThreshold: 3,
		FailureBackoff:   10 * time.Millisecond,
		Timeout:          time.Second,
	})
	sup.Add(NewWebSocketHubService(hub, model))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)

	// No clients are connected, so the broadcast only has to not block.
	for i := 0; i < 3; i++ {
		if _, err := model.Inject(context.Background(), sample(float64(i))); err != nil {
			t.Fatalf("Inject: %v", err)
		}
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop")
	}
}
