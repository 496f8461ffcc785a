// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/telemon/internal/definition"
	"github.com/tomtom215/telemon/internal/engine"
	"github.com/tomtom215/telemon/internal/extension"
	"github.com/tomtom215/telemon/internal/models"
)

const testDefinitions = `
parameters:
  - id: 1
    location: /sat/power/v
    raw_type: REAL
    eng_type: REAL
`

func newTestModel(t *testing.T) *engine.Model {
	t.Helper()
	defs, err := definition.Parse([]byte(testDefinitions))
	if err != nil {
		t.Fatalf("definition.Parse: %v", err)
	}
	m, err := engine.New(defs, engine.WithRegistry(extension.New()))
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	t.Cleanup(m.Stop)
	return m
}

func sample(v float64) []models.RawInput {
	now := time.Now()
	return []models.RawInput{models.ParameterSample{Path: "/sat/power/v", GenerationTime: now, ReceptionTime: now, Value: v}}
}

// fakeSource records subscriptions without a model behind it.
type fakeSource struct {
	mu           sync.Mutex
	next         engine.SubscriptionID
	subs         map[engine.SubscriptionID]engine.Subscriber
	subscribeErr error
	removed      int
}

func newFakeSource() *fakeSource {
	return &fakeSource{subs: make(map[engine.SubscriptionID]engine.Subscriber)}
}

func (f *fakeSource) Subscribe(sub engine.Subscriber, _ models.RecordFilter) (engine.SubscriptionID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return 0, f.subscribeErr
	}
	f.next++
	f.subs[f.next] = sub
	return f.next, nil
}

func (f *fakeSource) Unsubscribe(id engine.SubscriptionID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[id]; !ok {
		return fmt.Errorf("%w: %s", engine.ErrUnknownSubscription, id)
	}
	delete(f.subs, id)
	f.removed++
	return nil
}

func (f *fakeSource) active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *fakeSource) removals() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removed
}

// recordCollector is an engine.Subscriber keeping every record it gets.
type recordCollector struct {
	mu      sync.Mutex
	records []models.Record
}

func (c *recordCollector) OnRecords(batch []models.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, batch...)
}

func (c *recordCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// serveInBackground runs svc until the returned cancel is called and
// returns the Serve error channel.
func serveInBackground(svc interface {
	Serve(ctx context.Context) error
}) (context.CancelFunc, <-chan error) {
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Serve(ctx) }()
	return cancel, errCh
}

func waitServe(t *testing.T, errCh <-chan error) error {
	t.Helper()
	select {
	case err := <-errCh:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return")
		return nil
	}
}

