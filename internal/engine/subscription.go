// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package engine

import (
	"fmt"
	"runtime/debug"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/telemon/internal/metrics"
	"github.com/tomtom215/telemon/internal/models"
)

// Subscriber receives the records of each batch that pass its filter, in
// batch order. OnRecords runs on a goroutine dedicated to the subscriber.
type Subscriber interface {
	OnRecords(batch []models.Record)
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(batch []models.Record)

// OnRecords calls f(batch).
func (f SubscriberFunc) OnRecords(batch []models.Record) { f(batch) }

// SubscriptionID identifies a subscription.
type SubscriptionID uint64

func (id SubscriptionID) String() string { return fmt.Sprintf("sub-%d", uint64(id)) }

// subscription owns an unbounded FIFO of pending batches and the goroutine
// draining it.
type subscription struct {
	id     SubscriptionID
	sub    Subscriber
	filter models.RecordFilter
	log    zerolog.Logger

	mu     sync.Mutex
	queue  [][]models.Record
	closed bool
	wake   chan struct{}
	done   chan struct{}
	exited chan struct{}
}

func newSubscription(id SubscriptionID, sub Subscriber, filter models.RecordFilter, log zerolog.Logger) *subscription {
	s := &subscription{
		id:     id,
		sub:    sub,
		filter: filter,
		log:    log.With().Uint64("subscription_id", uint64(id)).Logger(),
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
	go s.run()
	return s
}

// enqueue queues the filtered part of batch. It never blocks.
func (s *subscription) enqueue(batch []models.Record) {
	selected := s.filter.Apply(batch)
	if len(selected) == 0 {
		return
	}
	if len(selected) == len(batch) {
		selected = slices.Clone(batch)
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, selected)
	depth := len(s.queue)
	s.mu.Unlock()
	metrics.SetSubscriberQueueDepth(uint64(s.id), depth)

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// close discards pending batches and stops the worker after the delivery in
// progress, if any. It does not wait, so a subscriber may unsubscribe
// itself from OnRecords.
func (s *subscription) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.queue = nil
	s.mu.Unlock()
	close(s.done)
	metrics.ForgetSubscriber(uint64(s.id))
}

func (s *subscription) next() ([]models.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || len(s.queue) == 0 {
		return nil, false
	}
	batch := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	metrics.SetSubscriberQueueDepth(uint64(s.id), len(s.queue))
	return batch, true
}

func (s *subscription) run() {
	defer close(s.exited)
	for {
		select {
		case <-s.done:
			return
		case <-s.wake:
		}
		for {
			batch, ok := s.next()
			if !ok {
				break
			}
			s.deliver(batch)
		}
	}
}

func (s *subscription) deliver(batch []models.Record) {
	defer func() {
		if r := recover(); r != nil {
			metrics.SubscriberPanics.Inc()
			s.log.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Int("batch_size", len(batch)).
				Msg("subscriber panicked, batch skipped")
		}
	}()
	s.sub.OnRecords(batch)
}
