// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package services

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/telemon/internal/engine"
	"github.com/tomtom215/telemon/internal/models"
)

// ForwarderRunner matches the NATS forwarding components assembled by the
// server: an optional embedded server, the stream and the publisher.
//
// Start connects and returns the subscriber that receives model records.
type ForwarderRunner interface {
	Start(ctx context.Context) (engine.Subscriber, error)
	Shutdown(ctx context.Context)
	IsRunning() bool
}

// ForwarderService runs the NATS forwarding components and keeps their
// publisher subscribed to the processing model.
//
// It adapts the Start/Shutdown lifecycle pattern to suture's Serve pattern:
//  1. Calls Start(ctx) to connect the forwarder
//  2. Subscribes the forwarder to the model
//  3. Waits for context cancellation
//  4. Unsubscribes and calls Shutdown for graceful cleanup
type ForwarderService struct {
	components      ForwarderRunner
	source          RecordSource
	filter          models.RecordFilter
	shutdownTimeout time.Duration
	name            string
}

// NewForwarderService creates a new forwarder service wrapper with a
// default shutdown timeout of 10 seconds.
func NewForwarderService(components ForwarderRunner, source RecordSource, filter models.RecordFilter) *ForwarderService {
	return NewForwarderServiceWithTimeout(components, source, filter, 10*time.Second)
}

// NewForwarderServiceWithTimeout creates a forwarder service with a custom
// shutdown timeout.
func NewForwarderServiceWithTimeout(components ForwarderRunner, source RecordSource, filter models.RecordFilter, shutdownTimeout time.Duration) *ForwarderService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &ForwarderService{
		components:      components,
		source:          source,
		filter:          filter,
		shutdownTimeout: shutdownTimeout,
		name:            "nats-forwarder",
	}
}

// Serve implements suture.Service.
func (s *ForwarderService) Serve(ctx context.Context) error {
	sub, err := s.components.Start(ctx)
	if err != nil {
		return fmt.Errorf("forwarder start failed: %w", err)
	}

	shutdown := func() {
		// Fresh context, the original one is canceled.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		s.components.Shutdown(shutdownCtx)
	}

	unsubscribe, err := subscribe(s.source, sub, s.filter, s.name)
	if err != nil {
		shutdown()
		return err
	}

	<-ctx.Done()

	unsubscribe()
	shutdown()
	return ctx.Err()
}

// String implements fmt.Stringer for logging.
func (s *ForwarderService) String() string {
	return s.name
}
