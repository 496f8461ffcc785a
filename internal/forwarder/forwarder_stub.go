// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

//go:build !nats

package forwarder

import (
	"context"

	"github.com/tomtom215/telemon/internal/models"
)

// Forwarder is a stub when NATS dependencies are not available.
// Build with -tags=nats to enable record forwarding.
type Forwarder struct{}

// New returns ErrNATSNotEnabled when NATS dependencies are not available.
func New(cfg Config) (*Forwarder, error) {
	return nil, ErrNATSNotEnabled
}

// OnRecords is a no-op stub.
func (f *Forwarder) OnRecords([]models.Record) {}

// Publish is a stub that returns ErrNATSNotEnabled.
func (f *Forwarder) Publish(ctx context.Context, batch []models.Record) error {
	return ErrNATSNotEnabled
}

// BreakerState always reports closed for the stub.
func (f *Forwarder) BreakerState() string {
	return "closed"
}

// Close is a no-op stub.
func (f *Forwarder) Close() error {
	return nil
}
