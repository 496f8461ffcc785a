// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

//go:build !nats

package main

import (
	"context"

	"github.com/tomtom215/telemon/internal/config"
	"github.com/tomtom215/telemon/internal/engine"
	"github.com/tomtom215/telemon/internal/forwarder"
	"github.com/tomtom215/telemon/internal/logging"
)

// NATSComponents is a stub for non-NATS builds.
type NATSComponents struct{}

// InitNATS is a no-op stub for non-NATS builds.
// It returns nil to indicate NATS is not available.
func InitNATS(cfg *config.Config) (*NATSComponents, error) {
	if cfg.NATS.Enabled {
		logging.Warn().Msg("NATS_ENABLED=true but NATS support not compiled (build with -tags nats)")
	}
	return nil, nil
}

// Start returns forwarder.ErrNATSNotEnabled.
func (c *NATSComponents) Start(_ context.Context) (engine.Subscriber, error) {
	return nil, forwarder.ErrNATSNotEnabled
}

// Shutdown is a no-op stub for non-NATS builds.
func (c *NATSComponents) Shutdown(_ context.Context) {}

// IsRunning returns false for non-NATS builds.
func (c *NATSComponents) IsRunning() bool {
	return false
}

// BreakerState returns an empty state for non-NATS builds.
func (c *NATSComponents) BreakerState() string {
	return ""
}
