// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

//go:build nats

package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tomtom215/telemon/internal/config"
	"github.com/tomtom215/telemon/internal/engine"
	"github.com/tomtom215/telemon/internal/forwarder"
	"github.com/tomtom215/telemon/internal/logging"
)

// NATSComponents holds the NATS forwarding components for lifecycle
// management: an optional embedded server and the record forwarder.
type NATSComponents struct {
	cfg config.NATSConfig

	server    *forwarder.EmbeddedServer
	forwarder *forwarder.Forwarder

	mu      sync.Mutex
	running bool
}

// InitNATS prepares record forwarding when NATS_ENABLED=true. Nothing
// connects until Start, so a NATS outage does not keep the server from
// starting.
func InitNATS(cfg *config.Config) (*NATSComponents, error) {
	if !cfg.NATS.Enabled {
		logging.Info().Msg("NATS record forwarding disabled (NATS_ENABLED=false)")
		return nil, nil
	}
	if !cfg.NATS.EmbeddedServer && cfg.NATS.URL == "" {
		return nil, errors.New("NATS_URL is required without an embedded server")
	}
	return &NATSComponents{cfg: cfg.NATS}, nil
}

// Start launches the embedded server if configured, ensures the record
// stream exists and connects the forwarder. It returns the forwarder as
// the subscriber for model records.
func (c *NATSComponents) Start(ctx context.Context) (engine.Subscriber, error) {
	if c == nil {
		return nil, errors.New("NATS forwarding not initialized")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return c.forwarder, nil
	}

	url := c.cfg.URL
	if c.cfg.EmbeddedServer {
		if c.server == nil || !c.server.IsRunning() {
			serverCfg := forwarder.DefaultServerConfig()
			serverCfg.StoreDir = c.cfg.StoreDir
			if c.cfg.EmbeddedPort != 0 {
				serverCfg.Port = c.cfg.EmbeddedPort
			}
			if c.cfg.MaxMemory > 0 {
				serverCfg.JetStreamMaxMem = c.cfg.MaxMemory
			}
			if c.cfg.MaxStore > 0 {
				serverCfg.JetStreamMaxStore = c.cfg.MaxStore
			}
			srv, err := forwarder.NewEmbeddedServer(&serverCfg)
			if err != nil {
				return nil, fmt.Errorf("start embedded NATS server: %w", err)
			}
			c.server = srv
			logging.Info().Str("url", srv.ClientURL()).Msg("Embedded NATS server started")
		}
		url = c.server.ClientURL()
	}

	streamCfg := forwarder.DefaultStreamConfig(c.cfg.SubjectPrefix)
	if c.cfg.StreamRetentionDays > 0 {
		streamCfg.MaxAge = time.Duration(c.cfg.StreamRetentionDays) * 24 * time.Hour
	}
	if err := forwarder.EnsureStream(ctx, url, streamCfg); err != nil {
		c.shutdownLocked(context.Background())
		return nil, fmt.Errorf("ensure record stream: %w", err)
	}

	fwdCfg := forwarder.DefaultConfig(url)
	fwdCfg.SubjectPrefix = c.cfg.SubjectPrefix
	if c.cfg.BreakerMaxRequests > 0 {
		fwdCfg.CircuitBreaker.MaxRequests = c.cfg.BreakerMaxRequests
	}
	if c.cfg.BreakerInterval > 0 {
		fwdCfg.CircuitBreaker.Interval = c.cfg.BreakerInterval
	}
	if c.cfg.BreakerTimeout > 0 {
		fwdCfg.CircuitBreaker.Timeout = c.cfg.BreakerTimeout
	}
	if c.cfg.BreakerFailureThreshold > 0 {
		fwdCfg.CircuitBreaker.FailureThreshold = c.cfg.BreakerFailureThreshold
	}

	fwd, err := forwarder.New(fwdCfg)
	if err != nil {
		c.shutdownLocked(context.Background())
		return nil, fmt.Errorf("connect forwarder: %w", err)
	}
	c.forwarder = fwd
	c.running = true

	logging.Info().
		Str("url", url).
		Str("subject_prefix", fwdCfg.SubjectPrefix).
		Str("stream", streamCfg.Name).
		Msg("NATS record forwarding started")
	return fwd, nil
}

// Shutdown closes the forwarder and stops the embedded server.
func (c *NATSComponents) Shutdown(ctx context.Context) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shutdownLocked(ctx)
}

func (c *NATSComponents) shutdownLocked(ctx context.Context) {
	if c.forwarder != nil {
		if err := c.forwarder.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing NATS forwarder")
		}
		c.forwarder = nil
	}
	if c.server != nil {
		if err := c.server.Shutdown(ctx); err != nil {
			logging.Warn().Err(err).Msg("Error stopping embedded NATS server")
		}
		c.server = nil
	}
	if c.running {
		logging.Info().Msg("NATS record forwarding stopped")
	}
	c.running = false
}

// IsRunning reports whether the forwarder is connected.
func (c *NATSComponents) IsRunning() bool {
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// BreakerState reports the forwarder circuit breaker state for the health
// endpoint. It is empty while the forwarder is not connected.
func (c *NATSComponents) BreakerState() string {
	if c == nil {
		return ""
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.forwarder == nil {
		return ""
	}
	return c.forwarder.BreakerState()
}
