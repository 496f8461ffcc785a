// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks that required configuration is present and valid
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateLogging,
		c.validateEngine,
		c.validateArchive,
		c.validateNATS,
		c.validateWebSocket,
		c.validateSupervisor,
	}
	for _, validator := range validators {
		if err := validator(); err != nil {
			return err
		}
	}
	return nil
}

// validateServer validates the HTTP server configuration
func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	if c.Server.MaxBodyBytes < 1024 {
		return fmt.Errorf("HTTP_MAX_BODY_BYTES must be at least 1024")
	}
	if err := c.validateCORS(); err != nil {
		return err
	}
	return c.validateRateLimits()
}

// validateCORS rejects empty origins
func (c *Config) validateCORS() error {
	for _, origin := range c.Server.CORSOrigins {
		if strings.TrimSpace(origin) == "" {
			return fmt.Errorf("CORS_ORIGINS must not contain empty entries")
		}
	}
	return nil
}

// validateRateLimits validates rate limiting bounds
func (c *Config) validateRateLimits() error {
	if c.Server.RateLimitDisabled {
		return nil
	}
	if c.Server.RateLimitReqs < 1 || c.Server.RateLimitReqs > 100000 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be between 1 and 100000")
	}
	if c.Server.RateLimitWindow < time.Second || c.Server.RateLimitWindow > time.Hour {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be between 1s and 1h")
	}
	return nil
}

// validateLogging validates logging level and format
func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, got: %s", c.Logging.Level)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got: %s", c.Logging.Format)
	}
	return nil
}

// Engine limit constants
const (
	engineMaxQueueSize = 65536
)

// validateEngine validates the processing model configuration
func (c *Config) validateEngine() error {
	if c.Engine.DefinitionsFile == "" {
		return fmt.Errorf("DEFINITIONS_FILE is required")
	}
	if c.Engine.InjectQueueSize < 1 || c.Engine.InjectQueueSize > engineMaxQueueSize {
		return fmt.Errorf("ENGINE_INJECT_QUEUE_SIZE must be between 1 and %d", engineMaxQueueSize)
	}
	if c.Engine.ArchiveQueueSize < 1 || c.Engine.ArchiveQueueSize > engineMaxQueueSize {
		return fmt.Errorf("ENGINE_ARCHIVE_QUEUE_SIZE must be between 1 and %d", engineMaxQueueSize)
	}
	if c.Engine.AlarmLogInterval < 0 {
		return fmt.Errorf("ENGINE_ALARM_LOG_INTERVAL must not be negative")
	}
	return nil
}

// validateArchive validates the archive configuration (only if enabled)
func (c *Config) validateArchive() error {
	if !c.Archive.Enabled {
		return nil
	}
	if c.Archive.Path == "" {
		return fmt.Errorf("ARCHIVE_PATH is required when ARCHIVE_ENABLED=true")
	}
	if c.Archive.Retention < 0 {
		return fmt.Errorf("ARCHIVE_RETENTION must not be negative")
	}
	if c.Archive.GCInterval < time.Second {
		return fmt.Errorf("ARCHIVE_GC_INTERVAL must be at least 1s")
	}
	return nil
}

// NATS limit constants
const (
	natsMinMemory    = 64 * 1024 * 1024  // 64MB
	natsMinStore     = 100 * 1024 * 1024 // 100MB
	natsMaxRetention = 365
	natsMinRetention = 1
)

// validateNATS validates the forwarding configuration (only if enabled)
func (c *Config) validateNATS() error {
	if !c.NATS.Enabled {
		return nil
	}

	if err := validateNATSURL(c.NATS.URL); err != nil {
		return fmt.Errorf("NATS_URL is invalid: %w", err)
	}
	if err := validateSubjectPrefix(c.NATS.SubjectPrefix); err != nil {
		return fmt.Errorf("NATS_SUBJECT_PREFIX is invalid: %w", err)
	}

	return c.validateNATSLimits()
}

// validateNATSLimits validates NATS storage and breaker limits
func (c *Config) validateNATSLimits() error {
	if c.NATS.EmbeddedServer {
		if c.NATS.MaxMemory < natsMinMemory {
			return fmt.Errorf("NATS_MAX_MEMORY must be at least 64MB (67108864 bytes)")
		}
		if c.NATS.MaxStore < natsMinStore {
			return fmt.Errorf("NATS_MAX_STORE must be at least 100MB (104857600 bytes)")
		}
	}
	if c.NATS.StreamRetentionDays < natsMinRetention || c.NATS.StreamRetentionDays > natsMaxRetention {
		return fmt.Errorf("NATS_RETENTION_DAYS must be between 1 and 365")
	}
	if c.NATS.BreakerFailureThreshold < 1 {
		return fmt.Errorf("NATS_BREAKER_FAILURES must be at least 1")
	}
	if c.NATS.BreakerTimeout <= 0 {
		return fmt.Errorf("NATS_BREAKER_TIMEOUT must be positive")
	}
	return nil
}

// validateWebSocket validates live streaming configuration
func (c *Config) validateWebSocket() error {
	if c.WebSocket.ClientBuffer < 1 {
		return fmt.Errorf("WS_CLIENT_BUFFER must be at least 1")
	}
	if c.WebSocket.PingInterval < time.Second {
		return fmt.Errorf("WS_PING_INTERVAL must be at least 1s")
	}
	return nil
}

// validateSupervisor validates supervisor tree configuration
func (c *Config) validateSupervisor() error {
	if c.Supervisor.FailureThreshold < 0 || c.Supervisor.FailureDecay < 0 {
		return fmt.Errorf("SUPERVISOR_FAILURE_THRESHOLD and SUPERVISOR_FAILURE_DECAY must not be negative")
	}
	if c.Supervisor.ShutdownTimeout < 0 {
		return fmt.Errorf("SUPERVISOR_SHUTDOWN_TIMEOUT must not be negative")
	}
	return nil
}
