// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package config

import "time"

// Config holds all application configuration loaded from defaults, an
// optional YAML file and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: Built-in sensible defaults for all optional settings
//  2. Config File: Optional YAML config file (config.yaml)
//  3. Environment Variables: Override any setting via environment variables
//
// Configuration Categories:
//
//  1. Processing:
//     - Engine: processing definitions and queue sizes
//     - Archive: BadgerDB record archive
//
//  2. Distribution:
//     - NATS: record forwarding over NATS JetStream (optional)
//     - WebSocket: live record streaming to browser clients
//
//  3. Infrastructure:
//     - Server: HTTP API server
//     - Supervisor: suture failure handling and shutdown
//     - Logging: log levels and output formats
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Engine     EngineConfig     `koanf:"engine"`
	Archive    ArchiveConfig    `koanf:"archive"`
	NATS       NATSConfig       `koanf:"nats"`
	WebSocket  WebSocketConfig  `koanf:"websocket"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	// Host is the bind address.
	Host string `koanf:"host"`

	// Port is the listen port.
	Port int `koanf:"port"`

	// Timeout bounds request reads and writes.
	Timeout time.Duration `koanf:"timeout"`

	// CORSOrigins lists allowed origins. "*" allows any origin.
	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitReqs is the number of requests allowed per RateLimitWindow
	// and client IP.
	RateLimitReqs int `koanf:"rate_limit_reqs"`

	// RateLimitWindow is the rate limiting window.
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	// RateLimitDisabled turns rate limiting off (testing only).
	RateLimitDisabled bool `koanf:"rate_limit_disabled"`

	// MaxBodyBytes bounds request bodies of inject and status calls.
	MaxBodyBytes int64 `koanf:"max_body_bytes"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level: trace, debug, info, warn, error.
	// Default: info
	Level string `koanf:"level"`

	// Format is the output format: json or console.
	// Default: json
	Format string `koanf:"format"`

	// Caller includes caller file and line number in logs.
	Caller bool `koanf:"caller"`
}

// EngineConfig holds processing model configuration.
type EngineConfig struct {
	// DefinitionsFile is the YAML file with the processing definitions.
	DefinitionsFile string `koanf:"definitions_file"`

	// InjectQueueSize bounds the number of batches waiting for processing.
	InjectQueueSize int `koanf:"inject_queue_size"`

	// ArchiveQueueSize bounds the number of batches waiting for the archive.
	ArchiveQueueSize int `koanf:"archive_queue_size"`

	// AllowUnresolvedExtensions lets the model start when a definition names
	// an external calibrator or checker that is not registered. Affected
	// parameters produce degraded records instead.
	AllowUnresolvedExtensions bool `koanf:"allow_unresolved_extensions"`

	// AlarmLogInterval rate limits alarm transition logs per parameter.
	AlarmLogInterval time.Duration `koanf:"alarm_log_interval"`
}

// ArchiveConfig holds the record archive configuration.
type ArchiveConfig struct {
	// Enabled controls whether output records are archived.
	Enabled bool `koanf:"enabled"`

	// Path is the BadgerDB directory.
	Path string `koanf:"path"`

	// SyncWrites forces fsync after every batch.
	SyncWrites bool `koanf:"sync_writes"`

	// Compression enables Snappy compression.
	Compression bool `koanf:"compression"`

	// Retention expires records after this long. Zero keeps them forever.
	Retention time.Duration `koanf:"retention"`

	// GCInterval is the time between value log GC runs.
	GCInterval time.Duration `koanf:"gc_interval"`
}

// NATSConfig holds record forwarding configuration.
type NATSConfig struct {
	// Enabled controls whether records are forwarded to NATS.
	// Requires a binary built with -tags nats.
	Enabled bool `koanf:"enabled"`

	// URL is the NATS server connection URL.
	URL string `koanf:"url"`

	// EmbeddedServer enables embedded NATS server.
	// If false, expects external NATS server at URL.
	EmbeddedServer bool `koanf:"embedded_server"`

	// EmbeddedPort is the client port of the embedded server.
	EmbeddedPort int `koanf:"embedded_port"`

	// StoreDir is the JetStream storage directory.
	StoreDir string `koanf:"store_dir"`

	// MaxMemory is the maximum memory for JetStream in bytes.
	MaxMemory int64 `koanf:"max_memory"`

	// MaxStore is the maximum disk storage for JetStream in bytes.
	MaxStore int64 `koanf:"max_store"`

	// SubjectPrefix is prepended to the record type to form the subject,
	// for example telemetry.parameter.
	SubjectPrefix string `koanf:"subject_prefix"`

	// StreamRetentionDays is how long JetStream keeps records.
	StreamRetentionDays int `koanf:"stream_retention_days"`

	// Circuit breaker guarding publishes.
	BreakerMaxRequests      uint32        `koanf:"breaker_max_requests"`
	BreakerInterval         time.Duration `koanf:"breaker_interval"`
	BreakerTimeout          time.Duration `koanf:"breaker_timeout"`
	BreakerFailureThreshold uint32        `koanf:"breaker_failure_threshold"`
}

// WebSocketConfig holds live streaming configuration.
type WebSocketConfig struct {
	// ClientBuffer is the number of record batches buffered per client.
	// Clients that fall further behind are disconnected.
	ClientBuffer int `koanf:"client_buffer"`

	// PingInterval is the keepalive ping period.
	PingInterval time.Duration `koanf:"ping_interval"`
}

// SupervisorConfig holds supervisor tree configuration.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold"`
	FailureDecay     float64       `koanf:"failure_decay"`
	FailureBackoff   time.Duration `koanf:"failure_backoff"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout"`
}
