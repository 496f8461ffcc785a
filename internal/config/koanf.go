// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/telemon/config.yaml",
	"/etc/telemon/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all sensible default values.
// These defaults are applied first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         30 * time.Second,
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			MaxBodyBytes:    4 << 20, // 4MB
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Engine: EngineConfig{
			DefinitionsFile:           "/etc/telemon/definitions.yaml",
			InjectQueueSize:           64,
			ArchiveQueueSize:          256,
			AllowUnresolvedExtensions: false,
			AlarmLogInterval:          time.Minute,
		},
		Archive: ArchiveConfig{
			Enabled:     true,
			Path:        "/data/archive",
			SyncWrites:  true,
			Compression: true,
			Retention:   30 * 24 * time.Hour,
			GCInterval:  10 * time.Minute,
		},
		NATS: NATSConfig{
			Enabled:                 false,
			URL:                     "nats://127.0.0.1:4222",
			EmbeddedServer:          true,
			EmbeddedPort:            4222,
			StoreDir:                "/data/nats/jetstream",
			MaxMemory:               1 << 30,  // 1GB
			MaxStore:                10 << 30, // 10GB
			SubjectPrefix:           "telemetry",
			StreamRetentionDays:     7,
			BreakerMaxRequests:      3,
			BreakerInterval:         30 * time.Second,
			BreakerTimeout:          10 * time.Second,
			BreakerFailureThreshold: 5,
		},
		WebSocket: WebSocketConfig{
			ClientBuffer: 256,
			PingInterval: 54 * time.Second,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5.0,
			FailureDecay:     30.0,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: Built-in sensible defaults
//  2. Config File: Optional YAML config file (if exists)
//  3. Environment Variables: Override any setting
//
// Precedence is ENV > File > Defaults. The result is validated before it is
// returned.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: Load defaults from struct
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: Load config file (optional)
	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: Load environment variables (highest priority)
	// Transform environment variable names to koanf paths:
	// HTTP_PORT -> server.port
	// ARCHIVE_RETENTION -> archive.retention
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Post-process slice fields from comma-separated strings
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	// Unmarshal into Config struct
	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file in the default paths.
// Returns the path to the first file found, or empty string if none found.
func findConfigFile() string {
	// Check environment variable first
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	// Search default paths
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths defines which config paths should be parsed as comma-separated slices
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
// This is necessary because env vars come in as strings, but the config expects slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// If it's already a slice (from YAML file), skip
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		// If it's a string, split by comma
		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envMappings maps environment variable names (lower case) to koanf paths.
var envMappings = map[string]string{
	// Server mappings
	"http_host":           "server.host",
	"http_port":           "server.port",
	"http_timeout":        "server.timeout",
	"cors_origins":        "server.cors_origins",
	"rate_limit_requests": "server.rate_limit_reqs",
	"rate_limit_window":   "server.rate_limit_window",
	"disable_rate_limit":  "server.rate_limit_disabled",
	"http_max_body_bytes": "server.max_body_bytes",

	// Logging mappings
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Engine mappings
	"definitions_file":                   "engine.definitions_file",
	"engine_inject_queue_size":           "engine.inject_queue_size",
	"engine_archive_queue_size":          "engine.archive_queue_size",
	"engine_allow_unresolved_extensions": "engine.allow_unresolved_extensions",
	"engine_alarm_log_interval":          "engine.alarm_log_interval",

	// Archive mappings
	"archive_enabled":     "archive.enabled",
	"archive_path":        "archive.path",
	"archive_sync_writes": "archive.sync_writes",
	"archive_compression": "archive.compression",
	"archive_retention":   "archive.retention",
	"archive_gc_interval": "archive.gc_interval",

	// NATS mappings
	"nats_enabled":             "nats.enabled",
	"nats_url":                 "nats.url",
	"nats_embedded":            "nats.embedded_server",
	"nats_embedded_port":       "nats.embedded_port",
	"nats_store_dir":           "nats.store_dir",
	"nats_max_memory":          "nats.max_memory",
	"nats_max_store":           "nats.max_store",
	"nats_subject_prefix":      "nats.subject_prefix",
	"nats_retention_days":      "nats.stream_retention_days",
	"nats_breaker_max_request": "nats.breaker_max_requests",
	"nats_breaker_interval":    "nats.breaker_interval",
	"nats_breaker_timeout":     "nats.breaker_timeout",
	"nats_breaker_failures":    "nats.breaker_failure_threshold",

	// WebSocket mappings
	"ws_client_buffer": "websocket.client_buffer",
	"ws_ping_interval": "websocket.ping_interval",

	// Supervisor mappings
	"supervisor_failure_threshold": "supervisor.failure_threshold",
	"supervisor_failure_decay":     "supervisor.failure_decay",
	"supervisor_failure_backoff":   "supervisor.failure_backoff",
	"supervisor_shutdown_timeout":  "supervisor.shutdown_timeout",
}

// envTransformFunc transforms environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - DEFINITIONS_FILE -> engine.definitions_file
//   - NATS_EMBEDDED -> nats.embedded_server
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}

	// For unmapped keys, return empty string to skip them
	// This prevents random environment variables from polluting config
	return ""
}
