// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

/*
Package config provides centralized configuration management for Telemon.

Configuration is loaded with Koanf v2 from three layers, later layers
overriding earlier ones:

 1. Built-in defaults (see defaultConfig)
 2. An optional YAML file: CONFIG_PATH, ./config.yaml or /etc/telemon/config.yaml
 3. Environment variables with an explicit name mapping

# Environment Variables

Server:
  - HTTP_HOST, HTTP_PORT (default: 0.0.0.0:8080)
  - HTTP_TIMEOUT (default: 30s)
  - CORS_ORIGINS: comma-separated list (default: *)
  - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW (default: 100 per 1m)
  - DISABLE_RATE_LIMIT

Engine:
  - DEFINITIONS_FILE: processing definitions YAML (required)
  - ENGINE_INJECT_QUEUE_SIZE, ENGINE_ARCHIVE_QUEUE_SIZE
  - ENGINE_ALLOW_UNRESOLVED_EXTENSIONS (default: false)
  - ENGINE_ALARM_LOG_INTERVAL (default: 1m)

Archive:
  - ARCHIVE_ENABLED (default: true)
  - ARCHIVE_PATH (default: /data/archive)
  - ARCHIVE_SYNC_WRITES, ARCHIVE_COMPRESSION
  - ARCHIVE_RETENTION (default: 720h), ARCHIVE_GC_INTERVAL (default: 10m)

NATS forwarding (requires -tags nats):
  - NATS_ENABLED (default: false), NATS_URL, NATS_EMBEDDED
  - NATS_SUBJECT_PREFIX (default: telemetry)
  - NATS_BREAKER_FAILURES, NATS_BREAKER_TIMEOUT

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

# Usage

	cfg, err := config.LoadWithKoanf()
	if err != nil {
	    logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

Validation errors name the environment variable to fix.
*/
package config
