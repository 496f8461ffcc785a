// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

/*
Package main is the entry point for the telemon server.

The server loads the processing definitions of a monitored system, builds
the processing model and exposes it over HTTP: raw telemetry is injected
through the REST API, output records stream to WebSocket clients, are
archived in BadgerDB and can be forwarded to NATS JetStream.

# Application Architecture

	RootSupervisor ("telemon")
	├── ModelSupervisor ("model-layer")
	│   ├── Processing model
	│   └── Archive compactor (if ARCHIVE_ENABLED)
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocket hub
	│   └── NATS forwarder (optional, -tags nats)
	└── APISupervisor ("api-layer")
	    └── HTTP server

Initialization order:

 1. Configuration: Koanf v2 with environment variables and config files
 2. Logging: zerolog with JSON/console output modes
 3. Definitions: YAML processing definitions
 4. Archive: BadgerDB record archive (optional)
 5. Processing model: dependency graph, processors, subscriptions
 6. WebSocket hub and NATS forwarder (optional)
 7. HTTP server: Chi router with middleware stack
 8. Supervisor tree: Suture v4 process supervision

# Configuration

Priority: Environment variables > Config file > Defaults

	DEFINITIONS_FILE=/etc/telemon/definitions.yaml
	HTTP_HOST=0.0.0.0
	HTTP_PORT=8080
	LOG_LEVEL=info               # trace, debug, info, warn, error
	LOG_FORMAT=json              # json or console
	CORS_ORIGINS=https://ops.example

	ARCHIVE_ENABLED=true
	ARCHIVE_PATH=/data/archive
	ARCHIVE_RETENTION=720h

	NATS_ENABLED=true            # requires -tags nats
	NATS_EMBEDDED=true
	NATS_SUBJECT_PREFIX=telemetry

# Build Tags

	go build ./cmd/server               # without NATS forwarding
	go build -tags nats ./cmd/server    # with NATS forwarding

# Signal Handling

SIGINT and SIGTERM cancel the supervisor tree. The HTTP server drains
requests, the model applies every accepted batch and flushes the archive
queue, and the archive is closed last.
*/
package main
