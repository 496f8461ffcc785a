// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package forwarder

import "time"

// Config holds record forwarding configuration.
type Config struct {
	// URL is the NATS server connection URL. Ignored when an embedded
	// server is used.
	URL string

	// SubjectPrefix is prepended to the record type: <prefix>.<type>.
	SubjectPrefix string

	// MaxReconnects is the reconnect limit. -1 retries forever.
	MaxReconnects int

	// ReconnectWait is the delay between reconnect attempts.
	ReconnectWait time.Duration

	// ReconnectBuffer is the number of bytes buffered while disconnected.
	ReconnectBuffer int

	// CircuitBreaker guards every publish.
	CircuitBreaker CircuitBreakerConfig
}

// DefaultConfig returns production defaults for forwarding.
func DefaultConfig(url string) Config {
	return Config{
		URL:             url,
		SubjectPrefix:   "telemetry",
		MaxReconnects:   -1, // Unlimited
		ReconnectWait:   2 * time.Second,
		ReconnectBuffer: 8 * 1024 * 1024, // 8MB
		CircuitBreaker:  DefaultCircuitBreakerConfig("nats-forwarder"),
	}
}

// ServerConfig holds embedded NATS server configuration.
type ServerConfig struct {
	Host              string
	Port              int
	StoreDir          string
	JetStreamMaxMem   int64
	JetStreamMaxStore int64
}

// DefaultServerConfig returns production defaults for embedded NATS server.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:              "127.0.0.1",
		Port:              4222,
		StoreDir:          "/data/nats/jetstream",
		JetStreamMaxMem:   1 << 30,  // 1GB
		JetStreamMaxStore: 10 << 30, // 10GB
	}
}

// StreamConfig defines the record stream settings.
type StreamConfig struct {
	Name            string
	Subjects        []string
	MaxAge          time.Duration
	MaxBytes        int64
	DuplicateWindow time.Duration
	Replicas        int
}

// DefaultStreamConfig returns the stream capturing every subject under prefix.
func DefaultStreamConfig(prefix string) StreamConfig {
	return StreamConfig{
		Name:            "TELEMETRY_RECORDS",
		Subjects:        []string{prefix + ".>"},
		MaxAge:          7 * 24 * time.Hour,      // 7 days
		MaxBytes:        10 * 1024 * 1024 * 1024, // 10GB
		DuplicateWindow: 2 * time.Minute,
		Replicas:        1,
	}
}

// CircuitBreakerConfig holds circuit breaker settings.
type CircuitBreakerConfig struct {
	Name             string
	MaxRequests      uint32        // Allowed in half-open state
	Interval         time.Duration // Reset interval for counts
	Timeout          time.Duration // Time to stay open
	FailureThreshold uint32        // Failures before opening
}

// DefaultCircuitBreakerConfig returns production defaults.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          10 * time.Second,
		FailureThreshold: 5,
	}
}
