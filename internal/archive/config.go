// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package archive

import "time"

// Config holds the archive settings. It is filled from the archive section
// of the application configuration.
type Config struct {
	// Path is the directory where BadgerDB stores its files.
	Path string

	// SyncWrites forces fsync after every batch.
	SyncWrites bool

	// Compression enables Snappy compression of stored records.
	Compression bool

	// Retention expires records after this long. Zero keeps them forever.
	Retention time.Duration

	// GCInterval is the time between value log GC runs.
	GCInterval time.Duration

	// GCRatio is the discard ratio for value log garbage collection.
	GCRatio float64

	// BadgerDB tuning options
	MemTableSize     int64
	ValueLogFileSize int64
	NumCompactors    int

	// CloseTimeout bounds Close.
	CloseTimeout time.Duration
}

// DefaultConfig favours durability over throughput.
func DefaultConfig() Config {
	return Config{
		Path:             "/data/archive",
		SyncWrites:       true,
		Compression:      true,
		Retention:        30 * 24 * time.Hour,
		GCInterval:       10 * time.Minute,
		GCRatio:          0.5,
		MemTableSize:     16 * 1024 * 1024,
		ValueLogFileSize: 64 * 1024 * 1024,
		NumCompactors:    2,
		CloseTimeout:     30 * time.Second,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Path == "" {
		return &ConfigError{Field: "Path", Message: "archive path is required"}
	}
	if c.Retention < 0 {
		return &ConfigError{Field: "Retention", Message: "must not be negative"}
	}
	if c.GCInterval < time.Second {
		return &ConfigError{Field: "GCInterval", Message: "must be at least 1 second"}
	}
	if c.GCRatio <= 0 || c.GCRatio >= 1 {
		return &ConfigError{Field: "GCRatio", Message: "must be between 0 and 1"}
	}
	if c.MemTableSize < 1024*1024 {
		return &ConfigError{Field: "MemTableSize", Message: "must be at least 1MB"}
	}
	if c.ValueLogFileSize < 1024*1024 {
		return &ConfigError{Field: "ValueLogFileSize", Message: "must be at least 1MB"}
	}
	if c.NumCompactors < 2 {
		return &ConfigError{Field: "NumCompactors", Message: "must be at least 2 (BadgerDB requirement)"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "archive config error: " + e.Field + ": " + e.Message
}
