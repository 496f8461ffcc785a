// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "*" {
		t.Errorf("Server.CORSOrigins = %v, want [*]", cfg.Server.CORSOrigins)
	}
	if cfg.Engine.InjectQueueSize != 64 || cfg.Engine.ArchiveQueueSize != 256 {
		t.Errorf("Engine queue sizes = %d/%d, want 64/256", cfg.Engine.InjectQueueSize, cfg.Engine.ArchiveQueueSize)
	}
	if cfg.Engine.AllowUnresolvedExtensions {
		t.Error("Engine.AllowUnresolvedExtensions should be false by default")
	}
	if !cfg.Archive.Enabled || cfg.Archive.Retention != 30*24*time.Hour {
		t.Errorf("Archive defaults = %+v", cfg.Archive)
	}
	if cfg.NATS.Enabled {
		t.Error("NATS.Enabled should be false by default")
	}
	if cfg.NATS.SubjectPrefix != "telemetry" {
		t.Errorf("NATS.SubjectPrefix = %q, want telemetry", cfg.NATS.SubjectPrefix)
	}
	if cfg.Supervisor.ShutdownTimeout != 10*time.Second {
		t.Errorf("Supervisor.ShutdownTimeout = %v, want 10s", cfg.Supervisor.ShutdownTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults must validate: %v", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	t.Parallel()

	tests := []struct {
		env  string
		want string
	}{
		{"HTTP_PORT", "server.port"},
		{"CORS_ORIGINS", "server.cors_origins"},
		{"DEFINITIONS_FILE", "engine.definitions_file"},
		{"ENGINE_ALLOW_UNRESOLVED_EXTENSIONS", "engine.allow_unresolved_extensions"},
		{"ARCHIVE_RETENTION", "archive.retention"},
		{"NATS_EMBEDDED", "nats.embedded_server"},
		{"nats_subject_prefix", "nats.subject_prefix"},
		{"LOG_LEVEL", "logging.level"},
		{"PATH", ""},
		{"HOME", ""},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Parallel()
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestLoadWithKoanfEnvVars(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DEFINITIONS_FILE", "/tmp/defs.yaml")
	t.Setenv("ARCHIVE_RETENTION", "48h")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("ENGINE_ALLOW_UNRESOLVED_EXTENSIONS", "true")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Engine.DefinitionsFile != "/tmp/defs.yaml" {
		t.Errorf("Engine.DefinitionsFile = %q", cfg.Engine.DefinitionsFile)
	}
	if !cfg.Engine.AllowUnresolvedExtensions {
		t.Error("Engine.AllowUnresolvedExtensions should be true")
	}
	if cfg.Archive.Retention != 48*time.Hour {
		t.Errorf("Archive.Retention = %v, want 48h", cfg.Archive.Retention)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("Server.CORSOrigins = %v", cfg.Server.CORSOrigins)
	}

	// Verify defaults are still applied for unset values
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0 (default)", cfg.Server.Host)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}
	return path
}

func TestLoadWithKoanfConfigFile(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 8888
  host: "127.0.0.1"
engine:
  definitions_file: /srv/defs.yaml
  inject_queue_size: 8
nats:
  enabled: true
  embedded_server: false
  url: nats://broker:4222
  subject_prefix: sc1.tm
logging:
  level: warn
`)
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Server.Port != 8888 || cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server = %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Engine.InjectQueueSize != 8 {
		t.Errorf("Engine.InjectQueueSize = %d, want 8", cfg.Engine.InjectQueueSize)
	}
	if !cfg.NATS.Enabled || cfg.NATS.SubjectPrefix != "sc1.tm" {
		t.Errorf("NATS = %+v", cfg.NATS)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestLoadWithKoanfEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 8888\n")
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "7777")

	cfg, err := LoadWithKoanf()
	if err != nil {
		t.Fatalf("LoadWithKoanf() error = %v", err)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("Server.Port = %d, want 7777 (env beats file)", cfg.Server.Port)
	}
}

func TestLoadWithKoanfValidation(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "")
	t.Setenv("HTTP_PORT", "70000")

	if _, err := LoadWithKoanf(); err == nil {
		t.Error("expected validation error for out of range port")
	}
}

func TestFindConfigFile(t *testing.T) {
	path := writeConfigFile(t, "server:\n  port: 1\n")

	t.Setenv(ConfigPathEnvVar, path)
	if got := findConfigFile(); got != path {
		t.Errorf("findConfigFile() = %q, want %q", got, path)
	}

	t.Setenv(ConfigPathEnvVar, filepath.Join(t.TempDir(), "missing.yaml"))
	if got := findConfigFile(); got != "" {
		t.Errorf("findConfigFile() = %q for a missing file", got)
	}
}
