// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package api

import (
	"net/http"
	"time"
)

// HealthStatus is the body of GET /api/v1/health.
type HealthStatus struct {
	Status           string  `json:"status"`
	EngineRunning    bool    `json:"engine_running"`
	Entities         int     `json:"entities"`
	WebSocketClients int     `json:"websocket_clients"`
	ArchiveEnabled   bool    `json:"archive_enabled"`
	ForwarderState   string  `json:"forwarder_state,omitempty"`
	Uptime           float64 `json:"uptime_seconds"`
}

// Health reports the state of the processing model and its outputs. The
// status is "degraded" while the model is not running or the forwarder
// breaker is open.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	running := h.model.IsRunning()
	health := HealthStatus{
		Status:         "healthy",
		EngineRunning:  running,
		Entities:       len(h.model.Snapshot()),
		ArchiveEnabled: h.cfg.Archive != nil,
		Uptime:         time.Since(h.startTime).Seconds(),
	}
	if h.wsHub != nil {
		health.WebSocketClients = h.wsHub.GetClientCount()
	}
	if h.cfg.Forwarder != nil {
		health.ForwarderState = h.cfg.Forwarder.BreakerState()
	}
	if !running || health.ForwarderState == "open" {
		health.Status = "degraded"
	}
	WriteSuccess(w, r, health)
}

// HealthLive handles liveness probe requests (Kubernetes-style)
// Returns 200 OK if the process is alive, regardless of dependencies
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]interface{}{
		"alive":  true,
		"uptime": time.Since(h.startTime).Seconds(),
	})
}

// HealthReady handles readiness probe requests (Kubernetes-style)
// Returns 200 OK only once the processing model accepts batches
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if !h.model.IsRunning() {
		WriteError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "processing model not running")
		return
	}
	WriteSuccess(w, r, map[string]interface{}{"ready": true})
}
