// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/telemon/internal/logging"
	"github.com/tomtom215/telemon/internal/models"
	"github.com/tomtom215/telemon/internal/processor"
	ws "github.com/tomtom215/telemon/internal/websocket"
)

// Processor is the view of the processing model the handlers use.
// *engine.Model implements it.
type Processor interface {
	Inject(ctx context.Context, batch []models.RawInput) ([]models.Record, error)
	SetStatus(ctx context.Context, path models.Path, status models.Status) ([]models.Record, error)
	State(path models.Path) (processor.EntityState, error)
	StateByID(id int64) (processor.EntityState, error)
	Snapshot() []processor.EntityState
	IsRunning() bool
}

// RecordArchive reads archived records. *archive.Store implements it.
type RecordArchive interface {
	Range(ctx context.Context, t models.RecordType, fromID uint64, limit int) ([]models.Record, error)
}

// BreakerReporter reports the circuit breaker state of the record
// forwarder. *forwarder.Forwarder implements it.
type BreakerReporter interface {
	BreakerState() string
}

// HandlerConfig holds the optional dependencies and limits of a Handler.
type HandlerConfig struct {
	// Archive enables GET /api/v1/archive. Nil when archiving is disabled.
	Archive RecordArchive

	// Forwarder is reported by the health endpoint. Nil when disabled.
	Forwarder BreakerReporter

	// AllowedOrigins lists the origins accepted for WebSocket upgrades.
	// "*" accepts any origin.
	AllowedOrigins []string

	// MaxBodyBytes bounds request bodies.
	MaxBodyBytes int64

	// Clock stamps inputs sent without times. Defaults to time.Now.
	Clock func() time.Time
}

// Handler contains dependencies for API handlers
//
// Handler methods are split across files:
//   - handlers.go: Handler struct, constructor, shared helpers (this file)
//   - handlers_engine.go: inject, entity state and status changes
//   - handlers_archive.go: archived record queries
//   - handlers_websocket.go: live record streaming
//   - handlers_health.go: health and readiness probes
type Handler struct {
	model     Processor
	wsHub     *ws.Hub
	cfg       HandlerConfig
	startTime time.Time
}

// NewHandler creates a new API handler. hub may be nil, in which case the
// WebSocket endpoint answers 503.
func NewHandler(model Processor, hub *ws.Hub, cfg HandlerConfig) *Handler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 10 << 20
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Handler{
		model:     model,
		wsHub:     hub,
		cfg:       cfg,
		startTime: time.Now(),
	}
}

// decodeJSON reads a bounded JSON body into v.
func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)
	defer body.Close()
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return errors.New("request body too large")
		}
		return err
	}
	return nil
}

// marshalRecords encodes records as envelopes for a response body.
func marshalRecords(records []models.Record) (json.RawMessage, error) {
	if records == nil {
		records = []models.Record{}
	}
	return models.MarshalRecords(records)
}

func (h *Handler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:   1024,
		WriteBufferSize:  4096,
		CheckOrigin:      h.checkWebSocketOrigin,
		HandshakeTimeout: 10 * time.Second,
	}
}

// checkWebSocketOrigin validates WebSocket connection origins. Requests
// without an Origin header come from non-browser clients such as ground
// station scripts and are accepted.
func (h *Handler) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range h.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	logging.Warn().Str("origin", sanitizeLogValue(origin)).Msg("WebSocket connection rejected from unauthorized origin")
	return false
}

// sanitizeLogValue strips control characters and bounds the length of a
// client-supplied value before it is logged.
func sanitizeLogValue(s string) string {
	const maxLen = 200
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	return s
}
