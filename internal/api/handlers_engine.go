// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/telemon/internal/engine"
	"github.com/tomtom215/telemon/internal/logging"
	"github.com/tomtom215/telemon/internal/models"
	"github.com/tomtom215/telemon/internal/processor"
)

// InjectResponse is the result of an inject or status change: the records
// produced in order and the errors of inputs that were skipped.
type InjectResponse struct {
	Records json.RawMessage `json:"records"`
	Count   int             `json:"count"`
	Errors  []string        `json:"errors,omitempty"`
}

// Inject applies a batch of raw parameter samples and event occurrences.
//
// Inputs that address no entity or do not fit it are skipped and listed in
// errors; the rest of the batch still applies and the response is 200. When
// no input could be applied the response is 422.
func (h *Handler) Inject(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req InjectRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		rw.BadRequest("Invalid request body: " + err.Error())
		return
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}
	inputs, err := req.RawInputs(h.cfg.Clock())
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	ctx := logging.ContextWithBatchID(r.Context(), logging.GenerateBatchID())
	records, err := h.model.Inject(ctx, inputs)
	logging.Ctx(ctx).Debug().
		Int("inputs", len(inputs)).
		Int("records", len(records)).
		Bool("partial", err != nil).
		Msg("batch applied")
	h.writeRecords(rw, records, err)
}

// SetStatus changes the status of an entity subtree.
func (h *Handler) SetStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req StatusRequest
	if err := h.decodeJSON(w, r, &req); err != nil {
		rw.BadRequest("Invalid request body: " + err.Error())
		return
	}
	req.Status = strings.ToUpper(req.Status)
	if apiErr := validateRequest(&req); apiErr != nil {
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}
	status, err := models.ParseStatus(req.Status)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	records, err := h.model.SetStatus(r.Context(), models.Path(req.Path), status)
	if errors.Is(err, engine.ErrUnknownEntity) {
		rw.NotFound(err.Error())
		return
	}
	if err == nil {
		logging.Ctx(r.Context()).Info().
			Str("path", req.Path).
			Str("status", status.String()).
			Int("records", len(records)).
			Msg("entity status changed")
	}
	h.writeRecords(rw, records, err)
}

func (h *Handler) writeRecords(rw *ResponseWriter, records []models.Record, err error) {
	if err != nil {
		if status, code, ok := engineErrorStatus(err); ok {
			rw.Error(status, code, err.Error())
			return
		}
		if len(records) == 0 {
			rw.Unprocessable("No input could be applied", errorMessages(err))
			return
		}
	}

	data, mErr := marshalRecords(records)
	if mErr != nil {
		rw.InternalError("Failed to encode records")
		return
	}
	rw.Success(InjectResponse{Records: data, Count: len(records), Errors: errorMessages(err)})
}

// Entities returns the state of every entity in hierarchy order, optionally
// restricted to a subtree (prefix) and an entity type.
func (h *Handler) Entities(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	q := r.URL.Query()
	req := EntitiesRequest{Prefix: q.Get("prefix"), Type: strings.ToUpper(q.Get("type"))}
	if apiErr := validateRequest(&req); apiErr != nil {
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}

	states := h.model.Snapshot()
	if req.Prefix != "" || req.Type != "" {
		prefix := models.Path(req.Prefix)
		filtered := make([]processor.EntityState, 0, len(states))
		for _, s := range states {
			if prefix != "" && s.Path != prefix && !s.Path.IsDescendantOf(prefix) {
				continue
			}
			if req.Type != "" && s.Type.String() != req.Type {
				continue
			}
			filtered = append(filtered, s)
		}
		states = filtered
	}
	rw.SuccessList(states, len(states))
}

// Entity returns the state of the entity at the path given by the URL
// wildcard, e.g. /api/v1/entities/sat/power/v.
func (h *Handler) Entity(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	path, err := models.ParsePath("/" + strings.TrimPrefix(chi.URLParam(r, "*"), "/"))
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}
	state, err := h.model.State(path)
	if err != nil {
		rw.NotFound(err.Error())
		return
	}
	rw.Success(state)
}

// EntityByID returns the state of the entity with the external id.
func (h *Handler) EntityByID(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		rw.BadRequest("id must be a positive integer")
		return
	}
	state, err := h.model.StateByID(id)
	if err != nil {
		rw.NotFound(err.Error())
		return
	}
	rw.Success(state)
}
