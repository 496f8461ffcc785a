// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/telemon/internal/models"
)

// RecordPage is a page of archived records of one type.
type RecordPage struct {
	Records json.RawMessage `json:"records"`
	Count   int             `json:"count"`
	// NextFrom is the from value of the next page; absent on the last page.
	NextFrom uint64 `json:"next_from,omitempty"`
}

// Archive returns archived records of one type in internal id order,
// starting at the from query parameter.
//
//	GET /api/v1/archive/parameter?from=1200&limit=500
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	if h.cfg.Archive == nil {
		rw.ServiceUnavailable(ErrArchiveDisabled.Error())
		return
	}

	q := r.URL.Query()
	req := ArchiveRequest{
		Type:  strings.ToLower(chi.URLParam(r, "type")),
		Limit: getIntParam(q, "limit", 500),
	}
	if from := q.Get("from"); from != "" {
		id, err := strconv.ParseUint(from, 10, 64)
		if err != nil {
			rw.BadRequest("from must be a record id")
			return
		}
		req.FromID = id
	}
	if apiErr := validateRequest(&req); apiErr != nil {
		rw.ValidationError(apiErr.Message, apiErr.Details)
		return
	}
	recordType, err := models.ParseRecordType(req.Type)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	records, err := h.cfg.Archive.Range(r.Context(), recordType, req.FromID, req.Limit)
	if err != nil {
		rw.ArchiveError(err)
		return
	}
	data, err := marshalRecords(records)
	if err != nil {
		rw.InternalError("Failed to encode records")
		return
	}

	page := RecordPage{Records: data, Count: len(records)}
	if len(records) == req.Limit {
		page.NextFrom = records[len(records)-1].RecordID() + 1
	}
	rw.Success(page)
}
