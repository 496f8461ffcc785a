// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package api

import (
	"net/http"

	"github.com/tomtom215/telemon/internal/logging"
	ws "github.com/tomtom215/telemon/internal/websocket"
)

// WebSocket upgrades the connection and streams output records to it. The
// initial record filter is taken from the query parameters (see
// parseRecordFilter); the client can replace it with a "filter" message.
//
//	GET /api/v1/ws?type=alarm&path=/sat/power
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.wsHub == nil {
		logging.Warn().Msg("WebSocket connection rejected: hub not initialized")
		WriteError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "WebSocket service unavailable")
		return
	}

	filter, err := parseRecordFilter(r.URL.Query())
	if err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}

	upgrader := h.getUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("WebSocket upgrade error")
		return
	}

	client := ws.NewClient(h.wsHub, conn, filter)
	h.wsHub.Register <- client
	client.Start()
}
