// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

//go:build nats

package main

import (
	"github.com/tomtom215/telemon/internal/logging"
	"github.com/tomtom215/telemon/internal/models"
	"github.com/tomtom215/telemon/internal/supervisor"
	"github.com/tomtom215/telemon/internal/supervisor/services"
)

// AddNATSToSupervisor adds the forwarder service to the messaging layer.
// The forwarder receives every record the model produces.
//
// This function is a no-op if natsComponents is nil (NATS disabled via config).
func AddNATSToSupervisor(tree *supervisor.SupervisorTree, natsComponents *NATSComponents, source services.RecordSource) {
	if natsComponents == nil {
		return
	}
	tree.AddMessagingService(services.NewForwarderService(natsComponents, source, models.RecordFilter{}))
	logging.Info().Msg("NATS forwarder added to supervisor tree (messaging layer)")
}
