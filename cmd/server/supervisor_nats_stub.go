// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

//go:build !nats

package main

import (
	"github.com/tomtom215/telemon/internal/supervisor"
	"github.com/tomtom215/telemon/internal/supervisor/services"
)

// AddNATSToSupervisor is a no-op stub for non-NATS builds, so main.go can
// call it unconditionally. natsComponents is always nil here.
func AddNATSToSupervisor(_ *supervisor.SupervisorTree, _ *NATSComponents, _ services.RecordSource) {
}
