// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

//go:build !nats

package forwarder

import "context"

// EnsureStream returns ErrNATSNotEnabled.
func EnsureStream(ctx context.Context, url string, cfg StreamConfig) error {
	return ErrNATSNotEnabled
}
