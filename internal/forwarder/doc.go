// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

/*
Package forwarder publishes output records of the processing model to NATS
JetStream.

A Forwarder is an engine.Subscriber: the model delivers each batch on the
subscription goroutine and the forwarder publishes the records in order to
<prefix>.<record type>, for example telemetry.parameter. Each message
carries the record envelope as payload and a message id derived from the
record type and internal id, so a republished record is deduplicated by
JetStream.

Publishing is guarded by a sony/gobreaker circuit breaker. While the breaker
is open, records are dropped and counted instead of blocking delivery.

# Build Tags

The NATS client, Watermill and the embedded server are only compiled with
-tags nats. Without the tag New, NewEmbeddedServer and EnsureStream return
ErrNATSNotEnabled.
*/
package forwarder
