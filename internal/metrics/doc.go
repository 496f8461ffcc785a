// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

/*
Package metrics provides Prometheus metrics collection and export for observability.

All collectors are registered on the default registry at package init via
promauto and exposed by the API at /metrics in Prometheus text format:

	curl http://localhost:8080/metrics

# Available Metrics

Processing model:
  - engine_batches_total, engine_batch_duration_seconds (labels: kind)
  - engine_batch_inputs: raw inputs per injected batch
  - engine_records_total (labels: type)
  - engine_degraded_records_total (labels: validity)
  - engine_contract_errors_total: inputs addressing no usable entity

Subscribers:
  - engine_subscriptions_active
  - engine_subscriber_queue_depth (labels: subscription)
  - engine_subscriber_panics_total

Archive:
  - archive_store_duration_seconds, archive_records_stored_total
  - archive_failures_total, archive_dropped_batches_total
  - archive_gc_runs_total (labels: result)

Forwarder:
  - forwarder_published_total (labels: type)
  - forwarder_publish_failures_total
  - circuit_breaker_state, circuit_breaker_requests_total,
    circuit_breaker_state_transitions_total (labels: name)

WebSocket and API:
  - websocket_connections, websocket_messages_sent_total, websocket_errors_total
  - api_requests_total, api_request_duration_seconds, api_active_requests

# Thread Safety

Every collector is safe for concurrent use.
*/
package metrics
