// Telemon - Telemetry Monitoring and Control Processing Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemon

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for:
// - Processing model batches and produced records
// - Subscriber delivery queues
// - Archive writes
// - Record forwarding and its circuit breaker
// - WebSocket clients
// - HTTP API

var (
	// Processing Model Metrics
	EngineBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_batches_total",
			Help: "Total number of batches applied by the processing model",
		},
		[]string{"kind"}, // "inject", "status"
	)

	EngineBatchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engine_batch_duration_seconds",
			Help:    "Time spent applying one batch, including propagation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"kind"},
	)

	EngineBatchInputs = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "engine_batch_inputs",
			Help:    "Number of raw inputs per injected batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	EngineRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_records_total",
			Help: "Total number of output records produced",
		},
		[]string{"type"}, // "PARAMETER", "EVENT", "ALARM", "ENTITY"
	)

	EngineDegradedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_degraded_records_total",
			Help: "Total number of parameter records produced with a degraded validity",
		},
		[]string{"validity"}, // "INVALID", "ERROR"
	)

	EngineContractErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_contract_errors_total",
			Help: "Total number of inputs rejected because they address no usable entity",
		},
	)

	// Subscriber Metrics
	SubscriptionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_subscriptions_active",
			Help: "Current number of record subscriptions",
		},
	)

	SubscriberQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "engine_subscriber_queue_depth",
			Help: "Batches waiting for delivery to a subscriber",
		},
		[]string{"subscription"},
	)

	SubscriberPanics = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "engine_subscriber_panics_total",
			Help: "Total number of recovered subscriber panics",
		},
	)

	// Archive Metrics
	ArchiveStoreDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "archive_store_duration_seconds",
			Help:    "Duration of archive batch writes in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ArchiveRecordsStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archive_records_stored_total",
			Help: "Total number of records written to the archive",
		},
	)

	ArchiveFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archive_failures_total",
			Help: "Total number of batches the archive failed to store",
		},
	)

	ArchiveDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "archive_dropped_batches_total",
			Help: "Total number of batches dropped because the archive queue was full",
		},
	)

	ArchiveGCRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "archive_gc_runs_total",
			Help: "Total number of archive value log GC runs",
		},
		[]string{"result"}, // "rewritten", "noop", "error"
	)

	// Forwarder Metrics
	ForwarderPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forwarder_published_total",
			Help: "Total number of records published to the message bus",
		},
		[]string{"type"},
	)

	ForwarderPublishFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forwarder_publish_failures_total",
			Help: "Total number of failed record publications",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
		[]string{"error_type"}, // "slow_client", "write", "read"
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordBatch records one applied batch. inputs is ignored for status
// changes.
func RecordBatch(kind string, inputs int, duration time.Duration) {
	EngineBatchesTotal.WithLabelValues(kind).Inc()
	EngineBatchDuration.WithLabelValues(kind).Observe(duration.Seconds())
	if kind == "inject" {
		EngineBatchInputs.Observe(float64(inputs))
	}
}

// RecordOutput counts one produced record.
func RecordOutput(recordType string) {
	EngineRecordsTotal.WithLabelValues(recordType).Inc()
}

// RecordDegraded counts one parameter record with a non-VALID validity.
func RecordDegraded(validity string) {
	EngineDegradedRecords.WithLabelValues(validity).Inc()
}

// SetSubscriberQueueDepth updates the queue gauge of one subscription.
func SetSubscriberQueueDepth(id uint64, depth int) {
	SubscriberQueueDepth.WithLabelValues(strconv.FormatUint(id, 10)).Set(float64(depth))
}

// ForgetSubscriber removes the queue gauge of a closed subscription.
func ForgetSubscriber(id uint64) {
	SubscriberQueueDepth.DeleteLabelValues(strconv.FormatUint(id, 10))
}

// RecordArchiveStore records one archive write.
func RecordArchiveStore(records int, duration time.Duration, err error) {
	ArchiveStoreDuration.Observe(duration.Seconds())
	if err != nil {
		ArchiveFailures.Inc()
		return
	}
	ArchiveRecordsStored.Add(float64(records))
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
