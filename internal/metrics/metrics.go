// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

// Package metrics holds the Prometheus instrumentation for Dispatchlink.
//
// Collectors are registered with the default registry through promauto at
// package init and exposed by the ops server on /metrics. Callers use the
// Record helpers rather than touching collectors directly.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Realtime connection metrics
	ConnectionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_connection_state",
			Help: "Realtime connection state (0=disconnected, 1=connecting, 2=connected, 3=failed)",
		},
	)

	ReconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_reconnect_attempts_total",
			Help: "Total number of scheduled reconnect attempts",
		},
	)

	ReconnectDelay = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "realtime_reconnect_delay_seconds",
			Help:    "Delay before each scheduled reconnect attempt",
			Buckets: []float64{1, 1.5, 2.25, 3.375, 5.0625, 7.6, 11.4, 17.1, 25.6, 30},
		},
	)

	TerminalFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_terminal_failures_total",
			Help: "Number of times the reconnect budget was exhausted",
		},
	)

	ConnectionsOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_connections_opened_total",
			Help: "Total number of successfully opened realtime connections",
		},
	)

	FramesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_frames_received_total",
			Help: "Total number of frames received from the server",
		},
	)

	FramesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_frames_sent_total",
			Help: "Total number of frames sent to the server",
		},
	)

	// Dispatch metrics
	DecodeErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_decode_errors_total",
			Help: "Frames that failed envelope decoding",
		},
		[]string{"reason"}, // malformed, missing_data, missing_type
	)

	EventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_dispatched_total",
			Help: "Events dispatched to a handler, by event type",
		},
		[]string{"event_type"},
	)

	UnknownEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_unknown_events_total",
			Help: "Events with a type that has no registered handler",
		},
	)

	HandlerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_handler_errors_total",
			Help: "Handler steps that failed or panicked, by event type",
		},
		[]string{"event_type"},
	)

	DispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "realtime_dispatch_duration_seconds",
			Help:    "Time spent dispatching one frame (excludes async refetches)",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
	)

	// Consumer metrics
	NotificationsLive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notifications_live",
			Help: "Current number of live correlated progress notifications",
		},
	)

	Refetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_refetch_total",
			Help: "Entity collection refetches, by kind and result",
		},
		[]string{"kind", "result"}, // result: success, error, shared
	)

	PatchesApplied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_patches_applied_total",
			Help: "Partial updates merged into a cached entity",
		},
		[]string{"kind"},
	)

	PatchesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_patches_dropped_total",
			Help: "Partial updates dropped because the entity was not cached",
		},
		[]string{"kind"},
	)

	// API client metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of REST API requests",
		},
		[]string{"endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "REST API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"endpoint"},
	)

	// Circuit breaker metrics
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
		[]string{"name", "result"}, // result: success, failure, rejected
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Event tap
	TapPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventtap_published_total",
			Help: "Envelopes published on the in-process event tap",
		},
	)

	TapPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "eventtap_publish_errors_total",
			Help: "Envelopes that could not be published on the event tap",
		},
	)

	// Ops HTTP surface
	OpsRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ops_http_requests_total",
			Help: "Requests served by the ops HTTP server",
		},
		[]string{"method", "route", "status_code"},
	)

	OpsRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ops_http_requests_in_flight",
			Help: "Ops HTTP requests currently being served",
		},
	)
)

// SetConnectionState records the numeric connection state.
func SetConnectionState(state int) {
	ConnectionState.Set(float64(state))
}

// RecordReconnectScheduled records one scheduled reconnect and its delay.
func RecordReconnectScheduled(delay time.Duration) {
	ReconnectAttempts.Inc()
	ReconnectDelay.Observe(delay.Seconds())
}

// RecordDecodeError records a frame rejected by the envelope decoder.
func RecordDecodeError(reason string) {
	DecodeErrors.WithLabelValues(reason).Inc()
}

// RecordDispatch records one dispatched event and how long dispatch took.
func RecordDispatch(eventType string, duration time.Duration) {
	EventsDispatched.WithLabelValues(eventType).Inc()
	DispatchDuration.Observe(duration.Seconds())
}

// RecordHandlerError records a failed handler step.
func RecordHandlerError(eventType string) {
	HandlerErrors.WithLabelValues(eventType).Inc()
}

// RecordRefetch records the outcome of a collection refetch.
func RecordRefetch(kind, result string) {
	Refetches.WithLabelValues(kind, result).Inc()
}

// RecordAPIRequest records a REST request.
func RecordAPIRequest(endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordOpsRequest records one ops HTTP request. route is the matched
// pattern, not the raw path.
func RecordOpsRequest(method, route, statusCode string) {
	OpsRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
}
