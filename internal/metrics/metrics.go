// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
	)

	// Engine Metrics
	EngineRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_requests_total",
			Help: "Total number of JSON-RPC calls sent to the engine",
		},
		[]string{"method", "outcome"}, // outcome: "ok", "engine_error", "transport_error"
	)

	EngineRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engine_request_duration_seconds",
			Help:    "Round-trip time of engine JSON-RPC calls",
			Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 15, 60, 180, 600},
		},
		[]string{"method"},
	)

	EngineConnectAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_connect_attempts_total",
			Help: "Websocket dial attempts per endpoint candidate",
		},
		[]string{"scheme", "path", "outcome"},
	)

	EngineSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "engine_sessions_active",
			Help: "Number of open engine websocket sessions",
		},
	)

	// Extraction Metrics
	ExtractionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extraction_requests_total",
			Help: "Hypercube extractions by strategy and outcome",
		},
		[]string{"strategy", "outcome"},
	)

	ExtractionFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "extraction_fallbacks_total",
			Help: "Pivot reads that fell back to a straight-table session object",
		},
		[]string{"reason"}, // reason: "error", "coverage"
	)

	ExtractionWindowRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "extraction_window_retries_total",
			Help: "Data page fetches retried at half size after a too-large error",
		},
	)

	ExtractionRowsReturned = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "extraction_rows_returned",
			Help:    "Rows returned per extraction page",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	ExtractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "extraction_duration_seconds",
			Help:    "Wall-clock duration of an extraction including session setup",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"strategy"},
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

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Page Cache Metrics
	PageCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "page_cache_hits_total",
			Help: "Extraction pages served from the page cache",
		},
	)

	PageCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "page_cache_misses_total",
			Help: "Extraction pages not found in the page cache",
		},
	)

	// Authorization Metrics
	AuthzDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Access decisions by result",
		},
		[]string{"result"}, // result: "allow", "deny"
	)
)

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordEngineRequest records one JSON-RPC round trip.
func RecordEngineRequest(method, outcome string, duration time.Duration) {
	EngineRequestsTotal.WithLabelValues(method, outcome).Inc()
	EngineRequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordExtraction records a finished extraction.
func RecordExtraction(strategy string, rows int, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	} else {
		ExtractionRowsReturned.Observe(float64(rows))
	}
	ExtractionsTotal.WithLabelValues(strategy, outcome).Inc()
	ExtractionDuration.WithLabelValues(strategy).Observe(duration.Seconds())
}

// RecordAuthzDecision records an access decision.
func RecordAuthzDecision(allowed bool) {
	if allowed {
		AuthzDecisions.WithLabelValues("allow").Inc()
		return
	}
	AuthzDecisions.WithLabelValues("deny").Inc()
}
