// Pathfinder - Career Management SaaS Backend
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/czhaoca/pathfinder-sub009

// Package metrics provides Prometheus metrics for the audit pipeline.
// Metrics are exposed at the /metrics endpoint in Prometheus text format.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Audit pipeline metrics
	AuditEventsLogged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_events_logged_total",
			Help: "Total number of audit events accepted by the pipeline",
		},
		[]string{"event_type", "severity"},
	)

	AuditValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_validation_failures_total",
			Help: "Total number of events rejected at validation",
		},
		[]string{"field"},
	)

	AuditBufferSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "audit_buffer_events",
			Help: "Current number of events waiting in the flush buffer",
		},
	)

	AuditFlushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_flushes_total",
			Help: "Total number of flush attempts by outcome",
		},
		[]string{"outcome"},
	)

	AuditFlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audit_flush_duration_seconds",
			Help:    "Duration of flush operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
	)

	AuditFlushBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "audit_flush_batch_events",
			Help:    "Number of events written per flush batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	AuditFallbackWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_fallback_writes_total",
			Help: "Total number of events written to the local fallback log",
		},
	)

	AuditCriticalEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_critical_events_total",
			Help: "Total number of events flagged critical",
		},
		[]string{"threat_type"},
	)

	AuditAlertsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_alerts_sent_total",
			Help: "Total number of security alerts delivered by notifier",
		},
		[]string{"notifier", "outcome"},
	)

	AuditRetentionArchived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_retention_archived_total",
			Help: "Total number of events archived by retention policies",
		},
	)

	AuditRetentionPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_retention_purged_total",
			Help: "Total number of events purged by retention policies",
		},
	)

	// API endpoint metrics
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
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Circuit breaker state, using gobreaker's encoding: 0=closed,
	// 1=half-open, 2=open.
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the active request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
