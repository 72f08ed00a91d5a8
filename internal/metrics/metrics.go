// Fanbeam - Creator Audience Attribution and Engagement Analytics
// Copyright 2026 Fanbeam Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fanbeam/fanbeam

// Package metrics provides Prometheus instrumentation for the attribution
// pipeline: interaction throughput, identity resolution races, transaction
// latency, API latency, and event bus publishes.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Attribution pipeline metrics
	InteractionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanbeam_interactions_recorded_total",
			Help: "Total number of interaction events recorded, by action type",
		},
		[]string{"action_type"},
	)

	InteractionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanbeam_interaction_errors_total",
			Help: "Total number of failed interaction recordings",
		},
		[]string{"reason"}, // "validation", "not_found", "resolution", "store"
	)

	AudienceMembersCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fanbeam_audience_members_created_total",
			Help: "Total number of new audience member rows created",
		},
	)

	// ResolutionRaceRereads counts first-contact inserts that lost the race
	// on the uniqueness constraint and fell back to re-reading the winner's
	// row. Nonzero values under load are normal.
	ResolutionRaceRereads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fanbeam_resolution_race_rereads_total",
			Help: "Total number of identity inserts that lost the first-contact race and re-read",
		},
	)

	ResolutionFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fanbeam_resolution_failures_total",
			Help: "Total number of identity resolutions that failed on the fallback read",
		},
	)

	VisitsRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fanbeam_visits_recorded_total",
			Help: "Total number of profile visits recorded",
		},
	)

	// Database metrics
	TxDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fanbeam_transaction_duration_seconds",
			Help:    "Duration of attribution database transactions in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"}, // "record_interaction", "record_visit", "identify"
	)

	// API metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fanbeam_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fanbeam_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	// Event bus metrics
	EventsPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fanbeam_events_published_total",
			Help: "Total number of interaction events published to the event bus",
		},
	)

	EventPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "fanbeam_event_publish_errors_total",
			Help: "Total number of failed event bus publishes",
		},
	)

	EventBusBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "fanbeam_eventbus_breaker_state",
			Help: "Circuit breaker state for event publishes (0=closed, 1=half-open, 2=open)",
		},
	)
)

// RecordTx records the duration of one attribution transaction.
func RecordTx(operation string, duration time.Duration) {
	TxDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordAPIRequest records a completed API request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	code := strconv.Itoa(statusCode)
	APIRequestDuration.WithLabelValues(method, endpoint, code).Observe(duration.Seconds())
	APIRequestsTotal.WithLabelValues(method, endpoint, code).Inc()
}
