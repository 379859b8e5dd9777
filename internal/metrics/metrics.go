// Biblion - Library Management and Personalized Recommendations
// Copyright 2026 Biblion Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/biblion-app/biblion

// Package metrics defines the Prometheus collectors for the recommendation
// service: API latency and throughput, engine and generator timings,
// interaction log volume, and admission controller rejections.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API endpoint metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biblion_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "biblion_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	// Admission controller metrics
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biblion_rate_limit_rejections_total",
			Help: "Total number of requests rejected by the per-user admission controller",
		},
		[]string{"action"},
	)

	// Interaction tracking metrics
	InteractionsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biblion_interactions_recorded_total",
			Help: "Total number of interaction events appended to the log",
		},
		[]string{"kind"},
	)

	InteractionsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "biblion_interactions_rejected_total",
			Help: "Total number of interaction events rejected by validation",
		},
	)

	// Recommendation engine metrics
	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "biblion_recommend_duration_seconds",
			Help:    "End-to-end recommendation request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	GeneratorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "biblion_generator_duration_seconds",
			Help:    "Candidate generator run duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"generator"},
	)

	GeneratorFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biblion_generator_failures_total",
			Help: "Total number of generator runs that failed or timed out",
		},
		[]string{"generator"},
	)

	RecommendationsServed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "biblion_recommendations_served_total",
			Help: "Total number of recommendation lists served",
		},
	)

	ProfileFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "biblion_profile_fallbacks_total",
			Help: "Recommendation requests served without a profile (cold-start fallback)",
		},
	)

	// Trending projection metrics
	TrendingEventsProjected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "biblion_trending_events_projected_total",
			Help: "Interaction events applied to the trending projection",
		},
	)

	TrendingTrackedItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "biblion_trending_tracked_items",
			Help: "Number of items currently tracked by the trending projection",
		},
	)

	// Circuit breaker metrics
	BreakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "biblion_breaker_state_changes_total",
			Help: "Circuit breaker state transitions on interaction log reads",
		},
		[]string{"name", "to"},
	)
)

// ObserveAPIRequest records one completed API request.
func ObserveAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// ObserveGenerator records one generator run.
func ObserveGenerator(name string, duration time.Duration, err error) {
	GeneratorDuration.WithLabelValues(name).Observe(duration.Seconds())
	if err != nil {
		GeneratorFailures.WithLabelValues(name).Inc()
	}
}
