// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rate limit decision outcomes.
const (
	RateLimitAllowed  = "allowed"
	RateLimitDenied   = "denied"
	RateLimitFailOpen = "fail_open"
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
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// OAuth Metrics
	OAuthExchanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "oauth_exchanges_total",
			Help: "Total number of OAuth code exchanges by provider and outcome",
		},
		[]string{"provider", "outcome"}, // outcome: "connected", "denied", "invalid_state", "missing_code", "failed"
	)

	// Rate Limit Metrics
	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_decisions_total",
			Help: "Total number of rate limit decisions",
		},
		[]string{"scope", "outcome"},
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

	// Cache Metrics
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Total number of cache lookups by cache and result",
		},
		[]string{"cache", "result"}, // result: "hit", "miss"
	)

	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of cache entries removed by expiry or invalidation",
		},
		[]string{"cache"},
	)

	// Event Metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Total number of domain events published",
		},
		[]string{"topic", "result"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_consumed_total",
			Help: "Total number of domain events consumed",
		},
		[]string{"topic", "result"},
	)
)

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements active request count
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordOAuthExchange counts one OAuth callback outcome.
func RecordOAuthExchange(provider, outcome string) {
	OAuthExchanges.WithLabelValues(provider, outcome).Inc()
}

// RecordRateLimitDecision counts one limiter decision for scope.
func RecordRateLimitDecision(scope, outcome string) {
	RateLimitDecisions.WithLabelValues(scope, outcome).Inc()
}

// RecordBreakerResult counts a call routed through the named breaker.
func RecordBreakerResult(name, result string) {
	CircuitBreakerRequests.WithLabelValues(name, result).Inc()
}

// RecordBreakerTransition updates the state gauge and the transition counter.
// state is 0 for closed, 1 for half-open and 2 for open.
func RecordBreakerTransition(name, from, to string, state float64) {
	CircuitBreakerState.WithLabelValues(name).Set(state)
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

// RecordEventPublished counts a publish attempt.
func RecordEventPublished(topic string, err error) {
	EventsPublished.WithLabelValues(topic, result(err)).Inc()
}

// RecordEventConsumed counts a handled message.
func RecordEventConsumed(topic string, err error) {
	EventsConsumed.WithLabelValues(topic, result(err)).Inc()
}

// RecordCacheLookup counts a cache hit or miss.
func RecordCacheLookup(cache string, hit bool) {
	res := "miss"
	if hit {
		res = "hit"
	}
	CacheLookups.WithLabelValues(cache, res).Inc()
}

// RecordCacheEvictions counts n removed cache entries.
func RecordCacheEvictions(cache string, n int) {
	if n > 0 {
		CacheEvictions.WithLabelValues(cache).Add(float64(n))
	}
}

func result(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
