// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

/*
Package metrics defines the Prometheus collectors exported on /metrics.

Collectors are registered on the default registry at package init through
promauto. Callers use the Record* helpers rather than touching the vectors
directly so label sets stay consistent:

	metrics.RecordAPIRequest(r.Method, "/api/insights", "200", time.Since(start))
	metrics.RecordOAuthExchange("github", "connected")
	metrics.RecordRateLimitDecision("api", metrics.RateLimitAllowed)

Exported series:

  - api_requests_total, api_request_duration_seconds, api_active_requests
  - oauth_exchanges_total
  - rate_limit_decisions_total
  - circuit_breaker_state, circuit_breaker_requests_total,
    circuit_breaker_state_transitions_total
  - cache_lookups_total, cache_evictions_total
  - events_published_total, events_consumed_total
*/
package metrics
