// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

/*
Package ratelimit throttles API callers per user (or per client IP before
authentication).

Two limiter families implement Limiter:

  - MemoryLimiter: a golang.org/x/time/rate token bucket per key, local to
    the process. Idle buckets are evicted periodically.
  - WindowLimiter: a sliding-window counter kept in a CounterStore so that
    several API replicas share one budget. Stores exist for NATS JetStream
    key-value buckets, BadgerDB and process memory.

The sliding window approximates the request rate from two fixed windows:

	estimate = previous * (1 - elapsed/window) + current

A request is denied when the estimate has already reached the limit.

Middleware converts decisions into X-RateLimit-* headers and 429 responses.
Store failures never block traffic: the request passes and the failure is
logged and counted under rate_limit_decisions_total{outcome="fail_open"}.
*/
package ratelimit
