// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"
)

// CounterStore holds per-window request counters.
type CounterStore interface {
	// Get returns the counter value, or 0 when the key does not exist.
	Get(ctx context.Context, key string) (int64, error)
	// Increment adds one and returns the new value. The key expires ttl
	// after its last write where the store supports per-key expiry.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// WindowLimiter is a sliding-window limiter backed by a CounterStore.
//
// Concurrent replicas may both observe an estimate just below the limit and
// both increment, so the limit can be overshot by the number of replicas
// racing in the same instant.
type WindowLimiter struct {
	store  CounterStore
	scope  string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewWindowLimiter creates a limiter allowing limit requests per window.
// scope namespaces the counters so several limiters can share a store.
func NewWindowLimiter(store CounterStore, scope string, limit int, window time.Duration) *WindowLimiter {
	if limit < 1 {
		limit = 1
	}
	return &WindowLimiter{
		store:  store,
		scope:  scope,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow implements Limiter.
func (l *WindowLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := l.now().UTC()
	start := now.Truncate(l.window)
	reset := start.Add(l.window)

	encoded := encodeKey(key)
	currentKey := l.counterKey(encoded, start)
	previousKey := l.counterKey(encoded, start.Add(-l.window))

	previous, err := l.store.Get(ctx, previousKey)
	if err != nil {
		return Result{}, fmt.Errorf("read previous window: %w", err)
	}
	current, err := l.store.Get(ctx, currentKey)
	if err != nil {
		return Result{}, fmt.Errorf("read current window: %w", err)
	}

	weight := 1 - float64(now.Sub(start))/float64(l.window)
	estimate := float64(previous)*weight + float64(current)

	if estimate >= float64(l.limit) {
		return Result{
			Allowed:    false,
			Limit:      l.limit,
			Remaining:  0,
			ResetAt:    reset,
			RetryAfter: maxDuration(reset.Sub(now), time.Second),
		}, nil
	}

	current, err = l.store.Increment(ctx, currentKey, 2*l.window)
	if err != nil {
		return Result{}, fmt.Errorf("increment window: %w", err)
	}

	estimate = float64(previous)*weight + float64(current)
	remaining := l.limit - int(math.Ceil(estimate))
	if remaining < 0 {
		remaining = 0
	}

	return Result{
		Allowed:   true,
		Limit:     l.limit,
		Remaining: remaining,
		ResetAt:   reset,
	}, nil
}

func (l *WindowLimiter) counterKey(encoded string, windowStart time.Time) string {
	return fmt.Sprintf("%s.%s.%d", l.scope, encoded, windowStart.Unix())
}
