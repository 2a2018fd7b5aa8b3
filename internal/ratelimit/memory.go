// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MemoryLimiter keeps one token bucket per key in process memory.
// Refill rate is limit/window with a burst of limit.
type MemoryLimiter struct {
	mu       sync.Mutex
	entries  map[string]*limiterEntry
	limit    int
	rate     rate.Limit
	idleTTL  time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// limiterEntry wraps a rate limiter with last access time
type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewMemoryLimiter creates a limiter and starts its eviction loop.
// Call Stop to end it.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	l := newMemoryLimiter(limit, window, time.Now)
	go l.cleanupLoop(maxDuration(window, time.Minute))
	return l
}

func newMemoryLimiter(limit int, window time.Duration, now func() time.Time) *MemoryLimiter {
	if limit < 1 {
		limit = 1
	}
	return &MemoryLimiter{
		entries: make(map[string]*limiterEntry),
		limit:   limit,
		rate:    rate.Limit(float64(limit) / window.Seconds()),
		idleTTL: maxDuration(2*window, time.Minute),
		now:     now,
		stop:    make(chan struct{}),
	}
}

// Allow implements Limiter. It never returns an error.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := l.now()

	l.mu.Lock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(l.rate, l.limit)}
		l.entries[key] = entry
	}
	entry.lastAccess = now
	limiter := entry.limiter
	l.mu.Unlock()

	allowed := limiter.AllowN(now, 1)
	tokens := limiter.TokensAt(now)

	res := Result{
		Allowed:   allowed,
		Limit:     l.limit,
		Remaining: int(math.Max(0, math.Floor(tokens))),
		ResetAt:   now.Add(l.refillTime(float64(l.limit) - tokens)),
	}
	if !allowed {
		res.RetryAfter = l.refillTime(1 - tokens)
	}
	return res, nil
}

// refillTime is how long the bucket needs to gain n tokens.
func (l *MemoryLimiter) refillTime(n float64) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n / float64(l.rate) * float64(time.Second))
}

// Stop ends the eviction loop. Safe to call more than once.
func (l *MemoryLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *MemoryLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.cleanup()
		case <-l.stop:
			return
		}
	}
}

// cleanup drops buckets idle longer than idleTTL. By then they have fully
// refilled, so a fresh bucket is equivalent.
func (l *MemoryLimiter) cleanup() {
	threshold := l.now().Add(-l.idleTTL)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, entry := range l.entries {
		if entry.lastAccess.Before(threshold) {
			delete(l.entries, key)
		}
	}
}

func (l *MemoryLimiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
