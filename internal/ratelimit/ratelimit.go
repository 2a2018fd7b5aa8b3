// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package ratelimit

import (
	"context"
	"encoding/base64"
	"errors"
	"math/rand/v2"
	"time"
)

// Compare-and-set retry policy shared by the remote stores. Backoff starts
// at minConflictBackoff and doubles per attempt up to maxConflictBackoff,
// with full jitter so competing writers spread out.
const (
	maxConflictRetries = 64
	minConflictBackoff = time.Millisecond
	maxConflictBackoff = 10 * time.Millisecond
)

var (
	// ErrLimited reports a denied request.
	ErrLimited = errors.New("rate limit exceeded")

	// ErrConflict is returned when a counter could not be updated after
	// repeated concurrent modifications.
	ErrConflict = errors.New("rate limit counter contention")
)

// Result describes one limiter decision.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is when the caller's budget is fully restored.
	ResetAt time.Time
	// RetryAfter is how long a denied caller should wait. Zero when allowed.
	RetryAfter time.Duration
}

// Err returns ErrLimited for denied results.
func (r Result) Err() error {
	if r.Allowed {
		return nil
	}
	return ErrLimited
}

// Limiter decides whether the caller identified by key may proceed.
// Allowed requests consume budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// conflictBackoff waits before retry number attempt (0-based) of a
// conflicting counter update. It returns early with ctx's error.
func conflictBackoff(ctx context.Context, attempt int) error {
	ceiling := maxConflictBackoff
	if attempt < 4 {
		ceiling = minConflictBackoff << attempt
	}
	wait := minConflictBackoff/2 + rand.N(ceiling)

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// encodeKey maps arbitrary caller keys (IPv6 addresses, emails) onto the
// token alphabet accepted by every store, including NATS KV.
func encodeKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}
