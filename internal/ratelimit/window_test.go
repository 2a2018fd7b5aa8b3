// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestWindowLimiter(store CounterStore, limit int, clock *fakeClock) *WindowLimiter {
	l := NewWindowLimiter(store, "test", limit, time.Minute)
	l.now = clock.Now
	return l
}

func TestWindowLimiter_FixedWindow(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore()
	store.now = clock.Now
	l := newTestWindowLimiter(store, 3, clock)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := l.Allow(ctx, "ip:10.0.0.1")
		if err != nil {
			t.Fatal(err)
		}
		if !res.Allowed || res.Remaining != 2-i {
			t.Fatalf("request %d: %+v", i+1, res)
		}
	}

	res, err := l.Allow(ctx, "ip:10.0.0.1")
	if err != nil {
		t.Fatal(err)
	}
	if res.Allowed {
		t.Fatal("4th request allowed")
	}
	if want := clock.t.Truncate(time.Minute).Add(time.Minute); !res.ResetAt.Equal(want) {
		t.Errorf("ResetAt = %v, want %v", res.ResetAt, want)
	}
	if res.RetryAfter < time.Second {
		t.Errorf("RetryAfter = %v", res.RetryAfter)
	}
}

func TestWindowLimiter_SlidingWeight(t *testing.T) {
	clock := newClock()
	store := NewMemoryStore()
	store.now = clock.Now
	l := newTestWindowLimiter(store, 4, clock)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		l.Allow(ctx, "k")
	}

	// 15s into the next window the previous window still weighs 0.75,
	// leaving room for exactly one more request (3 + 1 = 4).
	clock.Advance(time.Minute + 15*time.Second)
	res, _ := l.Allow(ctx, "k")
	if !res.Allowed {
		t.Fatal("expected allow at 0.75 weight")
	}
	res, _ = l.Allow(ctx, "k")
	if res.Allowed {
		t.Fatal("expected deny once estimate reaches limit")
	}

	// Two windows later nothing remains.
	clock.Advance(2 * time.Minute)
	res, _ = l.Allow(ctx, "k")
	if !res.Allowed || res.Remaining != 3 {
		t.Errorf("after idle: %+v", res)
	}
}

type failingStore struct{ err error }

func (s failingStore) Get(context.Context, string) (int64, error) { return 0, s.err }
func (s failingStore) Increment(context.Context, string, time.Duration) (int64, error) {
	return 0, s.err
}

func TestWindowLimiter_StoreError(t *testing.T) {
	boom := errors.New("connection refused")
	l := NewWindowLimiter(failingStore{err: boom}, "api", 10, time.Minute)
	if _, err := l.Allow(context.Background(), "k"); !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped %v", err, boom)
	}
}

func TestEncodeKey(t *testing.T) {
	got := encodeKey("ip:2001:db8::1")
	for _, r := range got {
		ok := r == '-' || r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !ok {
			t.Fatalf("encoded key %q contains %q", got, r)
		}
	}
}
