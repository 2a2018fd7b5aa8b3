// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a CounterStore for tests and single-process setups.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]memoryCounter
	now      func() time.Time
}

type memoryCounter struct {
	value     int64
	expiresAt time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]memoryCounter), now: time.Now}
}

// Get implements CounterStore.
func (s *MemoryStore) Get(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok {
		return 0, nil
	}
	if s.now().After(c.expiresAt) {
		delete(s.counters, key)
		return 0, nil
	}
	return c.value, nil
}

// Increment implements CounterStore.
func (s *MemoryStore) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	c := s.counters[key]
	if now.After(c.expiresAt) {
		c.value = 0
	}
	c.value++
	c.expiresAt = now.Add(ttl)
	s.counters[key] = c
	return c.value, nil
}
