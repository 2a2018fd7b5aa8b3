// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package ratelimit

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/lucyn-dev/lucyn/internal/config"
	"github.com/lucyn-dev/lucyn/internal/logging"
)

// Backend names accepted in rate_limit.backend.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
	BackendNATS   = "nats"
)

// ScopeAPI namespaces the authenticated API budget.
const ScopeAPI = "api"

// New builds the API limiter for cfg. js is required for the nats backend
// and ignored otherwise. The returned close function releases the backend.
//
// Backends:
//   - memory: token buckets in process memory (default)
//   - badger: sliding windows over a local BadgerDB
//   - nats: sliding windows over a JetStream key-value bucket shared by
//     all replicas
func New(ctx context.Context, cfg *config.RateLimitConfig, js jetstream.JetStream) (Limiter, func() error, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		l := NewMemoryLimiter(cfg.Requests, cfg.Window)
		return l, func() error { l.Stop(); return nil }, nil

	case BackendBadger:
		store, err := OpenBadgerStore(cfg.BadgerPath)
		if err != nil {
			return nil, nil, err
		}
		logging.Info().Str("path", cfg.BadgerPath).Msg("Rate limiter using BadgerDB counters")
		return NewWindowLimiter(store, ScopeAPI, cfg.Requests, cfg.Window), store.Close, nil

	case BackendNATS:
		if js == nil {
			return nil, nil, fmt.Errorf("nats rate limit backend requires a JetStream connection")
		}
		store, err := NewNATSStore(ctx, js, cfg.NATSBucket, 2*cfg.Window)
		if err != nil {
			return nil, nil, err
		}
		logging.Info().Str("bucket", cfg.NATSBucket).Msg("Rate limiter using JetStream key-value counters")
		return NewWindowLimiter(store, ScopeAPI, cfg.Requests, cfg.Window), func() error { return nil }, nil

	default:
		return nil, nil, fmt.Errorf("unknown rate limit backend %q", cfg.Backend)
	}
}
