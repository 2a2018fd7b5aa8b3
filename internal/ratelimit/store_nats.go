// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// NATSStore keeps counters in a JetStream key-value bucket so every replica
// shares one budget per client.
//
// Expiry is the bucket's max age, so the ttl passed to Increment is ignored;
// create the bucket with at least two rate-limit windows.
//
// Increment is a compare-and-swap on the key's revision. Replicas that lose
// the race back off with jitter and retry, giving up only after
// maxConflictRetries attempts or when the context ends.
type NATSStore struct {
	kv jetstream.KeyValue
}

// NewNATSStore creates or updates the bucket and returns a store over it.
func NewNATSStore(ctx context.Context, js jetstream.JetStream, bucket string, ttl time.Duration) (*NATSStore, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "Lucyn API rate limit counters",
		History:     1,
		TTL:         ttl,
		Storage:     jetstream.MemoryStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("create key-value bucket %s: %w", bucket, err)
	}
	return &NATSStore{kv: kv}, nil
}

// Get implements CounterStore.
func (s *NATSStore) Get(ctx context.Context, key string) (int64, error) {
	entry, err := s.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(entry.Value()), 10, 64)
}

// Increment implements CounterStore with compare-and-set on the entry
// revision. When another writer got there first it backs off with jitter
// and retries, up to maxConflictRetries attempts or until ctx ends.
func (s *NATSStore) Increment(ctx context.Context, key string, _ time.Duration) (int64, error) {
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if attempt > 0 {
			if err := conflictBackoff(ctx, attempt-1); err != nil {
				return 0, err
			}
		}

		n, err := s.tryIncrement(ctx, key)
		if isRevisionConflict(err) {
			continue
		}
		return n, err
	}
	return 0, ErrConflict
}

// tryIncrement makes one compare-and-set attempt.
func (s *NATSStore) tryIncrement(ctx context.Context, key string) (int64, error) {
	entry, err := s.kv.Get(ctx, key)
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		if _, err := s.kv.Create(ctx, key, []byte("1")); err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}

	n, err := strconv.ParseInt(string(entry.Value()), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("corrupt counter %s: %w", key, err)
	}
	n++

	if _, err := s.kv.Update(ctx, key, []byte(strconv.FormatInt(n, 10)), entry.Revision()); err != nil {
		return 0, err
	}
	return n, nil
}

func isRevisionConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, jetstream.ErrKeyExists) {
		return true
	}
	var apiErr *jetstream.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}
