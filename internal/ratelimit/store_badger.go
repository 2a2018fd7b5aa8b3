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

	"github.com/dgraph-io/badger/v4"
)

const badgerKeyPrefix = "ratelimit:"

// BadgerStore keeps counters in BadgerDB with per-entry TTL. Increments run
// in read-write transactions; a transaction conflict is retried with the
// same jittered backoff as the NATS store.
type BadgerStore struct {
	db     *badger.DB
	ownsDB bool
}

// OpenBadgerStore opens (or creates) a BadgerDB at path. An empty path gives
// an in-memory database.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &BadgerStore{db: db, ownsDB: true}, nil
}

// NewBadgerStore wraps an already open database. Close leaves it open.
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Get implements CounterStore.
func (s *BadgerStore) Get(_ context.Context, key string) (int64, error) {
	var n int64
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(badgerKeyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			n, err = strconv.ParseInt(string(val), 10, 64)
			return err
		})
	})
	return n, err
}

// Increment implements CounterStore. Transaction conflicts from concurrent
// writers are retried with the same jittered backoff as NATSStore.
func (s *BadgerStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	k := []byte(badgerKeyPrefix + key)

	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if attempt > 0 {
			if err := conflictBackoff(ctx, attempt-1); err != nil {
				return 0, err
			}
		}

		var n int64
		err := s.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(k)
			switch {
			case errors.Is(err, badger.ErrKeyNotFound):
				n = 0
			case err != nil:
				return err
			default:
				if err := item.Value(func(val []byte) error {
					n, err = strconv.ParseInt(string(val), 10, 64)
					return err
				}); err != nil {
					return err
				}
			}
			n++
			return txn.SetEntry(badger.NewEntry(k, []byte(strconv.FormatInt(n, 10))).WithTTL(ttl))
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return 0, err
		}
		return n, nil
	}
	return 0, ErrConflict
}

// Close closes the database if this store opened it.
func (s *BadgerStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}
