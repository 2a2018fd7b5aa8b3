// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/lucyn-dev/lucyn/internal/logging"
	"github.com/lucyn-dev/lucyn/internal/metrics"
	"github.com/lucyn-dev/lucyn/internal/models"
)

// errMalformed marks messages that can never be processed. They are acked
// and dropped instead of being redelivered forever.
var errMalformed = errors.New("malformed event")

// AuditStore persists audit events. Inserts must be idempotent on ID since
// messages can be redelivered.
type AuditStore interface {
	InsertAuditEvent(ctx context.Context, ev *models.AuditEvent) error
}

// Redelivery policy for failed inserts. It matches the JetStream
// subscriber's MaxDeliver so both transports give up after the same number
// of attempts.
const (
	DefaultAuditMaxAttempts = 5
	DefaultAuditRetryDelay  = 200 * time.Millisecond
	maxAuditRetryDelay      = 5 * time.Second
)

// AuditConsumer writes every lifecycle event to the audit trail.
//
// Delivery semantics:
//
//  1. A stored event is acked.
//  2. A malformed payload is acked and dropped; redelivery cannot fix it.
//  3. A store failure waits retryDelay times the attempt number, capped at
//     5s, then nacks for redelivery. The in-process bus redelivers at once,
//     so the wait keeps a failing store from turning into a hot loop.
//  4. After maxAttempts failures the event is logged and acked.
//
// Example usage:
//
//	consumer := events.NewAuditConsumer(bus.Subscriber(), db)
//	tree.AddMessagingService(services.NewEventsService("audit-consumer", consumer))
type AuditConsumer struct {
	subscriber  message.Subscriber
	store       AuditStore
	topics      []string
	maxAttempts int
	retryDelay  time.Duration
}

// NewAuditConsumer creates a consumer for all Topics with the default
// redelivery policy.
func NewAuditConsumer(sub message.Subscriber, store AuditStore) *AuditConsumer {
	return &AuditConsumer{
		subscriber:  sub,
		store:       store,
		topics:      Topics,
		maxAttempts: DefaultAuditMaxAttempts,
		retryDelay:  DefaultAuditRetryDelay,
	}
}

// Run subscribes to every topic and processes messages until ctx is done.
func (c *AuditConsumer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, topic := range c.topics {
		msgs, err := c.subscriber.Subscribe(ctx, topic)
		if err != nil {
			cancel()
			wg.Wait()
			return fmt.Errorf("subscribe to %s: %w", topic, err)
		}

		wg.Add(1)
		go func(topic string, msgs <-chan *message.Message) {
			defer wg.Done()
			c.consume(ctx, topic, msgs)
		}(topic, msgs)
	}

	logging.Info().Strs("topics", c.topics).Msg("Audit consumer started")
	<-ctx.Done()
	wg.Wait()
	return ctx.Err()
}

// consume processes one topic's messages. Failed attempts are counted per
// message UUID, which both transports preserve across redelivery.
func (c *AuditConsumer) consume(ctx context.Context, topic string, msgs <-chan *message.Message) {
	attempts := make(map[string]int)

	for msg := range msgs {
		err := c.Handle(ctx, msg)
		metrics.RecordEventConsumed(topic, err)

		switch {
		case err == nil:
			delete(attempts, msg.UUID)
			msg.Ack()

		case errors.Is(err, errMalformed):
			logging.Warn().Err(err).
				Str("topic", topic).
				Str("message_uuid", msg.UUID).
				Msg("Dropping malformed event")
			msg.Ack()

		default:
			attempts[msg.UUID]++
			n := attempts[msg.UUID]
			if n >= c.maxAttempts {
				delete(attempts, msg.UUID)
				logging.Error().Err(err).
					Str("topic", topic).
					Str("message_uuid", msg.UUID).
					Int("attempts", n).
					Msg("Giving up on audit event")
				msg.Ack()
				continue
			}

			logging.Error().Err(err).
				Str("topic", topic).
				Str("message_uuid", msg.UUID).
				Int("attempt", n).
				Msg("Audit event processing failed, will retry")
			if !sleepCtx(ctx, c.backoff(n)) {
				msg.Nack()
				return
			}
			msg.Nack()
		}
	}
}

// backoff returns the wait before redelivering after the nth failure.
func (c *AuditConsumer) backoff(n int) time.Duration {
	d := c.retryDelay * time.Duration(n)
	if d > maxAuditRetryDelay {
		d = maxAuditRetryDelay
	}
	return d
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// Handle decodes one message and stores it.
func (c *AuditConsumer) Handle(ctx context.Context, msg *message.Message) error {
	e, err := Unmarshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}
	if err := c.store.InsertAuditEvent(ctx, e.AuditEvent()); err != nil {
		return fmt.Errorf("store audit event %s: %w", e.ID, err)
	}
	return nil
}
