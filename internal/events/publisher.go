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

	"github.com/ThreeDotsLabs/watermill/message"
	natsgo "github.com/nats-io/nats.go"

	"github.com/lucyn-dev/lucyn/internal/logging"
	"github.com/lucyn-dev/lucyn/internal/metrics"
)

// ErrPublisherClosed is returned after Close.
var ErrPublisherClosed = errors.New("publisher is closed")

// Publisher sends events to a Watermill publisher.
type Publisher struct {
	publisher message.Publisher
	mu        sync.RWMutex
	closed    bool
}

// NewPublisher wraps pub.
func NewPublisher(pub message.Publisher) *Publisher {
	return &Publisher{publisher: pub}
}

// Publish serializes e and sends it on the topic named by e.Type. The event
// ID doubles as the Nats-Msg-Id so JetStream drops duplicates.
func (p *Publisher) Publish(ctx context.Context, e *Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPublisherClosed
	}

	if err := e.Validate(); err != nil {
		return err
	}
	data, err := e.Marshal()
	if err != nil {
		return fmt.Errorf("serialize event: %w", err)
	}

	msg := message.NewMessage(e.ID, data)
	msg.SetContext(ctx)
	msg.Metadata.Set(natsgo.MsgIdHdr, e.ID)
	msg.Metadata.Set("organization_id", e.OrganizationID)
	msg.Metadata.Set("provider", e.Provider)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		msg.Metadata.Set("correlation_id", id)
	}

	err = p.publisher.Publish(e.Type, msg)
	metrics.RecordEventPublished(e.Type, err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}

	logging.Ctx(ctx).Debug().
		Str("event_id", e.ID).
		Str("topic", e.Type).
		Str("provider", e.Provider).
		Msg("Event published")
	return nil
}

// Close stops accepting events. The underlying publisher is owned by the Bus.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
