// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const auditDurablePrefix = "lucyn_audit"

// Bus owns a Watermill publisher and subscriber pair.
//
// Two transports are supported:
//   - gochannel (NewInProcessBus): in-memory, lost on restart, for tests and
//     single-process development
//   - nats (NewNATSBus): JetStream-backed with one durable consumer per topic,
//     publisher-side deduplication on the event ID and bounded redelivery
//
// Close releases both halves in order. Publishers handed out by the bus must
// not be used after it.
//
// Example usage:
//
//	bus, err := events.NewNATSBus(ctx, cfg.NATS.URL, cfg.NATS.Stream)
//	if err != nil {
//	    return err
//	}
//	defer bus.Close()
//	pub := bus.Publisher()
type Bus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	transport  string
	closers    []func() error
}

// NewInProcessBus returns a bus over a Go channel pub/sub. Messages are lost
// on restart.
func NewInProcessBus() *Bus {
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 64,
	}, NewLoggerAdapter())
	return &Bus{
		publisher:  ch,
		subscriber: ch,
		transport:  "gochannel",
		closers:    []func() error{ch.Close},
	}
}

// NewNATSBus connects to url, ensures the events stream and returns a bus
// publishing and consuming through JetStream.
func NewNATSBus(ctx context.Context, url, stream string) (*Bus, error) {
	logger := NewLoggerAdapter()

	if err := ensureStream(ctx, url, stream); err != nil {
		return nil, err
	}

	natsOpts := []natsgo.Option{
		natsgo.Name("lucyn-events"),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(nc *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("NATS disconnected", err, nil)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("NATS reconnected", watermill.LogFields{"url": nc.ConnectedUrl()})
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     10 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			AckAsync:      false,
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.BindStream(stream),
				natsgo.DeliverAll(),
				natsgo.MaxDeliver(DefaultAuditMaxAttempts),
				natsgo.AckExplicit(),
			},
			DurablePrefix:     auditDurablePrefix,
			DurableCalculator: durableName,
		},
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	return &Bus{
		publisher:  pub,
		subscriber: sub,
		transport:  "nats",
		closers:    []func() error{pub.Close, sub.Close},
	}, nil
}

// durableName gives each topic its own durable consumer. Durable names may
// not contain dots.
func durableName(prefix, topic string) string {
	return prefix + "_" + strings.ReplaceAll(topic, ".", "_")
}

// ensureStream creates or updates the events stream.
func ensureStream(ctx context.Context, url, name string) error {
	nc, err := natsgo.Connect(url, natsgo.Name("lucyn-stream-init"))
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer nc.Close()

	js, err := jetstream.New(nc)
	if err != nil {
		return fmt.Errorf("jetstream context: %w", err)
	}

	cfg := jetstream.StreamConfig{
		Name:       name,
		Subjects:   StreamSubjects,
		Retention:  jetstream.LimitsPolicy,
		MaxAge:     30 * 24 * time.Hour,
		Duplicates: 2 * time.Minute,
		Storage:    jetstream.FileStorage,
		Discard:    jetstream.DiscardOld,
	}

	_, err = js.Stream(ctx, name)
	switch {
	case err == nil:
		if _, err := js.UpdateStream(ctx, cfg); err != nil {
			return fmt.Errorf("update stream %s: %w", name, err)
		}
	case errors.Is(err, jetstream.ErrStreamNotFound):
		if _, err := js.CreateStream(ctx, cfg); err != nil {
			return fmt.Errorf("create stream %s: %w", name, err)
		}
	default:
		return fmt.Errorf("check stream %s: %w", name, err)
	}
	return nil
}

// Publisher returns an event publisher over the bus.
func (b *Bus) Publisher() *Publisher {
	return NewPublisher(b.publisher)
}

// Subscriber returns the raw Watermill subscriber.
func (b *Bus) Subscriber() message.Subscriber {
	return b.subscriber
}

// Transport names the backing transport ("nats" or "gochannel").
func (b *Bus) Transport() string {
	return b.transport
}

// Close closes the publisher and subscriber.
func (b *Bus) Close() error {
	var errs []error
	for _, c := range b.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
