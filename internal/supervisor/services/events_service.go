// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package services

import (
	"context"
	"errors"
)

// Runner is a blocking component such as events.AuditConsumer.
type Runner interface {
	Run(ctx context.Context) error
}

// EventsService supervises an event consumer such as the audit consumer.
//
// The consumer's Run blocks until ctx ends. When it returns early, the
// supervisor restarts it:
//
//   - a subscription error (NATS unreachable) is restarted with backoff
//   - context.Canceled during tree shutdown is reported as ctx.Err(), which
//     suture treats as a clean stop
//
// Example usage:
//
//	consumer := events.NewAuditConsumer(bus.Subscriber(), db)
//	tree.AddMessagingService(services.NewEventsService("audit-consumer", consumer))
type EventsService struct {
	runner Runner
	name   string
}

// NewEventsService wraps runner under name.
func NewEventsService(name string, runner Runner) *EventsService {
	return &EventsService{runner: runner, name: name}
}

// Serve implements suture.Service.
func (s *EventsService) Serve(ctx context.Context) error {
	err := s.runner.Run(ctx)
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// String names the service in supervisor logs.
func (s *EventsService) String() string {
	return s.name
}
