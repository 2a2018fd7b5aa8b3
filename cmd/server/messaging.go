// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/lucyn-dev/lucyn/internal/config"
	"github.com/lucyn-dev/lucyn/internal/events"
	"github.com/lucyn-dev/lucyn/internal/logging"
	"github.com/lucyn-dev/lucyn/internal/ratelimit"
)

// Messaging holds the event bus and, when NATS is enabled, the embedded
// server and the JetStream connection shared with the rate limiter.
type Messaging struct {
	embedded *events.EmbeddedServer
	bus      *events.Bus
	conn     *nats.Conn
	js       jetstream.JetStream
}

// InitMessaging starts the event bus described by cfg. With NATS disabled
// events travel over an in-process channel.
func InitMessaging(ctx context.Context, cfg *config.NATSConfig) (*Messaging, error) {
	if !cfg.Enabled {
		logging.Info().Msg("NATS disabled, using in-process event bus")
		return &Messaging{bus: events.NewInProcessBus()}, nil
	}

	m := &Messaging{}
	url := cfg.URL

	if cfg.Embedded {
		srv, err := events.NewEmbeddedServer(cfg.URL, cfg.StoreDir)
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS: %w", err)
		}
		m.embedded = srv
		url = srv.ClientURL()
		logging.Info().Str("url", url).Str("store_dir", cfg.StoreDir).Msg("Embedded NATS server started")
	}

	bus, err := events.NewNATSBus(ctx, url, cfg.Stream)
	if err != nil {
		m.Shutdown()
		return nil, err
	}
	m.bus = bus

	conn, err := nats.Connect(url,
		nats.Name("lucyn-kv"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		m.Shutdown()
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	m.conn = conn

	js, err := jetstream.New(conn)
	if err != nil {
		m.Shutdown()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}
	m.js = js

	logging.Info().Str("url", url).Str("stream", cfg.Stream).Msg("NATS event bus ready")
	return m, nil
}

// Bus returns the event bus.
func (m *Messaging) Bus() *events.Bus {
	return m.bus
}

// JetStream returns the JetStream context, or nil without NATS.
func (m *Messaging) JetStream() jetstream.JetStream {
	return m.js
}

// Shutdown closes the bus, the connection and the embedded server, in that
// order.
func (m *Messaging) Shutdown() {
	if m == nil {
		return
	}
	if m.bus != nil {
		if err := m.bus.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close event bus")
		}
	}
	if m.conn != nil {
		m.conn.Close()
	}
	if m.embedded != nil {
		m.embedded.Shutdown()
	}
}

// InitRateLimit builds the API limiter. It returns a nil limiter when rate
// limiting is disabled.
func InitRateLimit(ctx context.Context, cfg *config.RateLimitConfig, js jetstream.JetStream) (ratelimit.Limiter, func() error, error) {
	if !cfg.Enabled {
		logging.Warn().Msg("API rate limiting disabled")
		return nil, func() error { return nil }, nil
	}
	limiter, closeFn, err := ratelimit.New(ctx, cfg, js)
	if err != nil {
		return nil, nil, fmt.Errorf("init rate limiter: %w", err)
	}
	logging.Info().
		Str("backend", cfg.Backend).
		Int("requests", cfg.Requests).
		Dur("window", cfg.Window).
		Msg("API rate limiter ready")
	return limiter, closeFn, nil
}
