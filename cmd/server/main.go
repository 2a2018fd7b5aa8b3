// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

// Package main is the entry point of the Lucyn API server.
//
// Lucyn connects a company's GitHub, Slack and Discord accounts and serves
// team-health analytics to the dashboard.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: defaults, config.yaml, then environment (Koanf v2)
//  2. Database: DuckDB (embedded) or Postgres, migrated on open
//  3. Security: session verifier, token encryptor, Casbin role policy
//  4. OAuth: GitHub, Slack and Discord providers with client credentials
//  5. Messaging: NATS JetStream (optionally embedded) or an in-process bus
//  6. Rate limiting: memory, Badger or JetStream key-value backend
//  7. HTTP Server: Chi router under a suture supervisor tree
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the supervisor tree; the HTTP server drains
// in-flight requests within server.shutdown_timeout, then messaging and the
// database are closed.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lucyn-dev/lucyn/internal/api"
	"github.com/lucyn-dev/lucyn/internal/auth"
	"github.com/lucyn-dev/lucyn/internal/authz"
	"github.com/lucyn-dev/lucyn/internal/config"
	"github.com/lucyn-dev/lucyn/internal/database"
	"github.com/lucyn-dev/lucyn/internal/events"
	"github.com/lucyn-dev/lucyn/internal/logging"
	"github.com/lucyn-dev/lucyn/internal/oauth"
	"github.com/lucyn-dev/lucyn/internal/supervisor"
	"github.com/lucyn-dev/lucyn/internal/supervisor/services"
)

// devTokenTTL is the lifetime of the session token logged after seeding.
const devTokenTTL = 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("environment", cfg.Server.Environment).
		Str("db_driver", cfg.Database.Driver).
		Bool("nats_enabled", cfg.NATS.Enabled).
		Msg("Starting Lucyn with supervisor tree")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("Server failed")
	}
	logging.Info().Msg("Application stopped gracefully")
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.Open(&cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close database")
		}
	}()

	verifier, err := auth.NewSessionVerifier(cfg.Security.SessionJWTSecret)
	if err != nil {
		return err
	}

	if cfg.Database.SeedMockData {
		if err := seedDevelopment(ctx, db, verifier, cfg.Server.IsProduction()); err != nil {
			return err
		}
	}

	encryptor, err := initEncryptor(&cfg.Security)
	if err != nil {
		return err
	}

	enforcer, err := authz.NewEnforcer()
	if err != nil {
		return err
	}

	registry := oauth.NewRegistry(&cfg.OAuth)

	msg, err := InitMessaging(ctx, &cfg.NATS)
	if err != nil {
		return err
	}
	defer msg.Shutdown()

	limiter, closeLimiter, err := InitRateLimit(ctx, &cfg.RateLimit, msg.JetStream())
	if err != nil {
		return err
	}
	defer func() {
		if err := closeLimiter(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close rate limiter")
		}
	}()

	publisher := msg.Bus().Publisher()
	defer func() { _ = publisher.Close() }()

	handler := api.NewHandler(db, registry, encryptor, enforcer, cfg)
	handler.SetEventPublisher(publisher)
	defer handler.Close()

	oauthLimit := 0
	if cfg.RateLimit.Enabled {
		oauthLimit = cfg.RateLimit.AuthRequestsPerMinute
	}
	router := api.NewRouter(
		handler,
		auth.NewMiddleware(verifier, api.NewUserResolver(db), cfg.Security.SessionCookieName),
		authz.NewMiddleware(enforcer),
		limiter,
		api.NewChiMiddleware(&api.ChiMiddlewareConfig{
			CORSAllowedOrigins:     cfg.Security.CORSOrigins,
			OAuthRequestsPerMinute: oauthLimit,
		}),
	)

	server := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router.SetupChi(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	// === SUPERVISOR TREE ===

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout + 5*time.Second,
	})

	consumer := events.NewAuditConsumer(msg.Bus().Subscriber(), db)
	tree.AddMessagingService(services.NewEventsService("audit-consumer", consumer))
	logging.Info().Str("transport", msg.Bus().Transport()).Msg("Audit consumer added to supervisor tree")

	tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	// errCh receives exactly one value when the tree stops.
	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			serveErr = err
		}
	}
	cancel()

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
	return serveErr
}

// initEncryptor builds the provider token encryptor. Without a key it
// returns nil and tokens are stored as received.
func initEncryptor(cfg *config.SecurityConfig) (*auth.TokenEncryptor, error) {
	if cfg.TokenEncryptionKey == "" {
		logging.Warn().Msg("ENCRYPTION_KEY not set: provider tokens are stored unencrypted")
		return nil, nil
	}
	return auth.NewTokenEncryptor(cfg.TokenEncryptionKey)
}

// seedDevelopment loads the demo organization and logs a session token for
// its owner so the dashboard can be exercised without an identity provider.
func seedDevelopment(ctx context.Context, db *database.DB, verifier *auth.SessionVerifier, production bool) error {
	if production {
		logging.Warn().Msg("Ignoring database.seed_mock_data in production")
		return nil
	}
	owner, err := db.SeedMockData(ctx)
	if err != nil {
		return err
	}
	token, err := verifier.IssueToken(owner.ID, owner.Email, devTokenTTL)
	if err != nil {
		return err
	}
	logging.Info().
		Str("user_id", owner.ID).
		Str("email", owner.Email).
		Str("token", token).
		Msg("Development session token for the demo owner")
	return nil
}
