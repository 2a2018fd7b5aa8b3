// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package config

import (
	"encoding/base64"
	"fmt"
	"slices"

	"github.com/lucyn-dev/lucyn/internal/validation"
)

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateOAuth(); err != nil {
		return err
	}
	if err := c.validateRateLimit(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.App.BaseURL == "" {
		return fmt.Errorf("APP_URL is required")
	}
	if c.Server.CacheTTL < 0 {
		return fmt.Errorf("CACHE_TTL must not be negative, got %s", c.Server.CacheTTL)
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "duckdb":
		if c.Database.Path == "" {
			return fmt.Errorf("DATABASE_PATH is required for the duckdb driver")
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("DATABASE_DRIVER must be duckdb or postgres, got %q", c.Database.Driver)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if c.Security.SessionJWTSecret == "" {
		return fmt.Errorf("SUPABASE_JWT_SECRET is required to verify sessions")
	}
	if c.Server.IsProduction() && len(c.Security.SessionJWTSecret) < 32 {
		return fmt.Errorf("SUPABASE_JWT_SECRET must be at least 32 characters in production")
	}

	if key := c.Security.TokenEncryptionKey; key != "" {
		raw, err := base64.StdEncoding.DecodeString(key)
		if err != nil {
			return fmt.Errorf("ENCRYPTION_KEY must be base64 encoded: %w", err)
		}
		if len(raw) < 16 {
			return fmt.Errorf("ENCRYPTION_KEY must decode to at least 16 bytes, got %d", len(raw))
		}
	} else if c.Server.IsProduction() {
		return fmt.Errorf("ENCRYPTION_KEY is required in production")
	}

	if c.Server.IsProduction() && slices.Contains(c.Security.CORSOrigins, "*") {
		return fmt.Errorf("CORS_ORIGINS must not contain '*' in production")
	}
	return nil
}

func (c *Config) validateOAuth() error {
	for name, p := range c.OAuth.Providers() {
		if (p.ClientID == "") != (p.ClientSecret == "") {
			return fmt.Errorf("oauth.%s: client_id and client_secret must be set together", name)
		}
		if !p.Enabled() {
			continue
		}
		if p.RedirectURI == "" {
			return fmt.Errorf("oauth.%s: redirect_uri is required", name)
		}
		if verr := validation.ValidateStruct(&p); verr != nil {
			return fmt.Errorf("oauth.%s: %w", name, verr)
		}
	}
	if c.OAuth.HTTPTimeout <= 0 {
		return fmt.Errorf("OAUTH_HTTP_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateRateLimit() error {
	rl := c.RateLimit
	if !rl.Enabled {
		return nil
	}
	switch rl.Backend {
	case "memory":
	case "nats":
		if !c.NATS.Enabled {
			return fmt.Errorf("RATE_LIMIT_BACKEND=nats requires NATS_ENABLED=true")
		}
		if rl.NATSBucket == "" {
			return fmt.Errorf("RATE_LIMIT_NATS_BUCKET is required for the nats backend")
		}
	case "badger":
		if rl.BadgerPath == "" {
			return fmt.Errorf("RATE_LIMIT_BADGER_PATH is required for the badger backend")
		}
	default:
		return fmt.Errorf("RATE_LIMIT_BACKEND must be memory, nats or badger, got %q", rl.Backend)
	}
	if rl.Requests < 1 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be at least 1")
	}
	if rl.Window <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
	}
	if rl.AuthRequestsPerMinute < 1 {
		return fmt.Errorf("RATE_LIMIT_AUTH_PER_MINUTE must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
}
