// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

// Package config loads Lucyn's configuration from defaults, an optional
// YAML file and environment variables (highest priority).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Security  SecurityConfig  `koanf:"security"`
	OAuth     OAuthConfig     `koanf:"oauth"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	NATS      NATSConfig      `koanf:"nats"`
	Logging   LoggingConfig   `koanf:"logging"`
	App       AppConfig       `koanf:"app"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	Environment     string        `koanf:"environment"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	// CacheTTL is how long dashboard overviews are cached. Zero disables it.
	CacheTTL time.Duration `koanf:"cache_ttl"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// IsProduction reports whether the server runs in production mode.
func (s ServerConfig) IsProduction() bool {
	return s.Environment == "production"
}

// DatabaseConfig selects the relational store.
//
// Driver is "duckdb" (embedded file, Path) or "postgres" (DSN).
type DatabaseConfig struct {
	Driver       string `koanf:"driver"`
	Path         string `koanf:"path"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	SeedMockData bool   `koanf:"seed_mock_data"`
}

// SecurityConfig holds session and secret material.
type SecurityConfig struct {
	// SessionJWTSecret verifies the HS256 access tokens issued by the
	// identity provider (Supabase JWT secret).
	SessionJWTSecret string `koanf:"session_jwt_secret"`

	// SessionCookieName is read when no Authorization header is present.
	SessionCookieName string `koanf:"session_cookie_name"`

	// TokenEncryptionKey is a base64 master key for provider tokens at rest.
	TokenEncryptionKey string `koanf:"token_encryption_key"`

	CORSOrigins  []string `koanf:"cors_origins"`
	CookieSecure bool     `koanf:"cookie_secure"`
}

// ProviderConfig configures one OAuth provider.
type ProviderConfig struct {
	ClientID     string   `koanf:"client_id"`
	ClientSecret string   `koanf:"client_secret"`
	RedirectURI  string   `koanf:"redirect_uri" validate:"omitempty,url"`
	Scopes       []string `koanf:"scopes"`
}

// Enabled reports whether the provider has client credentials.
func (p ProviderConfig) Enabled() bool {
	return p.ClientID != "" && p.ClientSecret != ""
}

// OAuthConfig groups the integration providers.
type OAuthConfig struct {
	GitHub  ProviderConfig `koanf:"github"`
	Slack   ProviderConfig `koanf:"slack"`
	Discord ProviderConfig `koanf:"discord"`

	// HTTPTimeout bounds each call to a provider.
	HTTPTimeout time.Duration `koanf:"http_timeout"`
}

// Providers returns the provider configs keyed by provider name.
func (o OAuthConfig) Providers() map[string]ProviderConfig {
	return map[string]ProviderConfig{
		"github":  o.GitHub,
		"slack":   o.Slack,
		"discord": o.Discord,
	}
}

// RateLimitConfig configures the API limiter.
//
// Backend is "memory" (per-process token bucket), "nats" (JetStream
// key-value bucket shared by all replicas) or "badger" (local disk).
type RateLimitConfig struct {
	Enabled               bool          `koanf:"enabled"`
	Backend               string        `koanf:"backend"`
	Requests              int           `koanf:"requests"`
	Window                time.Duration `koanf:"window"`
	AuthRequestsPerMinute int           `koanf:"auth_requests_per_minute"`
	BadgerPath            string        `koanf:"badger_path"`
	NATSBucket            string        `koanf:"nats_bucket"`
}

// NATSConfig configures event publishing and the shared key-value store.
type NATSConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Embedded bool   `koanf:"embedded"`
	URL      string `koanf:"url"`
	StoreDir string `koanf:"store_dir"`
	Stream   string `koanf:"stream"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// AppConfig locates the dashboard front end.
type AppConfig struct {
	BaseURL          string `koanf:"base_url"`
	IntegrationsPath string `koanf:"integrations_path"`
}

// IntegrationsURL returns the absolute page the OAuth callbacks redirect to.
func (a AppConfig) IntegrationsURL() string {
	return a.BaseURL + a.IntegrationsPath
}
