// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/lucyn/config.yaml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Environment:     "development",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CacheTTL:        30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:       "duckdb",
			Path:         "data/lucyn.duckdb",
			MaxOpenConns: 10,
		},
		Security: SecurityConfig{
			SessionCookieName: "sb-access-token",
			CORSOrigins:       []string{"http://localhost:3000"},
		},
		OAuth: OAuthConfig{
			GitHub: ProviderConfig{
				RedirectURI: "http://localhost:8080/api/integrations/github/callback",
				Scopes:      []string{"read:user", "user:email", "repo", "read:org"},
			},
			Slack: ProviderConfig{
				RedirectURI: "http://localhost:8080/api/integrations/slack/callback",
				Scopes:      []string{"channels:history", "channels:read", "users:read", "team:read"},
			},
			Discord: ProviderConfig{
				RedirectURI: "http://localhost:8080/api/integrations/discord/callback",
				Scopes:      []string{"identify", "guilds"},
			},
			HTTPTimeout: 15 * time.Second,
		},
		RateLimit: RateLimitConfig{
			Enabled:               true,
			Backend:               "memory",
			Requests:              100,
			Window:                time.Minute,
			AuthRequestsPerMinute: 10,
			BadgerPath:            "data/ratelimit",
			NATSBucket:            "lucyn_ratelimit",
		},
		NATS: NATSConfig{
			Enabled:  false,
			Embedded: true,
			URL:      "nats://127.0.0.1:4222",
			StoreDir: "data/nats",
			Stream:   "LUCYN_EVENTS",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		App: AppConfig{
			BaseURL:          "http://localhost:3000",
			IntegrationsPath: "/settings/integrations",
		},
	}
}

// Load builds the configuration from defaults, the config file and the
// environment, in that order, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths are split on commas when they arrive as strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
	"oauth.github.scopes",
	"oauth.slack.scopes",
	"oauth.discord.scopes",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		parts := strings.Split(s, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lower-cased) to config paths.
// Unmapped variables are ignored.
var envMappings = map[string]string{
	"server_host":      "server.host",
	"port":             "server.port",
	"environment":      "server.environment",
	"read_timeout":     "server.read_timeout",
	"write_timeout":    "server.write_timeout",
	"shutdown_timeout": "server.shutdown_timeout",
	"cache_ttl":        "server.cache_ttl",

	"database_driver":         "database.driver",
	"database_path":           "database.path",
	"database_url":            "database.dsn",
	"database_max_open_conns": "database.max_open_conns",
	"seed_mock_data":          "database.seed_mock_data",

	"supabase_jwt_secret": "security.session_jwt_secret",
	"session_cookie_name": "security.session_cookie_name",
	"encryption_key":      "security.token_encryption_key",
	"cors_origins":        "security.cors_origins",
	"cookie_secure":       "security.cookie_secure",

	"github_client_id":      "oauth.github.client_id",
	"github_client_secret":  "oauth.github.client_secret",
	"github_redirect_uri":   "oauth.github.redirect_uri",
	"github_scopes":         "oauth.github.scopes",
	"slack_client_id":       "oauth.slack.client_id",
	"slack_client_secret":   "oauth.slack.client_secret",
	"slack_redirect_uri":    "oauth.slack.redirect_uri",
	"slack_scopes":          "oauth.slack.scopes",
	"discord_client_id":     "oauth.discord.client_id",
	"discord_client_secret": "oauth.discord.client_secret",
	"discord_redirect_uri":  "oauth.discord.redirect_uri",
	"discord_scopes":        "oauth.discord.scopes",
	"oauth_http_timeout":    "oauth.http_timeout",

	"rate_limit_enabled":         "rate_limit.enabled",
	"rate_limit_backend":         "rate_limit.backend",
	"rate_limit_requests":        "rate_limit.requests",
	"rate_limit_window":          "rate_limit.window",
	"rate_limit_auth_per_minute": "rate_limit.auth_requests_per_minute",
	"rate_limit_badger_path":     "rate_limit.badger_path",
	"rate_limit_nats_bucket":     "rate_limit.nats_bucket",

	"nats_enabled":   "nats.enabled",
	"nats_embedded":  "nats.embedded",
	"nats_url":       "nats.url",
	"nats_store_dir": "nats.store_dir",
	"nats_stream":    "nats.stream",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"app_url":               "app.base_url",
	"next_public_app_url":   "app.base_url",
	"app_integrations_path": "app.integrations_path",
}

func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
