// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package oauth

import (
	"net/http"
	"sort"
	"strings"
	"sync"

	"golang.org/x/oauth2"

	"github.com/lucyn-dev/lucyn/internal/config"
	"github.com/lucyn-dev/lucyn/internal/logging"
	"github.com/lucyn-dev/lucyn/internal/models"
)

// Registry holds the configured providers by name.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry builds every provider that has client credentials. Options
// apply to all of them; a client with cfg.HTTPTimeout is used unless
// WithHTTPClient overrides it.
func NewRegistry(cfg *config.OAuthConfig, opts ...Option) *Registry {
	all := append([]Option{WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout})}, opts...)

	r := &Registry{providers: make(map[string]Provider)}
	for name, pc := range cfg.Providers() {
		if !pc.Enabled() {
			logging.Debug().Str("provider", name).Msg("OAuth provider disabled: no client credentials")
			continue
		}
		switch name {
		case models.ProviderGitHub:
			r.Register(NewGitHub(pc, all...))
		case models.ProviderSlack:
			r.Register(NewSlack(pc, all...))
		case models.ProviderDiscord:
			r.Register(NewDiscord(pc, all...))
		}
	}
	logging.Info().Strs("providers", r.Names()).Msg("OAuth providers configured")
	return r
}

// Register adds or replaces a provider.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns the named provider or ErrProviderNotConfigured.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, ErrProviderNotConfigured
	}
	return p, nil
}

// Names lists the configured providers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// grantedScopes reads the scope list from the token response, falling back
// to what was requested. GitHub and Slack separate with commas, Discord with
// spaces.
func grantedScopes(tok *oauth2.Token, requested []string) []string {
	raw, _ := tok.Extra("scope").(string)
	if raw == "" {
		return requested
	}
	return strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' })
}
