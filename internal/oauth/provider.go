// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"golang.org/x/oauth2"
)

var (
	// ErrProviderNotConfigured is returned for unknown or credential-less
	// providers.
	ErrProviderNotConfigured = errors.New("oauth provider not configured")

	// ErrEmptyCode is returned when Exchange is called without a code.
	ErrEmptyCode = errors.New("authorization code is empty")
)

// Token is the result of a code exchange.
type Token struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
	Scopes       []string
	// Metadata carries provider-specific fields returned with the token
	// (Slack team and bot user).
	Metadata map[string]string
}

// Profile identifies the connected provider account.
type Profile struct {
	ExternalID string
	Login      string
	Name       string
	AvatarURL  string
	Metadata   map[string]string
}

// Provider is one OAuth integration provider.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*Token, error)
	FetchProfile(ctx context.Context, token *Token) (*Profile, error)
}

// APIError is a non-2xx answer from a provider API.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s api: status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Option customizes a provider.
type Option func(*options)

type options struct {
	httpClient *http.Client
	endpoint   *oauth2.Endpoint
	apiBaseURL string
}

// WithHTTPClient sets the client used for token and API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithEndpoint overrides the authorize and token URLs.
func WithEndpoint(e oauth2.Endpoint) Option {
	return func(o *options) { o.endpoint = &e }
}

// WithAPIBaseURL overrides the REST API root used for profile calls.
func WithAPIBaseURL(url string) Option {
	return func(o *options) { o.apiBaseURL = url }
}

func applyOptions(opts []Option) options {
	o := options{httpClient: &http.Client{Timeout: 15 * time.Second}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// base holds what every provider shares.
type base struct {
	name    string
	config  *oauth2.Config
	client  *http.Client
	apiBase string
	breaker *breaker
}

func newBase(name string, cfg *oauth2.Config, defaultAPI string, o options) base {
	if o.endpoint != nil {
		cfg.Endpoint = *o.endpoint
	}
	apiBase := defaultAPI
	if o.apiBaseURL != "" {
		apiBase = o.apiBaseURL
	}
	return base{
		name:    name,
		config:  cfg,
		client:  o.httpClient,
		apiBase: apiBase,
		breaker: newBreaker("oauth-" + name),
	}
}

func (b *base) Name() string { return b.name }

// clientContext makes x/oauth2 use the provider's HTTP client.
func (b *base) clientContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, b.client)
}

// exchange runs the token request through the breaker.
func (b *base) exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, ErrEmptyCode
	}
	tok, err := execute(b.breaker, func() (*oauth2.Token, error) {
		return b.config.Exchange(b.clientContext(ctx), code)
	})
	if err != nil {
		return nil, fmt.Errorf("%s token exchange: %w", b.name, err)
	}
	return tok, nil
}

// getJSON performs an authenticated GET against the provider API.
func (b *base) getJSON(ctx context.Context, path, accessToken string, out interface{}) error {
	_, err := execute(b.breaker, func() (struct{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.apiBase+path, nil)
		if err != nil {
			return struct{}{}, err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "lucyn")

		resp, err := b.client.Do(req)
		if err != nil {
			return struct{}{}, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return struct{}{}, &APIError{Provider: b.name, StatusCode: resp.StatusCode, Body: string(body)}
		}
		return struct{}{}, json.NewDecoder(resp.Body).Decode(out)
	})
	if err != nil {
		return fmt.Errorf("%s GET %s: %w", b.name, path, err)
	}
	return nil
}

// newToken converts an x/oauth2 token.
func newToken(t *oauth2.Token, scopes []string) *Token {
	return &Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
		Scopes:       scopes,
		Metadata:     map[string]string{},
	}
}
