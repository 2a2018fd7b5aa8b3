// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package oauth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/oauth2"

	"github.com/lucyn-dev/lucyn/internal/config"
)

// fakeProvider serves a token endpoint and a profile endpoint.
type fakeProvider struct {
	*httptest.Server
	tokenBody     map[string]interface{}
	profilePath   string
	profileBody   interface{}
	profileStatus int
	lastForm      url.Values
	lastAuth      string
}

func newFakeProvider(t *testing.T, profilePath string) *fakeProvider {
	t.Helper()
	f := &fakeProvider{profilePath: profilePath, profileStatus: http.StatusOK}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			if err := r.ParseForm(); err != nil {
				t.Errorf("parse form: %v", err)
			}
			f.lastForm = r.PostForm
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(f.tokenBody)
		case f.profilePath:
			f.lastAuth = r.Header.Get("Authorization")
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(f.profileStatus)
			_ = json.NewEncoder(w).Encode(f.profileBody)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeProvider) options() []Option {
	return []Option{
		WithEndpoint(oauth2.Endpoint{
			AuthURL:   f.URL + "/authorize",
			TokenURL:  f.URL + "/token",
			AuthStyle: oauth2.AuthStyleInParams,
		}),
		WithAPIBaseURL(f.URL),
		WithHTTPClient(f.Client()),
	}
}

func testProviderConfig(scopes ...string) config.ProviderConfig {
	return config.ProviderConfig{
		ClientID:     "client-123",
		ClientSecret: "secret-456",
		RedirectURI:  "http://localhost:8080/api/integrations/x/callback",
		Scopes:       scopes,
	}
}

func TestAuthCodeURL(t *testing.T) {
	tests := []struct {
		name      string
		provider  Provider
		wantHost  string
		wantPath  string
		wantScope string
	}{
		{
			name:      "github",
			provider:  NewGitHub(testProviderConfig("read:user", "repo")),
			wantHost:  "github.com",
			wantPath:  "/login/oauth/authorize",
			wantScope: "read:user repo",
		},
		{
			name:      "slack comma separated",
			provider:  NewSlack(testProviderConfig("channels:history", "users:read")),
			wantHost:  "slack.com",
			wantPath:  "/oauth/v2/authorize",
			wantScope: "channels:history,users:read",
		},
		{
			name:      "discord",
			provider:  NewDiscord(testProviderConfig("identify", "guilds")),
			wantHost:  "discord.com",
			wantPath:  "/oauth2/authorize",
			wantScope: "identify guilds",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := url.Parse(tt.provider.AuthCodeURL("state-xyz"))
			if err != nil {
				t.Fatal(err)
			}
			if u.Host != tt.wantHost || u.Path != tt.wantPath {
				t.Errorf("url = %s", u)
			}
			q := u.Query()
			checks := map[string]string{
				"client_id":     "client-123",
				"redirect_uri":  "http://localhost:8080/api/integrations/x/callback",
				"state":         "state-xyz",
				"response_type": "code",
				"scope":         tt.wantScope,
			}
			for k, want := range checks {
				if got := q.Get(k); got != want {
					t.Errorf("%s = %q, want %q", k, got, want)
				}
			}
		})
	}
}

func TestGitHub_ExchangeAndProfile(t *testing.T) {
	f := newFakeProvider(t, "/user")
	f.tokenBody = map[string]interface{}{
		"access_token": "gho_abc",
		"token_type":   "bearer",
		"scope":        "repo,read:user",
	}
	f.profileBody = map[string]interface{}{
		"id":         4242,
		"login":      "octocat",
		"name":       "",
		"avatar_url": "https://avatars.example/octocat",
		"html_url":   "https://github.com/octocat",
	}

	p := NewGitHub(testProviderConfig("read:user"), f.options()...)
	ctx := context.Background()

	tok, err := p.Exchange(ctx, "code-1")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if tok.AccessToken != "gho_abc" {
		t.Errorf("AccessToken = %q", tok.AccessToken)
	}
	if strings.Join(tok.Scopes, " ") != "repo read:user" {
		t.Errorf("Scopes = %v", tok.Scopes)
	}
	if f.lastForm.Get("code") != "code-1" || f.lastForm.Get("client_secret") != "secret-456" {
		t.Errorf("token form = %v", f.lastForm)
	}

	profile, err := p.FetchProfile(ctx, tok)
	if err != nil {
		t.Fatalf("FetchProfile() error = %v", err)
	}
	if f.lastAuth != "Bearer gho_abc" {
		t.Errorf("Authorization = %q", f.lastAuth)
	}
	if profile.ExternalID != "4242" || profile.Login != "octocat" || profile.Name != "octocat" {
		t.Errorf("profile = %+v", profile)
	}
}

func TestSlack_ExchangeAndProfile(t *testing.T) {
	f := newFakeProvider(t, "/unused")
	f.tokenBody = map[string]interface{}{
		"ok":           true,
		"access_token": "xoxb-1",
		"token_type":   "bot",
		"scope":        "channels:history,users:read",
		"bot_user_id":  "U0BOT",
		"app_id":       "A01",
		"team":         map[string]interface{}{"id": "T123", "name": "Acme"},
		"authed_user":  map[string]interface{}{"id": "U777"},
	}

	p := NewSlack(testProviderConfig("channels:history"), f.options()...)
	tok, err := p.Exchange(context.Background(), "code-2")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	profile, err := p.FetchProfile(context.Background(), tok)
	if err != nil {
		t.Fatalf("FetchProfile() error = %v", err)
	}
	if profile.ExternalID != "T123" || profile.Name != "Acme" {
		t.Errorf("profile = %+v", profile)
	}
	if profile.Metadata["bot_user_id"] != "U0BOT" || profile.Metadata["authed_user_id"] != "U777" {
		t.Errorf("metadata = %v", profile.Metadata)
	}
}

func TestSlack_ErrorResponse(t *testing.T) {
	f := newFakeProvider(t, "/unused")
	f.tokenBody = map[string]interface{}{"ok": false, "error": "invalid_code"}

	p := NewSlack(testProviderConfig("channels:history"), f.options()...)
	if _, err := p.Exchange(context.Background(), "bad"); err == nil {
		t.Fatal("expected error for ok=false response")
	}
}

func TestSlack_ProfileWithoutTeam(t *testing.T) {
	p := NewSlack(testProviderConfig())
	_, err := p.FetchProfile(context.Background(), &Token{Metadata: map[string]string{}})
	if !errors.Is(err, errSlackNoTeam) {
		t.Errorf("error = %v", err)
	}
}

func TestDiscord_ExchangeAndProfile(t *testing.T) {
	f := newFakeProvider(t, "/users/@me")
	f.tokenBody = map[string]interface{}{
		"access_token":  "disc-1",
		"refresh_token": "disc-r",
		"token_type":    "Bearer",
		"expires_in":    604800,
		"scope":         "identify guilds",
	}
	f.profileBody = map[string]interface{}{"id": "80351110224678912", "username": "nelly", "avatar": "8342729096ea3675442027381ff50dfe"}

	p := NewDiscord(testProviderConfig("identify"), f.options()...)
	tok, err := p.Exchange(context.Background(), "code-3")
	if err != nil {
		t.Fatalf("Exchange() error = %v", err)
	}
	if tok.RefreshToken != "disc-r" || tok.Expiry.Before(time.Now().Add(24*time.Hour)) {
		t.Errorf("token = %+v", tok)
	}
	if len(tok.Scopes) != 2 {
		t.Errorf("Scopes = %v", tok.Scopes)
	}

	profile, err := p.FetchProfile(context.Background(), tok)
	if err != nil {
		t.Fatal(err)
	}
	if profile.Name != "nelly" || !strings.HasSuffix(profile.AvatarURL, "/avatars/80351110224678912/8342729096ea3675442027381ff50dfe.png") {
		t.Errorf("profile = %+v", profile)
	}
}

func TestExchange_EmptyCode(t *testing.T) {
	p := NewGitHub(testProviderConfig())
	if _, err := p.Exchange(context.Background(), ""); !errors.Is(err, ErrEmptyCode) {
		t.Errorf("error = %v", err)
	}
}

func TestBreaker_OpensOnServerErrors(t *testing.T) {
	f := newFakeProvider(t, "/users/@me")
	f.profileStatus = http.StatusBadGateway
	f.profileBody = map[string]string{"message": "upstream"}

	p := NewDiscord(testProviderConfig(), f.options()...)
	tok := &Token{AccessToken: "x"}

	for i := 0; i < 5; i++ {
		_, err := p.FetchProfile(context.Background(), tok)
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
			t.Fatalf("call %d error = %v", i+1, err)
		}
	}

	if _, err := p.FetchProfile(context.Background(), tok); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Errorf("error after trip = %v, want ErrOpenState", err)
	}
	if p.breaker.State() != gobreaker.StateOpen {
		t.Errorf("state = %v", p.breaker.State())
	}
}

func TestBreaker_IgnoresClientErrors(t *testing.T) {
	f := newFakeProvider(t, "/user")
	f.profileStatus = http.StatusUnauthorized
	f.profileBody = map[string]string{"message": "Bad credentials"}

	p := NewGitHub(testProviderConfig(), f.options()...)
	for i := 0; i < 8; i++ {
		if _, err := p.FetchProfile(context.Background(), &Token{AccessToken: "revoked"}); errors.Is(err, gobreaker.ErrOpenState) {
			t.Fatalf("breaker opened on 401 at call %d", i+1)
		}
	}
	if p.breaker.State() != gobreaker.StateClosed {
		t.Errorf("state = %v", p.breaker.State())
	}
}

func TestRegistry(t *testing.T) {
	cfg := &config.OAuthConfig{
		GitHub:      testProviderConfig("repo"),
		Slack:       config.ProviderConfig{ClientID: "only-id"},
		Discord:     testProviderConfig("identify"),
		HTTPTimeout: 5 * time.Second,
	}
	reg := NewRegistry(cfg)

	if got := strings.Join(reg.Names(), ","); got != "discord,github" {
		t.Errorf("Names() = %s", got)
	}
	if p, err := reg.Get("github"); err != nil || p.Name() != "github" {
		t.Errorf("Get(github) = %v, %v", p, err)
	}
	for _, name := range []string{"slack", "gitlab"} {
		if _, err := reg.Get(name); !errors.Is(err, ErrProviderNotConfigured) {
			t.Errorf("Get(%s) error = %v", name, err)
		}
	}
}
