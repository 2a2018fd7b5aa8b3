// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/lucyn-dev/lucyn/internal/auth"
	"github.com/lucyn-dev/lucyn/internal/authz"
	"github.com/lucyn-dev/lucyn/internal/config"
	"github.com/lucyn-dev/lucyn/internal/database"
	"github.com/lucyn-dev/lucyn/internal/events"
	"github.com/lucyn-dev/lucyn/internal/models"
	"github.com/lucyn-dev/lucyn/internal/oauth"
	"github.com/lucyn-dev/lucyn/internal/ratelimit"
)

const (
	testSecret   = "test_secret_with_at_least_32_characters_for_testing"
	testMemberID = "00000000-0000-4000-8000-0000000000aa"
	testAdminID  = "00000000-0000-4000-8000-0000000000ad"
	appBaseURL   = "http://app.test"
)

// testDBSemaphore serializes DuckDB tests.
var testDBSemaphore = make(chan struct{}, 1)

type fakeProvider struct {
	name        string
	exchangeErr error
	lastCode    string
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) AuthCodeURL(state string) string {
	return "https://provider.test/authorize?state=" + url.QueryEscape(state)
}

func (f *fakeProvider) Exchange(_ context.Context, code string) (*oauth.Token, error) {
	f.lastCode = code
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &oauth.Token{
		AccessToken:  "gho_plain_access",
		RefreshToken: "ghr_plain_refresh",
		TokenType:    "bearer",
		Expiry:       time.Now().Add(8 * time.Hour),
		Scopes:       []string{"repo", "read:org"},
	}, nil
}

func (f *fakeProvider) FetchProfile(_ context.Context, _ *oauth.Token) (*oauth.Profile, error) {
	return &oauth.Profile{ExternalID: "4242", Login: "acme-eng", Name: "Acme Engineering"}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, e *events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type testEnv struct {
	db          *database.DB
	router      http.Handler
	github      *fakeProvider
	publisher   *recordingPublisher
	encryptor   *auth.TokenEncryptor
	ownerToken  string
	adminToken  string
	memberToken string
}

type testOptions struct {
	limiter ratelimit.Limiter
}

func newTestEnv(t *testing.T, opts testOptions) *testEnv {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	db, err := database.Open(&config.DatabaseConfig{Driver: database.DriverDuckDB, Path: ":memory:"})
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	owner, err := db.SeedMockData(ctx)
	if err != nil {
		t.Fatalf("SeedMockData: %v", err)
	}
	member := &models.User{
		ID:             testMemberID,
		OrganizationID: database.MockOrganizationID,
		Email:          "member@acme.dev",
		Name:           "Morgan Lee",
		Role:           models.RoleMember,
	}
	if err := db.UpsertUser(ctx, member); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}
	admin := &models.User{
		ID:             testAdminID,
		OrganizationID: database.MockOrganizationID,
		Email:          "admin@acme.dev",
		Name:           "Avery Chen",
		Role:           models.RoleAdmin,
	}
	if err := db.UpsertUser(ctx, admin); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}

	cfg := config.DefaultConfig()
	cfg.App.BaseURL = appBaseURL
	cfg.Security.SessionJWTSecret = testSecret

	verifier, err := auth.NewSessionVerifier(testSecret)
	if err != nil {
		t.Fatalf("NewSessionVerifier: %v", err)
	}
	key, err := auth.GenerateEncryptionKey()
	if err != nil {
		t.Fatalf("GenerateEncryptionKey: %v", err)
	}
	encryptor, err := auth.NewTokenEncryptor(key)
	if err != nil {
		t.Fatalf("NewTokenEncryptor: %v", err)
	}
	enforcer, err := authz.NewEnforcer()
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}

	github := &fakeProvider{name: models.ProviderGitHub}
	registry := oauth.NewRegistry(&config.OAuthConfig{})
	registry.Register(github)

	publisher := &recordingPublisher{}
	handler := NewHandler(db, registry, encryptor, enforcer, cfg)
	handler.SetEventPublisher(publisher)
	t.Cleanup(handler.Close)

	router := NewRouter(
		handler,
		auth.NewMiddleware(verifier, NewUserResolver(db), cfg.Security.SessionCookieName),
		authz.NewMiddleware(enforcer),
		opts.limiter,
		NewChiMiddleware(&ChiMiddlewareConfig{CORSAllowedOrigins: []string{appBaseURL}}),
	)

	issue := func(u *models.User) string {
		tok, err := verifier.IssueToken(u.ID, u.Email, time.Hour)
		if err != nil {
			t.Fatalf("IssueToken: %v", err)
		}
		return tok
	}

	return &testEnv{
		db:          db,
		router:      router.SetupChi(),
		github:      github,
		publisher:   publisher,
		encryptor:   encryptor,
		ownerToken:  issue(owner),
		adminToken:  issue(admin),
		memberToken: issue(member),
	}
}

func (e *testEnv) do(t *testing.T, method, target, token, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	Code      string          `json:"code"`
	RequestID string          `json:"request_id"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("Failed to decode response %q: %v", w.Body.String(), err)
	}
	if data != nil && env.Success {
		if err := json.Unmarshal(env.Data, data); err != nil {
			t.Fatalf("Failed to decode data: %v", err)
		}
	}
	return env
}

func TestHealthChecks(t *testing.T) {
	env := newTestEnv(t, testOptions{})

	for _, path := range []string{"/api/health/live", "/api/health/ready"} {
		t.Run(path, func(t *testing.T) {
			w := env.do(t, http.MethodGet, path, "", "")
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
			}
			var status HealthStatus
			decodeEnvelope(t, w, &status)
			if status.Status != "ok" {
				t.Errorf("status = %q", status.Status)
			}
			if w.Header().Get("X-Content-Type-Options") != "nosniff" {
				t.Error("missing security headers")
			}
		})
	}
}

func TestAuthenticationRequired(t *testing.T) {
	env := newTestEnv(t, testOptions{})

	for _, path := range []string{"/api/me", "/api/dashboard/overview", "/api/integrations", "/api/integrations/github"} {
		t.Run(path, func(t *testing.T) {
			w := env.do(t, http.MethodGet, path, "", "")
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d, want 401", w.Code)
			}
			resp := decodeEnvelope(t, w, nil)
			if resp.Error != "Unauthorized" {
				t.Errorf("error = %q", resp.Error)
			}
		})
	}

	t.Run("session cookie", func(t *testing.T) {
		w := env.do(t, http.MethodGet, "/api/me", "", "", &http.Cookie{Name: "sb-access-token", Value: env.ownerToken})
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
	})
}

func TestMe(t *testing.T) {
	env := newTestEnv(t, testOptions{})

	tests := []struct {
		name       string
		token      string
		wantRole   string
		canOrgEdit bool
	}{
		{"owner", env.ownerToken, models.RoleOwner, true},
		{"member", env.memberToken, models.RoleMember, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/api/me", tt.token, "")
			if w.Code != http.StatusOK {
				t.Fatalf("status = %d: %s", w.Code, w.Body.String())
			}
			var profile models.Profile
			decodeEnvelope(t, w, &profile)
			if profile.User.Role != tt.wantRole {
				t.Errorf("role = %q, want %q", profile.User.Role, tt.wantRole)
			}
			if profile.Organization.ID != database.MockOrganizationID {
				t.Errorf("organization = %q", profile.Organization.ID)
			}
			canEdit := false
			for _, act := range profile.Permissions[authz.ObjectOrganization] {
				if act == authz.ActionWrite {
					canEdit = true
				}
			}
			if canEdit != tt.canOrgEdit {
				t.Errorf("organization write = %v, want %v", canEdit, tt.canOrgEdit)
			}
		})
	}
}

func TestOverviewAndDevelopers(t *testing.T) {
	env := newTestEnv(t, testOptions{})

	w := env.do(t, http.MethodGet, "/api/dashboard/overview", env.memberToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("overview status = %d: %s", w.Code, w.Body.String())
	}
	var ov models.Overview
	decodeEnvelope(t, w, &ov)
	if ov.ActiveDevelopers != 5 {
		t.Errorf("ActiveDevelopers = %d, want 5", ov.ActiveDevelopers)
	}
	if ov.Commits != 306 {
		t.Errorf("Commits = %d, want 306", ov.Commits)
	}
	if ov.OpenInsights != 4 {
		t.Errorf("OpenInsights = %d, want 4", ov.OpenInsights)
	}

	w = env.do(t, http.MethodGet, "/api/developers", env.memberToken, "")
	var devs []models.Developer
	decodeEnvelope(t, w, &devs)
	if len(devs) != 6 {
		t.Fatalf("developers = %d, want 6", len(devs))
	}
	for _, d := range devs {
		if d.BurnoutRisk != models.BurnoutRiskLevel(d.BurnoutScore) {
			t.Errorf("%s: risk %q for score %.0f", d.Name, d.BurnoutRisk, d.BurnoutScore)
		}
	}

	w = env.do(t, http.MethodGet, "/api/developers/"+devs[0].ID, env.memberToken, "")
	var dev models.Developer
	decodeEnvelope(t, w, &dev)
	if w.Code != http.StatusOK || dev.ID != devs[0].ID {
		t.Errorf("get developer: status %d id %q", w.Code, dev.ID)
	}

	w = env.do(t, http.MethodGet, "/api/developers/does-not-exist", env.memberToken, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown developer status = %d, want 404", w.Code)
	}
}

func TestOverviewCache(t *testing.T) {
	env := newTestEnv(t, testOptions{})
	ctx := context.Background()

	openInsights := func() int {
		t.Helper()
		w := env.do(t, http.MethodGet, "/api/dashboard/overview", env.ownerToken, "")
		if w.Code != http.StatusOK {
			t.Fatalf("overview status = %d: %s", w.Code, w.Body.String())
		}
		var ov models.Overview
		decodeEnvelope(t, w, &ov)
		return ov.OpenInsights
	}

	if got := openInsights(); got != 4 {
		t.Fatalf("OpenInsights = %d, want 4", got)
	}

	insights, err := env.db.ListInsights(ctx, database.MockOrganizationID, models.InsightFilter{Status: models.InsightOpen})
	if err != nil || len(insights) < 2 {
		t.Fatalf("ListInsights: %d, %v", len(insights), err)
	}

	// A write behind the API's back is not visible until the entry expires.
	if _, err := env.db.UpdateInsightStatus(ctx, database.MockOrganizationID, insights[0].ID, models.InsightDismissed); err != nil {
		t.Fatalf("UpdateInsightStatus: %v", err)
	}
	if got := openInsights(); got != 4 {
		t.Errorf("cached OpenInsights = %d, want 4", got)
	}

	// A write through the API invalidates the organization's entry.
	w := env.do(t, http.MethodPatch, "/api/insights/"+insights[1].ID, env.ownerToken, `{"status":"dismissed"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("patch status = %d: %s", w.Code, w.Body.String())
	}
	if got := openInsights(); got != 2 {
		t.Errorf("OpenInsights after patch = %d, want 2", got)
	}
}

// overviewHookStore runs afterOverview once GetOverview has read its
// snapshot, so a test can slip a write in before the handler caches it.
type overviewHookStore struct {
	Store
	afterOverview func()
}

func (s *overviewHookStore) GetOverview(ctx context.Context, orgID string) (*models.Overview, error) {
	o, err := s.Store.GetOverview(ctx, orgID)
	if s.afterOverview != nil {
		s.afterOverview()
		s.afterOverview = nil
	}
	return o, err
}

func TestOverviewCache_WriteDuringLoad(t *testing.T) {
	env := newTestEnv(t, testOptions{})
	ctx := context.Background()

	insights, err := env.db.ListInsights(ctx, database.MockOrganizationID, models.InsightFilter{Status: models.InsightOpen})
	if err != nil || len(insights) == 0 {
		t.Fatalf("ListInsights: %d, %v", len(insights), err)
	}

	store := &overviewHookStore{Store: env.db}
	h := NewHandler(store, nil, nil, nil, config.DefaultConfig())
	t.Cleanup(h.Close)

	// The same steps UpdateInsight takes, landing between the query and
	// the cache fill.
	store.afterOverview = func() {
		if _, err := env.db.UpdateInsightStatus(ctx, database.MockOrganizationID, insights[0].ID, models.InsightDismissed); err != nil {
			t.Errorf("UpdateInsightStatus: %v", err)
		}
		h.invalidateOverview(database.MockOrganizationID)
	}

	openInsights := func() int {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/api/dashboard/overview", nil)
		req = req.WithContext(auth.ContextWithSubject(req.Context(), &auth.Subject{
			UserID:         testMemberID,
			OrganizationID: database.MockOrganizationID,
			Role:           models.RoleMember,
		}))
		w := httptest.NewRecorder()
		h.Overview(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("overview status = %d: %s", w.Code, w.Body.String())
		}
		var ov models.Overview
		decodeEnvelope(t, w, &ov)
		return ov.OpenInsights
	}

	if got := openInsights(); got != 4 {
		t.Fatalf("first OpenInsights = %d, want the pre-write snapshot 4", got)
	}
	if got := openInsights(); got != 3 {
		t.Errorf("second OpenInsights = %d, want 3: the pre-write snapshot was cached", got)
	}
}

func TestInsights(t *testing.T) {
	env := newTestEnv(t, testOptions{})

	listTests := []struct {
		name       string
		query      string
		wantStatus int
		wantCount  int
	}{
		{"all", "", http.StatusOK, 5},
		{"open", "?status=open", http.StatusOK, 4},
		{"critical", "?severity=critical", http.StatusOK, 1},
		{"limit", "?limit=2", http.StatusOK, 2},
		{"bad status", "?status=archived", http.StatusBadRequest, 0},
		{"bad severity", "?severity=urgent", http.StatusBadRequest, 0},
		{"bad limit", "?limit=many", http.StatusBadRequest, 0},
		{"limit too large", "?limit=1000", http.StatusBadRequest, 0},
	}
	for _, tt := range listTests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/api/insights"+tt.query, env.memberToken, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			var insights []models.Insight
			decodeEnvelope(t, w, &insights)
			if tt.wantStatus == http.StatusOK && len(insights) != tt.wantCount {
				t.Errorf("count = %d, want %d", len(insights), tt.wantCount)
			}
		})
	}

	insights, err := env.db.ListInsights(context.Background(), database.MockOrganizationID, models.InsightFilter{Status: models.InsightOpen})
	if err != nil || len(insights) == 0 {
		t.Fatalf("ListInsights: %v", err)
	}
	id := insights[0].ID

	patchTests := []struct {
		name       string
		id         string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"dismiss", id, `{"status":"dismissed"}`, http.StatusOK, ""},
		{"invalid status", id, `{"status":"archived"}`, http.StatusBadRequest, ErrCodeValidationFailed},
		{"missing status", id, `{}`, http.StatusBadRequest, ErrCodeValidationFailed},
		{"malformed", id, `{"status":`, http.StatusBadRequest, ErrCodeBadRequest},
		{"unknown insight", "does-not-exist", `{"status":"read"}`, http.StatusNotFound, ErrCodeNotFound},
	}
	for _, tt := range patchTests {
		t.Run("patch "+tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPatch, "/api/insights/"+tt.id, env.memberToken, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			var got models.Insight
			resp := decodeEnvelope(t, w, &got)
			if tt.wantCode != "" && resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
			if tt.wantStatus == http.StatusOK && got.Status != models.InsightDismissed {
				t.Errorf("status = %q, want dismissed", got.Status)
			}
		})
	}
}

func TestRepositories(t *testing.T) {
	env := newTestEnv(t, testOptions{})

	w := env.do(t, http.MethodGet, "/api/repositories", env.memberToken, "")
	var repos []models.Repository
	decodeEnvelope(t, w, &repos)
	if len(repos) != 4 {
		t.Fatalf("repositories = %d, want 4", len(repos))
	}
	target := repos[0]

	w = env.do(t, http.MethodPatch, "/api/repositories/"+target.ID, env.memberToken, `{"tracked":false}`)
	if w.Code != http.StatusForbidden {
		t.Fatalf("member patch status = %d, want 403", w.Code)
	}

	body := `{"tracked":false}`
	if !target.Tracked {
		body = `{"tracked":true}`
	}
	w = env.do(t, http.MethodPatch, "/api/repositories/"+target.ID, env.ownerToken, body)
	if w.Code != http.StatusOK {
		t.Fatalf("owner patch status = %d: %s", w.Code, w.Body.String())
	}
	var updated models.Repository
	decodeEnvelope(t, w, &updated)
	if updated.Tracked == target.Tracked {
		t.Errorf("tracked unchanged: %v", updated.Tracked)
	}

	w = env.do(t, http.MethodPatch, "/api/repositories/"+target.ID, env.ownerToken, `{}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing tracked status = %d, want 400", w.Code)
	}
}

func TestUpdateOrganization(t *testing.T) {
	env := newTestEnv(t, testOptions{})

	tests := []struct {
		name       string
		token      string
		body       string
		wantStatus int
	}{
		{"member forbidden", env.memberToken, `{"name":"Renamed"}`, http.StatusForbidden},
		{"blank name", env.ownerToken, `{"name":"   "}`, http.StatusBadRequest},
		{"missing name", env.ownerToken, `{}`, http.StatusBadRequest},
		{"owner renames", env.ownerToken, `{"name":"  Acme Platform  "}`, http.StatusOK},
		{"admin renames", env.adminToken, `{"name":"Acme Platform"}`, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPatch, "/api/organization", tt.token, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if tt.wantStatus == http.StatusForbidden {
				if resp := decodeEnvelope(t, w, nil); resp.Error != "Forbidden" {
					t.Errorf("error = %q, want Forbidden", resp.Error)
				}
			}
			if tt.wantStatus == http.StatusOK {
				var org models.Organization
				decodeEnvelope(t, w, &org)
				if org.Name != "Acme Platform" {
					t.Errorf("name = %q", org.Name)
				}
			}
		})
	}
}

func TestIntegrationFlow(t *testing.T) {
	env := newTestEnv(t, testOptions{})

	// Start: state cookie plus redirect to the provider.
	w := env.do(t, http.MethodGet, "/api/integrations/github", env.ownerToken, "")
	if w.Code != http.StatusFound {
		t.Fatalf("start status = %d, want 302: %s", w.Code, w.Body.String())
	}
	loc, err := url.Parse(w.Header().Get("Location"))
	if err != nil || loc.Host != "provider.test" {
		t.Fatalf("Location = %q", w.Header().Get("Location"))
	}
	state := loc.Query().Get("state")
	var stateCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.StateCookieName("github") {
			stateCookie = c
		}
	}
	if stateCookie == nil || stateCookie.Value != state || !stateCookie.HttpOnly {
		t.Fatalf("state cookie = %+v, state %q", stateCookie, state)
	}

	// Callback: exchange, persist, redirect.
	w = env.do(t, http.MethodGet, "/api/integrations/github/callback?code=abc123&state="+url.QueryEscape(state),
		env.ownerToken, "", &http.Cookie{Name: stateCookie.Name, Value: stateCookie.Value})
	if w.Code != http.StatusFound {
		t.Fatalf("callback status = %d: %s", w.Code, w.Body.String())
	}
	if got, want := w.Header().Get("Location"), appBaseURL+"/settings/integrations?success=github_connected"; got != want {
		t.Errorf("Location = %q, want %q", got, want)
	}
	if env.github.lastCode != "abc123" {
		t.Errorf("exchanged code = %q", env.github.lastCode)
	}
	assertStateCleared(t, w, "github")

	stored, err := env.db.GetIntegration(context.Background(), database.MockOrganizationID, "github")
	if err != nil {
		t.Fatalf("GetIntegration: %v", err)
	}
	if stored.AccessToken == "gho_plain_access" {
		t.Error("access token stored in plaintext")
	}
	plain, err := env.encryptor.DecryptTokens(auth.IntegrationTokens{AccessToken: stored.AccessToken, RefreshToken: stored.RefreshToken})
	if err != nil || plain.AccessToken != "gho_plain_access" || plain.RefreshToken != "ghr_plain_refresh" {
		t.Errorf("DecryptTokens = %+v, %v", plain, err)
	}
	if stored.ExternalID != "4242" || stored.ExternalName != "Acme Engineering" || stored.ConnectedBy != database.MockOwnerID {
		t.Errorf("stored integration = %+v", stored)
	}

	// List never serializes tokens.
	w = env.do(t, http.MethodGet, "/api/integrations", env.memberToken, "")
	if strings.Contains(w.Body.String(), stored.AccessToken) || strings.Contains(w.Body.String(), "gho_plain_access") {
		t.Error("token leaked in list response")
	}
	var list []models.Integration
	decodeEnvelope(t, w, &list)
	if len(list) != 1 || list[0].Provider != "github" {
		t.Fatalf("integrations = %+v", list)
	}

	// Members may not disconnect.
	w = env.do(t, http.MethodDelete, "/api/integrations/github", env.memberToken, "")
	if w.Code != http.StatusForbidden {
		t.Errorf("member delete status = %d, want 403", w.Code)
	}

	w = env.do(t, http.MethodDelete, "/api/integrations/github", env.ownerToken, "")
	if w.Code != http.StatusOK {
		t.Fatalf("delete status = %d: %s", w.Code, w.Body.String())
	}
	w = env.do(t, http.MethodDelete, "/api/integrations/github", env.ownerToken, "")
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}

	got := env.publisher.types()
	want := []string{events.TopicIntegrationConnected, events.TopicIntegrationDisconnected}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("published = %v, want %v", got, want)
	}
}

func TestIntegrationCallbackFailures(t *testing.T) {
	env := newTestEnv(t, testOptions{})
	cookie := &http.Cookie{Name: auth.StateCookieName("github"), Value: "expected-state"}

	tests := []struct {
		name        string
		query       string
		cookies     []*http.Cookie
		exchangeErr error
		wantQuery   string
	}{
		{"provider denied", "?error=access_denied&state=expected-state", []*http.Cookie{cookie}, nil, "error=github_denied"},
		{"missing cookie", "?code=abc&state=expected-state", nil, nil, "error=invalid_state"},
		{"state mismatch", "?code=abc&state=forged", []*http.Cookie{cookie}, nil, "error=invalid_state"},
		{"missing code", "?state=expected-state", []*http.Cookie{cookie}, nil, "error=missing_code"},
		{"exchange fails", "?code=abc&state=expected-state", []*http.Cookie{cookie}, errors.New("bad_verification_code"), "error=github_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env.github.exchangeErr = tt.exchangeErr
			w := env.do(t, http.MethodGet, "/api/integrations/github/callback"+tt.query, env.ownerToken, "", tt.cookies...)
			if w.Code != http.StatusFound {
				t.Fatalf("status = %d, want 302", w.Code)
			}
			if got, want := w.Header().Get("Location"), appBaseURL+"/settings/integrations?"+tt.wantQuery; got != want {
				t.Errorf("Location = %q, want %q", got, want)
			}
			assertStateCleared(t, w, "github")
		})
	}
	env.github.exchangeErr = nil

	if _, err := env.db.GetIntegration(context.Background(), database.MockOrganizationID, "github"); !errors.Is(err, database.ErrNotFound) {
		t.Errorf("failed callbacks stored an integration: %v", err)
	}
	if n := len(env.publisher.types()); n != 0 {
		t.Errorf("published %d events on failure", n)
	}
}

func TestStartIntegration_Errors(t *testing.T) {
	env := newTestEnv(t, testOptions{})

	tests := []struct {
		name       string
		path       string
		token      string
		wantStatus int
	}{
		{"unknown provider", "/api/integrations/gitlab", env.ownerToken, http.StatusNotFound},
		{"unconfigured provider", "/api/integrations/slack", env.ownerToken, http.StatusServiceUnavailable},
		{"member", "/api/integrations/github", env.memberToken, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, tt.path, tt.token, "")
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			if resp := decodeEnvelope(t, w, nil); resp.Success || resp.Error == "" {
				t.Errorf("body = %s", w.Body.String())
			}
		})
	}
}

func TestAPIRateLimit(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(2, time.Minute)
	t.Cleanup(limiter.Stop)
	env := newTestEnv(t, testOptions{limiter: limiter})

	for i := 0; i < 2; i++ {
		w := env.do(t, http.MethodGet, "/api/me", env.ownerToken, "")
		if w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, w.Code)
		}
		if w.Header().Get(ratelimit.HeaderLimit) != "2" {
			t.Errorf("X-RateLimit-Limit = %q", w.Header().Get(ratelimit.HeaderLimit))
		}
	}

	w := env.do(t, http.MethodGet, "/api/me", env.ownerToken, "")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After")
	}

	// Budgets are per user.
	if w := env.do(t, http.MethodGet, "/api/me", env.memberToken, ""); w.Code != http.StatusOK {
		t.Errorf("member status = %d, want 200", w.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t, testOptions{})

	w := env.do(t, http.MethodGet, "/api/nope", env.ownerToken, "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if resp := decodeEnvelope(t, w, nil); resp.Code != ErrCodeNotFound {
		t.Errorf("code = %q", resp.Code)
	}
}

func assertStateCleared(t *testing.T, w *httptest.ResponseRecorder, provider string) {
	t.Helper()
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.StateCookieName(provider) && c.MaxAge < 0 {
			return
		}
	}
	t.Errorf("state cookie for %s not cleared", provider)
}

func TestUserResolver(t *testing.T) {
	env := newTestEnv(t, testOptions{})
	resolver := NewUserResolver(env.db)

	u, err := resolver.ResolveUser(context.Background(), database.MockOwnerID)
	if err != nil || u.Role != models.RoleOwner {
		t.Fatalf("ResolveUser(owner) = %+v, %v", u, err)
	}

	if _, err := resolver.ResolveUser(context.Background(), "no-such-user"); !errors.Is(err, auth.ErrUnknownUser) {
		t.Errorf("ResolveUser(unknown) error = %v, want ErrUnknownUser", err)
	}
}
