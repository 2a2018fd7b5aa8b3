// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/lucyn-dev/lucyn/internal/auth"
	"github.com/lucyn-dev/lucyn/internal/authz"
	"github.com/lucyn-dev/lucyn/internal/cache"
	"github.com/lucyn-dev/lucyn/internal/config"
	"github.com/lucyn-dev/lucyn/internal/events"
	"github.com/lucyn-dev/lucyn/internal/models"
	"github.com/lucyn-dev/lucyn/internal/oauth"
	"github.com/lucyn-dev/lucyn/internal/validation"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Store is the persistence the handlers need. *database.DB implements it.
type Store interface {
	Ping(ctx context.Context) error

	GetUser(ctx context.Context, id string) (*models.User, error)
	GetOrganization(ctx context.Context, id string) (*models.Organization, error)
	UpdateOrganizationName(ctx context.Context, id, name string) (*models.Organization, error)

	UpsertIntegration(ctx context.Context, in *models.Integration) error
	ListIntegrations(ctx context.Context, orgID string) ([]models.Integration, error)
	DeleteIntegration(ctx context.Context, orgID, provider string) error

	ListRepositories(ctx context.Context, orgID string) ([]models.Repository, error)
	SetRepositoryTracked(ctx context.Context, orgID, id string, tracked bool) (*models.Repository, error)

	ListDevelopers(ctx context.Context, orgID string) ([]models.Developer, error)
	GetDeveloper(ctx context.Context, orgID, id string) (*models.Developer, error)
	GetOverview(ctx context.Context, orgID string) (*models.Overview, error)

	ListInsights(ctx context.Context, orgID string, f models.InsightFilter) ([]models.Insight, error)
	UpdateInsightStatus(ctx context.Context, orgID, id, status string) (*models.Insight, error)
}

// ProviderLookup resolves configured OAuth providers. *oauth.Registry
// implements it.
type ProviderLookup interface {
	Get(name string) (oauth.Provider, error)
}

// EventPublisher publishes integration lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, e *events.Event) error
}

// Handler holds the dependencies of the API handlers.
//
// Handler methods are split across files:
//   - handlers_integrations.go: OAuth connect flow and integration management
//   - handlers_dashboard.go: overview, developers and insights
//   - handlers_resources.go: profile, organization and repositories
//   - handlers_health.go: liveness and readiness checks
type Handler struct {
	store     Store
	providers ProviderLookup
	encryptor *auth.TokenEncryptor
	enforcer  *authz.Enforcer
	config    *config.Config
	publisher EventPublisher
	overviews *cache.Cache[*models.Overview]
	startTime time.Time
}

// NewHandler creates the API handler. A nil encryptor stores provider tokens
// unencrypted.
//
// Dashboard overviews are cached per organization for server.cache_ttl;
// Close stops the cache sweep.
func NewHandler(store Store, providers ProviderLookup, encryptor *auth.TokenEncryptor, enforcer *authz.Enforcer, cfg *config.Config) *Handler {
	h := &Handler{
		store:     store,
		providers: providers,
		encryptor: encryptor,
		enforcer:  enforcer,
		config:    cfg,
		startTime: time.Now(),
	}
	if cfg.Server.CacheTTL > 0 {
		h.overviews = cache.New[*models.Overview]("dashboard_overview", cfg.Server.CacheTTL)
	}
	return h
}

// Close releases background resources held by the handler.
func (h *Handler) Close() {
	if h.overviews != nil {
		h.overviews.Stop()
	}
}

// invalidateOverview drops the cached overview of orgID after a write that
// changes its aggregates.
func (h *Handler) invalidateOverview(orgID string) {
	if h.overviews != nil {
		h.overviews.Delete(orgID)
	}
}

// SetEventPublisher sets the optional event publisher. nil disables
// publishing.
func (h *Handler) SetEventPublisher(publisher EventPublisher) {
	h.publisher = publisher
}

// subject returns the authenticated caller, answering 401 when the route
// was mounted without authentication.
func subject(w http.ResponseWriter, r *http.Request) (*auth.Subject, bool) {
	s := auth.SubjectFromContext(r.Context())
	if s == nil || s.OrganizationID == "" {
		NewResponseWriter(w, r).Unauthorized()
		return nil, false
	}
	return s, true
}

// decodeBody decodes and validates a JSON request body into dst. It writes
// the error response itself and reports whether the handler may continue.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	rw := NewResponseWriter(w, r)

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			rw.BadRequest("Request body is required")
			return false
		}
		rw.BadRequest("Invalid JSON body")
		return false
	}

	if verr := validation.ValidateStruct(dst); verr != nil {
		rw.ValidationError(verr.Error(), verr.Fields)
		return false
	}
	return true
}
