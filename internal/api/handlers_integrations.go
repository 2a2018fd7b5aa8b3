// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/lucyn-dev/lucyn/internal/auth"
	"github.com/lucyn-dev/lucyn/internal/database"
	"github.com/lucyn-dev/lucyn/internal/events"
	"github.com/lucyn-dev/lucyn/internal/logging"
	"github.com/lucyn-dev/lucyn/internal/metrics"
	"github.com/lucyn-dev/lucyn/internal/models"
	"github.com/lucyn-dev/lucyn/internal/oauth"
	"github.com/lucyn-dev/lucyn/internal/validation"
)

// OAuth callback outcomes, used as metric labels.
const (
	outcomeConnected    = "connected"
	outcomeDenied       = "denied"
	outcomeInvalidState = "invalid_state"
	outcomeMissingCode  = "missing_code"
	outcomeFailed       = "failed"
)

// ListIntegrations returns the caller's organization integrations.
func (h *Handler) ListIntegrations(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}
	rw := NewResponseWriter(w, r)

	list, err := h.store.ListIntegrations(r.Context(), s.OrganizationID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if list == nil {
		list = []models.Integration{}
	}
	rw.Success(list)
}

// StartIntegration begins the OAuth flow: it stores a fresh state in a
// cookie and redirects to the provider's consent page.
func (h *Handler) StartIntegration(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	name := chi.URLParam(r, "provider")
	if !validation.IsProvider(name) {
		rw.NotFound("Unknown provider")
		return
	}

	provider, err := h.providers.Get(name)
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("provider", name).Msg("OAuth start for unconfigured provider")
		rw.ServiceUnavailable(fmt.Sprintf("%s integration is not configured", name))
		return
	}

	state, err := auth.NewState()
	if err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to generate OAuth state")
		rw.InternalError("Internal server error")
		return
	}

	auth.SetStateCookie(w, r, name, state, h.config.Security.CookieSecure)
	http.Redirect(w, r, provider.AuthCodeURL(state), http.StatusFound)
}

// IntegrationCallback completes the OAuth flow. Every outcome redirects to
// the dashboard's integrations page.
func (h *Handler) IntegrationCallback(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "provider")
	if !validation.IsProvider(name) {
		NewResponseWriter(w, r).NotFound("Unknown provider")
		return
	}
	s, ok := subject(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	log := logging.Ctx(ctx).With().Str("provider", name).Logger()
	query := r.URL.Query()

	if providerErr := query.Get("error"); providerErr != "" {
		log.Info().
			Str("oauth_error", providerErr).
			Str("description", query.Get("error_description")).
			Msg("Authorization denied at provider")
		h.finishCallback(w, r, name, outcomeDenied, "error", name+"_denied")
		return
	}

	if err := auth.VerifyState(r, name); err != nil {
		log.Warn().Err(err).Msg("OAuth state verification failed")
		h.finishCallback(w, r, name, outcomeInvalidState, "error", "invalid_state")
		return
	}

	code := query.Get("code")
	if code == "" {
		log.Warn().Msg("OAuth callback without code")
		h.finishCallback(w, r, name, outcomeMissingCode, "error", "missing_code")
		return
	}

	integration, err := h.connect(ctx, name, code, s)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect integration")
		h.finishCallback(w, r, name, outcomeFailed, "error", name+"_failed")
		return
	}

	log.Info().
		Str("integration_id", integration.ID).
		Str("external_id", integration.ExternalID).
		Msg("Integration connected")
	h.finishCallback(w, r, name, outcomeConnected, "success", name+"_connected")
}

// connect exchanges code, reads the connected account and stores the
// integration with encrypted tokens.
func (h *Handler) connect(ctx context.Context, name, code string, s *auth.Subject) (*models.Integration, error) {
	provider, err := h.providers.Get(name)
	if err != nil {
		return nil, err
	}

	token, err := provider.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	profile, err := provider.FetchProfile(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}

	sealed, err := h.encryptor.EncryptTokens(auth.IntegrationTokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
	})
	if err != nil {
		return nil, fmt.Errorf("encrypt tokens: %w", err)
	}

	integration := &models.Integration{
		OrganizationID: s.OrganizationID,
		Provider:       name,
		ExternalID:     profile.ExternalID,
		ExternalName:   displayName(profile),
		AccessToken:    sealed.AccessToken,
		RefreshToken:   sealed.RefreshToken,
		Scopes:         token.Scopes,
		Status:         models.IntegrationActive,
		ConnectedBy:    s.UserID,
		Metadata:       mergeMetadata(token.Metadata, profile.Metadata),
	}
	if !token.Expiry.IsZero() {
		expiry := token.Expiry.UTC()
		integration.TokenExpiresAt = &expiry
	}

	if err := h.store.UpsertIntegration(ctx, integration); err != nil {
		return nil, err
	}
	h.invalidateOverview(s.OrganizationID)

	h.publish(ctx, events.NewEvent(events.TopicIntegrationConnected, s.OrganizationID, s.UserID, name, map[string]string{
		"integration_id": integration.ID,
		"external_id":    integration.ExternalID,
		"external_name":  integration.ExternalName,
	}))
	return integration, nil
}

// DeleteIntegration disconnects a provider from the caller's organization.
func (h *Handler) DeleteIntegration(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)
	name := chi.URLParam(r, "provider")
	if !validation.IsProvider(name) {
		rw.NotFound("Unknown provider")
		return
	}
	s, ok := subject(w, r)
	if !ok {
		return
	}

	ctx := r.Context()
	if err := h.store.DeleteIntegration(ctx, s.OrganizationID, name); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			rw.NotFound(fmt.Sprintf("%s is not connected", name))
			return
		}
		rw.DatabaseError(err)
		return
	}

	h.invalidateOverview(s.OrganizationID)
	logging.Ctx(ctx).Info().Str("provider", name).Msg("Integration disconnected")
	h.publish(ctx, events.NewEvent(events.TopicIntegrationDisconnected, s.OrganizationID, s.UserID, name, nil))

	rw.Success(map[string]interface{}{
		"provider":     name,
		"disconnected": true,
	})
}

// publish sends e when a publisher is configured. Failures are logged; the
// request already succeeded.
func (h *Handler) publish(ctx context.Context, e *events.Event) {
	if h.publisher == nil {
		return
	}
	if err := h.publisher.Publish(ctx, e); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("topic", e.Type).Msg("Failed to publish event")
	}
}

// finishCallback clears the single-use state cookie and redirects to the
// integrations page.
func (h *Handler) finishCallback(w http.ResponseWriter, r *http.Request, provider, outcome, key, value string) {
	auth.ClearStateCookie(w, r, provider, h.config.Security.CookieSecure)
	metrics.RecordOAuthExchange(provider, outcome)
	http.Redirect(w, r, h.integrationsURL(key, value), http.StatusFound)
}

// integrationsURL builds the dashboard redirect target with one query
// parameter.
func (h *Handler) integrationsURL(key, value string) string {
	target := h.config.App.IntegrationsURL()
	u, err := url.Parse(target)
	if err != nil {
		return target + "?" + url.Values{key: {value}}.Encode()
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

func displayName(p *oauth.Profile) string {
	if p.Name != "" {
		return p.Name
	}
	return p.Login
}

func mergeMetadata(maps ...map[string]string) map[string]string {
	out := make(map[string]string)
	for _, m := range maps {
		for k, v := range m {
			if v != "" {
				out[k] = v
			}
		}
	}
	return out
}
