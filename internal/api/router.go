// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lucyn-dev/lucyn/internal/auth"
	"github.com/lucyn-dev/lucyn/internal/authz"
	"github.com/lucyn-dev/lucyn/internal/middleware"
	"github.com/lucyn-dev/lucyn/internal/ratelimit"
)

// Router wires the handlers to Chi.
type Router struct {
	handler *Handler
	auth    *auth.Middleware
	authz   *authz.Middleware
	limiter ratelimit.Limiter
	chiMw   *ChiMiddleware
}

// NewRouter creates a router. limiter may be nil to disable the API rate
// limit.
func NewRouter(handler *Handler, authMw *auth.Middleware, authzMw *authz.Middleware, limiter ratelimit.Limiter, chiMw *ChiMiddleware) *Router {
	if chiMw == nil {
		chiMw = NewChiMiddleware(nil)
	}
	return &Router{
		handler: handler,
		auth:    authMw,
		authz:   authzMw,
		limiter: limiter,
		chiMw:   chiMw,
	}
}

// SetupChi builds the route tree.
//
// Middleware order:
//  1. RequestID: request and correlation IDs for logging
//  2. RealIP: client IP from proxy headers for rate limiting
//  3. Recoverer: panics become 500s
//  4. CORS
//  5. PrometheusMetrics: per-route request metrics
//
// Per group, APISecurityHeaders and Authenticate run before the rate limit
// so authenticated callers are limited by user ID.
func (router *Router) SetupChi() http.Handler {
	r := chi.NewRouter()
	h := router.handler

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(router.chiMw.CORS())
	r.Use(middleware.PrometheusMetrics)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusNotFound, ErrCodeNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "Method not allowed")
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(APISecurityHeaders())

		r.Get("/health/live", h.Live)
		r.Get("/health/ready", h.Ready)

		// OAuth connect flow: per-IP limit ahead of authentication.
		r.Group(func(r chi.Router) {
			r.Use(router.chiMw.OAuthRateLimit())
			r.Use(router.auth.Authenticate)
			r.Use(router.authz.Require(authz.ObjectIntegrations, authz.ActionWrite))

			r.Get("/integrations/{provider}", h.StartIntegration)
			r.Get("/integrations/{provider}/callback", h.IntegrationCallback)
		})

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Compress(5))
			r.Use(router.auth.Authenticate)
			if router.limiter != nil {
				r.Use(ratelimit.NewMiddleware(router.limiter, ratelimit.ScopeAPI).Handler)
			}

			r.Get("/me", h.Me)
			r.With(router.authz.Require(authz.ObjectOrganization, authz.ActionWrite)).
				Patch("/organization", h.UpdateOrganization)

			r.With(router.authz.Require(authz.ObjectDashboard, authz.ActionRead)).
				Get("/dashboard/overview", h.Overview)

			r.Route("/developers", func(r chi.Router) {
				r.Use(router.authz.Require(authz.ObjectDashboard, authz.ActionRead))
				r.Get("/", h.ListDevelopers)
				r.Get("/{id}", h.GetDeveloper)
			})

			r.Route("/insights", func(r chi.Router) {
				r.With(router.authz.Require(authz.ObjectInsights, authz.ActionRead)).Get("/", h.ListInsights)
				r.With(router.authz.Require(authz.ObjectInsights, authz.ActionWrite)).Patch("/{id}", h.UpdateInsight)
			})

			r.Route("/repositories", func(r chi.Router) {
				r.With(router.authz.Require(authz.ObjectRepositories, authz.ActionRead)).Get("/", h.ListRepositories)
				r.With(router.authz.Require(authz.ObjectRepositories, authz.ActionWrite)).Patch("/{id}", h.UpdateRepository)
			})

			r.With(router.authz.Require(authz.ObjectIntegrations, authz.ActionRead)).
				Get("/integrations", h.ListIntegrations)
			r.With(router.authz.Require(authz.ObjectIntegrations, authz.ActionDelete)).
				Delete("/integrations/{provider}", h.DeleteIntegration)
		})
	})

	return r
}
