// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/lucyn-dev/lucyn/internal/logging"
	"github.com/lucyn-dev/lucyn/internal/metrics"
)

// ScopeOAuth labels decisions of the per-IP OAuth route limiter.
const ScopeOAuth = "oauth"

// ChiMiddlewareConfig configures the Chi middleware factories.
type ChiMiddlewareConfig struct {
	CORSAllowedOrigins []string
	CORSMaxAge         int // seconds

	// OAuthRequestsPerMinute bounds OAuth start and callback requests per
	// client IP. Zero disables the limit.
	OAuthRequestsPerMinute int
}

// ChiMiddleware provides Chi-compatible middleware.
type ChiMiddleware struct {
	config *ChiMiddlewareConfig
	cors   func(http.Handler) http.Handler
}

// NewChiMiddleware creates the middleware factory.
func NewChiMiddleware(config *ChiMiddlewareConfig) *ChiMiddleware {
	if config == nil {
		config = &ChiMiddlewareConfig{}
	}
	maxAge := config.CORSMaxAge
	if maxAge == 0 {
		maxAge = 300
	}

	// Session cookies travel cross-origin from the dashboard, so credentials
	// are allowed and origins must be explicit.
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   config.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           maxAge,
	})

	return &ChiMiddleware{config: config, cors: corsHandler}
}

// CORS returns the go-chi/cors middleware.
func (m *ChiMiddleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// OAuthRateLimit limits OAuth routes per client IP with go-chi/httprate.
func (m *ChiMiddleware) OAuthRateLimit() func(http.Handler) http.Handler {
	if m.config.OAuthRequestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return httprate.Limit(
		m.config.OAuthRequestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RecordRateLimitDecision(ScopeOAuth, metrics.RateLimitDenied)
			logging.Ctx(r.Context()).Warn().Str("path", r.URL.Path).Msg("OAuth rate limit exceeded")
			WriteError(w, r, http.StatusTooManyRequests, ErrCodeTooManyRequests, "Too many requests")
		}),
	)
}

// APISecurityHeaders sets the headers every JSON API response carries.
// HSTS is added when the request arrived over TLS, directly or through a
// terminating proxy.
func APISecurityHeaders() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("X-Content-Type-Options", "nosniff")
			h.Set("X-Frame-Options", "DENY")
			h.Set("Cache-Control", "no-store")
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")

			if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
				h.Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}
