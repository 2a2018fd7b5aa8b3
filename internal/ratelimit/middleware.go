// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/lucyn-dev/lucyn/internal/auth"
	"github.com/lucyn-dev/lucyn/internal/logging"
	"github.com/lucyn-dev/lucyn/internal/metrics"
)

// Response headers.
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// Middleware applies a Limiter to HTTP requests.
//
// Each request is keyed by ClientKey and checked against the limiter:
//
//  1. Allowed requests get X-RateLimit-Limit, X-RateLimit-Remaining and
//     X-RateLimit-Reset headers and pass through.
//  2. Denied requests get the same headers plus Retry-After and a 429
//     JSON error body.
//  3. When the limiter backend returns an error the request is allowed
//     (fail open) and the failure is logged and counted.
//
// Every decision is recorded in rate_limit_decisions_total under the
// middleware's scope label.
//
// Example usage:
//
//	mw := ratelimit.NewMiddleware(limiter, ratelimit.ScopeAPI)
//	r.Use(mw.Handler)
type Middleware struct {
	limiter Limiter
	scope   string
}

// NewMiddleware creates a middleware. scope labels metrics and logs.
func NewMiddleware(limiter Limiter, scope string) *Middleware {
	return &Middleware{limiter: limiter, scope: scope}
}

// Handler limits requests per authenticated user, or per client IP when no
// subject is in the context. Mount it after authentication for per-user
// limits.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		key := ClientKey(r)

		res, err := m.limiter.Allow(ctx, key)
		if err != nil {
			metrics.RecordRateLimitDecision(m.scope, metrics.RateLimitFailOpen)
			logging.Ctx(ctx).Warn().
				Err(err).
				Str("scope", m.scope).
				Msg("Rate limiter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		setHeaders(w, res)

		if !res.Allowed {
			metrics.RecordRateLimitDecision(m.scope, metrics.RateLimitDenied)
			logging.Ctx(ctx).Debug().
				Str("scope", m.scope).
				Str("key", key).
				Msg("Rate limit exceeded")
			writeLimited(w, r, res)
			return
		}

		metrics.RecordRateLimitDecision(m.scope, metrics.RateLimitAllowed)
		next.ServeHTTP(w, r)
	})
}

// ClientKey identifies the caller: "user:<id>" once authenticated, else
// "ip:<address>". Run chi's RealIP middleware first behind a proxy.
func ClientKey(r *http.Request) string {
	if s := auth.SubjectFromContext(r.Context()); s != nil && s.UserID != "" {
		return "user:" + s.UserID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func setHeaders(w http.ResponseWriter, res Result) {
	h := w.Header()
	h.Set(HeaderLimit, strconv.Itoa(res.Limit))
	h.Set(HeaderRemaining, strconv.Itoa(res.Remaining))
	h.Set(HeaderReset, strconv.FormatInt(res.ResetAt.Unix(), 10))
}

func writeLimited(w http.ResponseWriter, r *http.Request, res Result) {
	retry := int(math.Ceil(res.RetryAfter.Seconds()))
	if retry < 1 {
		retry = 1
	}
	w.Header().Set(HeaderRetryAfter, strconv.Itoa(retry))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	body := map[string]string{
		"error": "Too many requests",
		"code":  "TOO_MANY_REQUESTS",
	}
	if id := logging.RequestIDFromContext(r.Context()); id != "" {
		body["request_id"] = id
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode rate limit response")
	}
}
