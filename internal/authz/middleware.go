// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package authz

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/lucyn-dev/lucyn/internal/auth"
	"github.com/lucyn-dev/lucyn/internal/logging"
)

// Middleware guards handlers with the enforcer.
type Middleware struct {
	enforcer *Enforcer
}

// NewMiddleware creates authorization middleware.
func NewMiddleware(enforcer *Enforcer) *Middleware {
	return &Middleware{enforcer: enforcer}
}

// Require allows the request only when the authenticated subject's role may
// perform action on object. Requests without a subject get 401, denied ones
// 403.
func (m *Middleware) Require(object, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			subject := auth.SubjectFromContext(r.Context())
			if subject == nil {
				writeError(w, r, http.StatusUnauthorized, "Unauthorized", "UNAUTHORIZED")
				return
			}

			if !m.enforcer.Can(subject.Role, object, action) {
				logging.Ctx(r.Context()).Info().
					Str("role", subject.Role).
					Str("object", object).
					Str("action", action).
					Msg("Authorization denied")
				writeError(w, r, http.StatusForbidden, "Forbidden", "FORBIDDEN")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]string{"error": msg, "code": code}
	if id := logging.RequestIDFromContext(r.Context()); id != "" {
		body["request_id"] = id
	}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Ctx(r.Context()).Error().Err(err).Msg("Failed to encode authorization error")
	}
}
