// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package auth

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/lucyn-dev/lucyn/internal/logging"
	"github.com/lucyn-dev/lucyn/internal/models"
)

// UserResolver looks up the Lucyn account of a verified session subject.
// Implementations return an error wrapping ErrUnknownUser when no account
// exists.
type UserResolver interface {
	ResolveUser(ctx context.Context, userID string) (*models.User, error)
}

// Middleware authenticates requests against the session verifier.
type Middleware struct {
	verifier   *SessionVerifier
	users      UserResolver
	cookieName string
}

// NewMiddleware creates the authentication middleware. cookieName is the
// session cookie consulted when no Authorization header is present.
func NewMiddleware(verifier *SessionVerifier, users UserResolver, cookieName string) *Middleware {
	return &Middleware{
		verifier:   verifier,
		users:      users,
		cookieName: cookieName,
	}
}

// Authenticate rejects requests without a valid session with
// 401 {"error":"Unauthorized"}. On success the request context carries
// the caller's Subject.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		claims, err := m.verifier.Verify(m.extractToken(r))
		if err != nil {
			logging.Ctx(ctx).Debug().Err(err).Str("path", r.URL.Path).Msg("Session rejected")
			writeAuthError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}

		user, err := m.users.ResolveUser(ctx, claims.Subject)
		if err != nil {
			if errors.Is(err, ErrUnknownUser) {
				logging.Ctx(ctx).Warn().Str("subject", claims.Subject).Msg("Session for user without account")
				writeAuthError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			logging.Ctx(ctx).Error().Err(err).Msg("Failed to resolve session user")
			writeAuthError(w, http.StatusInternalServerError, "Internal server error")
			return
		}

		subject := SubjectFromUser(user)
		if subject.Email == "" {
			subject.Email = claims.Email
		}
		ctx = ContextWithSubject(ctx, subject)
		ctx = logging.ContextWithUserID(ctx, subject.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractToken reads the bearer token, falling back to the session cookie.
func (m *Middleware) extractToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if m.cookieName == "" {
		return ""
	}
	c, err := r.Cookie(m.cookieName)
	if err != nil {
		return ""
	}
	return cookieToken(c.Value)
}

// cookieToken accepts both a bare token and the JSON array form
// ["<access>","<refresh>",...] some auth helpers write.
func cookieToken(value string) string {
	if unescaped, err := url.QueryUnescape(value); err == nil {
		value = unescaped
	}
	if !strings.HasPrefix(value, "[") {
		return value
	}
	var parts []string
	if err := json.Unmarshal([]byte(value), &parts); err != nil || len(parts) == 0 {
		return ""
	}
	return parts[0]
}

func writeAuthError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:errcheck // response already committed
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
