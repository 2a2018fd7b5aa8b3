// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

/*
Package auth authenticates dashboard requests and protects integration
credentials.

Components:
  - SessionVerifier: validates the HS256 access tokens issued by the
    identity provider (Supabase) and exposes their claims
  - Middleware: resolves the session of each request into a Subject
    (user, organization, role) or answers 401
  - TokenEncryptor: AES-256-GCM encryption of provider access and refresh
    tokens with an HKDF-derived key
  - OAuth state helpers: random state values kept in an httpOnly cookie and
    compared on callback

Usage:

	verifier, err := auth.NewSessionVerifier(cfg.Security.SessionJWTSecret)
	mw := auth.NewMiddleware(verifier, db, cfg.Security.SessionCookieName)
	r.With(mw.Authenticate).Get("/api/me", h.Me)
*/
package auth
