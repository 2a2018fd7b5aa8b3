// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"net/http"
)

// StateCookieMaxAge bounds how long an authorization round trip may take.
const StateCookieMaxAge = 600

// StateCookieName returns the cookie holding the pending state for provider.
func StateCookieName(provider string) string {
	return provider + "_oauth_state"
}

// NewState returns 32 random bytes encoded as unpadded base64url.
func NewState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate oauth state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SetStateCookie stores state in an httpOnly cookie for provider.
// The cookie is Secure when the request arrived over TLS or secure is set.
func SetStateCookie(w http.ResponseWriter, r *http.Request, provider, state string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName(provider),
		Value:    state,
		Path:     "/",
		MaxAge:   StateCookieMaxAge,
		HttpOnly: true,
		Secure:   secure || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearStateCookie expires the state cookie for provider.
func ClearStateCookie(w http.ResponseWriter, r *http.Request, provider string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName(provider),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure || r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// VerifyState compares the state query parameter with the provider's
// state cookie in constant time.
func VerifyState(r *http.Request, provider string) error {
	got := r.URL.Query().Get("state")
	if got == "" {
		return fmt.Errorf("%w: missing state parameter", ErrStateMismatch)
	}
	c, err := r.Cookie(StateCookieName(provider))
	if err != nil || c.Value == "" {
		return fmt.Errorf("%w: missing state cookie", ErrStateMismatch)
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(c.Value)) != 1 {
		return ErrStateMismatch
	}
	return nil
}
