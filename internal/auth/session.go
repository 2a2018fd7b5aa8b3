// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionAudience is the audience the identity provider stamps on user
// access tokens.
const SessionAudience = "authenticated"

// SessionClaims are the claims of an identity-provider access token.
type SessionClaims struct {
	Email        string                 `json:"email"`
	Role         string                 `json:"role"`
	AppMetadata  map[string]interface{} `json:"app_metadata,omitempty"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// SessionVerifier validates session access tokens.
type SessionVerifier struct {
	secret []byte
	leeway time.Duration
}

// NewSessionVerifier creates a verifier for HS256 tokens signed with secret.
//
// The secret is the identity provider's JWT secret. Tokens must carry a
// subject, an expiry and the "authenticated" audience; any other signing
// algorithm is rejected.
func NewSessionVerifier(secret string) (*SessionVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("session secret is required")
	}
	return &SessionVerifier{
		secret: []byte(secret),
		leeway: 30 * time.Second,
	}, nil
}

// Verify parses and validates tokenString.
// All failures wrap ErrInvalidToken.
func (v *SessionVerifier) Verify(tokenString string) (*SessionClaims, error) {
	if tokenString == "" {
		return nil, ErrMissingToken
	}

	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(SessionAudience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token expired", ErrInvalidToken)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// IssueToken signs a session token for userID. The server never issues
// sessions to browsers; this exists for development seeding and tests.
func (v *SessionVerifier) IssueToken(userID, email string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		Email: email,
		Role:  SessionAudience,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Audience:  jwt.ClaimStrings{SessionAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
