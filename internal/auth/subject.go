// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package auth

import (
	"context"

	"github.com/lucyn-dev/lucyn/internal/models"
)

type contextKey string

const subjectContextKey contextKey = "auth_subject"

// Subject is the authenticated caller of a request.
type Subject struct {
	UserID         string
	Email          string
	OrganizationID string
	Role           string
}

// SubjectFromUser builds a Subject from a stored user.
func SubjectFromUser(u *models.User) *Subject {
	return &Subject{
		UserID:         u.ID,
		Email:          u.Email,
		OrganizationID: u.OrganizationID,
		Role:           u.Role,
	}
}

// HasRole reports whether the subject holds role.
func (s *Subject) HasRole(role string) bool {
	return s != nil && s.Role == role
}

// ContextWithSubject returns a copy of ctx carrying s.
func ContextWithSubject(ctx context.Context, s *Subject) context.Context {
	return context.WithValue(ctx, subjectContextKey, s)
}

// SubjectFromContext returns the subject stored by Middleware.Authenticate,
// or nil.
func SubjectFromContext(ctx context.Context) *Subject {
	s, _ := ctx.Value(subjectContextKey).(*Subject)
	return s
}
