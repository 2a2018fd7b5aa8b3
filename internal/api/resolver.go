// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package api

import (
	"context"
	"errors"
	"fmt"

	"github.com/lucyn-dev/lucyn/internal/auth"
	"github.com/lucyn-dev/lucyn/internal/database"
	"github.com/lucyn-dev/lucyn/internal/models"
)

// UserLookup reads users by ID.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
}

// UserResolver adapts the store to auth.UserResolver.
type UserResolver struct {
	users UserLookup
}

// NewUserResolver creates a resolver over users.
func NewUserResolver(users UserLookup) *UserResolver {
	return &UserResolver{users: users}
}

// ResolveUser returns the account of a verified session subject.
func (u *UserResolver) ResolveUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := u.users.GetUser(ctx, userID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("user %s: %w", userID, auth.ErrUnknownUser)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}
