// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/lucyn-dev/lucyn/internal/models"
)

// GetUser returns the user with id (the identity provider subject).
func (db *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT id, organization_id, email, name, avatar_url, role, created_at, updated_at
		FROM users
		WHERE id = $1
	`
	var u models.User
	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&u.ID, &u.OrganizationID, &u.Email, &u.Name, &u.AvatarURL, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", id, notFound(err))
	}
	return &u, nil
}

// UpsertUser inserts u or updates its profile and role.
func (db *DB) UpsertUser(ctx context.Context, u *models.User) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if u.Role == "" {
		u.Role = models.RoleMember
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	query := `
		INSERT INTO users (id, organization_id, email, name, avatar_url, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			organization_id = EXCLUDED.organization_id,
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			avatar_url = EXCLUDED.avatar_url,
			role = EXCLUDED.role,
			updated_at = EXCLUDED.updated_at
	`
	_, err := db.conn.ExecContext(ctx, query,
		u.ID, u.OrganizationID, u.Email, u.Name, u.AvatarURL, u.Role, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}
