// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lucyn-dev/lucyn/internal/models"
)

// CreateOrganization inserts org, assigning an ID when empty.
func (db *DB) CreateOrganization(ctx context.Context, org *models.Organization) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	if org.Plan == "" {
		org.Plan = "free"
	}
	now := time.Now().UTC()
	org.CreatedAt, org.UpdatedAt = now, now

	query := `
		INSERT INTO organizations (id, name, slug, plan, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := db.conn.ExecContext(ctx, query, org.ID, org.Name, org.Slug, org.Plan, now, now); err != nil {
		return fmt.Errorf("failed to insert organization: %w", err)
	}
	return nil
}

// GetOrganization returns the organization with id.
func (db *DB) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT id, name, slug, plan, created_at, updated_at FROM organizations WHERE id = $1`

	var org models.Organization
	err := db.conn.QueryRowContext(ctx, query, id).Scan(
		&org.ID, &org.Name, &org.Slug, &org.Plan, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get organization %s: %w", id, notFound(err))
	}
	return &org, nil
}

// UpdateOrganizationName renames an organization and returns the new row.
func (db *DB) UpdateOrganizationName(ctx context.Context, id, name string) (*models.Organization, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `UPDATE organizations SET name = $1, updated_at = $2 WHERE id = $3`
	res, err := db.conn.ExecContext(ctx, query, name, time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update organization: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}
	return db.GetOrganization(ctx, id)
}
