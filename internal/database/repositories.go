// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lucyn-dev/lucyn/internal/models"
)

const repositoryColumns = `
	id, organization_id, external_id, name, full_name,
	default_branch, private, tracked, last_synced_at, created_at
`

// UpsertRepository inserts repo or refreshes its metadata. Tracking
// preferences of an existing row are kept.
func (db *DB) UpsertRepository(ctx context.Context, repo *models.Repository) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if repo.ID == "" {
		repo.ID = uuid.NewString()
	}
	if repo.DefaultBranch == "" {
		repo.DefaultBranch = "main"
	}
	if repo.CreatedAt.IsZero() {
		repo.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO repositories (` + repositoryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (organization_id, external_id) DO UPDATE SET
			name = EXCLUDED.name,
			full_name = EXCLUDED.full_name,
			default_branch = EXCLUDED.default_branch,
			private = EXCLUDED.private,
			last_synced_at = EXCLUDED.last_synced_at
	`
	_, err := db.conn.ExecContext(ctx, query,
		repo.ID, repo.OrganizationID, repo.ExternalID, repo.Name, repo.FullName,
		repo.DefaultBranch, repo.Private, repo.Tracked, nullTime(repo.LastSyncedAt), repo.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert repository: %w", err)
	}
	return nil
}

// ListRepositories returns the organization's repositories by full name.
func (db *DB) ListRepositories(ctx context.Context, orgID string) ([]models.Repository, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT ` + repositoryColumns + ` FROM repositories WHERE organization_id = $1 ORDER BY full_name`
	rows, err := db.conn.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query repositories: %w", err)
	}
	defer closeWithLog(rows, "repository rows")

	out := []models.Repository{}
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan repository: %w", err)
		}
		out = append(out, *repo)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating repositories: %w", err)
	}
	return out, nil
}

// SetRepositoryTracked toggles analysis of a repository.
func (db *DB) SetRepositoryTracked(ctx context.Context, orgID, id string, tracked bool) (*models.Repository, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE repositories SET tracked = $1 WHERE organization_id = $2 AND id = $3`, tracked, orgID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update repository: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrNotFound
	}

	query := `SELECT ` + repositoryColumns + ` FROM repositories WHERE organization_id = $1 AND id = $2`
	repo, err := scanRepository(db.conn.QueryRowContext(ctx, query, orgID, id))
	if err != nil {
		return nil, fmt.Errorf("failed to reload repository: %w", notFound(err))
	}
	return repo, nil
}

func scanRepository(row rowScanner) (*models.Repository, error) {
	var (
		repo   models.Repository
		synced sql.NullTime
	)
	err := row.Scan(
		&repo.ID, &repo.OrganizationID, &repo.ExternalID, &repo.Name, &repo.FullName,
		&repo.DefaultBranch, &repo.Private, &repo.Tracked, &synced, &repo.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	repo.LastSyncedAt = timePtr(synced)
	return &repo, nil
}
