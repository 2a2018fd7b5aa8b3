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

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/lucyn-dev/lucyn/internal/models"
)

const integrationColumns = `
	id, organization_id, provider, external_id, external_name,
	access_token, refresh_token, token_expires_at, scopes, status,
	connected_by, metadata, created_at, updated_at
`

// UpsertIntegration stores the organization's connection to a provider,
// replacing credentials of an earlier connection. Tokens must already be
// encrypted. On return in carries the stored ID and timestamps.
func (db *DB) UpsertIntegration(ctx context.Context, in *models.Integration) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	scopes, err := json.Marshal(nonNilStrings(in.Scopes))
	if err != nil {
		return fmt.Errorf("failed to marshal scopes: %w", err)
	}
	meta := in.Metadata
	if meta == nil {
		meta = map[string]string{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if in.Status == "" {
		in.Status = models.IntegrationActive
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO integrations (` + integrationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		ON CONFLICT (organization_id, provider) DO UPDATE SET
			external_id = EXCLUDED.external_id,
			external_name = EXCLUDED.external_name,
			access_token = EXCLUDED.access_token,
			refresh_token = EXCLUDED.refresh_token,
			token_expires_at = EXCLUDED.token_expires_at,
			scopes = EXCLUDED.scopes,
			status = EXCLUDED.status,
			connected_by = EXCLUDED.connected_by,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
	`
	_, err = db.conn.ExecContext(ctx, query,
		uuid.NewString(), in.OrganizationID, in.Provider, in.ExternalID, in.ExternalName,
		in.AccessToken, in.RefreshToken, nullTime(in.TokenExpiresAt), string(scopes), in.Status,
		in.ConnectedBy, string(metaJSON), now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert integration: %w", err)
	}

	stored, err := db.GetIntegration(ctx, in.OrganizationID, in.Provider)
	if err != nil {
		return err
	}
	in.ID, in.CreatedAt, in.UpdatedAt = stored.ID, stored.CreatedAt, stored.UpdatedAt
	return nil
}

// GetIntegration returns the organization's integration for provider.
func (db *DB) GetIntegration(ctx context.Context, orgID, provider string) (*models.Integration, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT ` + integrationColumns + ` FROM integrations WHERE organization_id = $1 AND provider = $2`
	in, err := scanIntegration(db.conn.QueryRowContext(ctx, query, orgID, provider))
	if err != nil {
		return nil, fmt.Errorf("failed to get %s integration: %w", provider, notFound(err))
	}
	return in, nil
}

// ListIntegrations returns the organization's integrations ordered by provider.
func (db *DB) ListIntegrations(ctx context.Context, orgID string) ([]models.Integration, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT ` + integrationColumns + ` FROM integrations WHERE organization_id = $1 ORDER BY provider`
	rows, err := db.conn.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query integrations: %w", err)
	}
	defer closeWithLog(rows, "integration rows")

	out := []models.Integration{}
	for rows.Next() {
		in, err := scanIntegration(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan integration: %w", err)
		}
		out = append(out, *in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating integrations: %w", err)
	}
	return out, nil
}

// DeleteIntegration removes the organization's integration for provider.
func (db *DB) DeleteIntegration(ctx context.Context, orgID, provider string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`DELETE FROM integrations WHERE organization_id = $1 AND provider = $2`, orgID, provider)
	if err != nil {
		return fmt.Errorf("failed to delete integration: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// CountActiveIntegrations counts connected providers.
func (db *DB) CountActiveIntegrations(ctx context.Context, orgID string) (int, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM integrations WHERE organization_id = $1 AND status = $2`,
		orgID, models.IntegrationActive).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count integrations: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanIntegration(row rowScanner) (*models.Integration, error) {
	var (
		in        models.Integration
		expiresAt sql.NullTime
		scopes    string
		meta      string
	)
	err := row.Scan(
		&in.ID, &in.OrganizationID, &in.Provider, &in.ExternalID, &in.ExternalName,
		&in.AccessToken, &in.RefreshToken, &expiresAt, &scopes, &in.Status,
		&in.ConnectedBy, &meta, &in.CreatedAt, &in.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	in.TokenExpiresAt = timePtr(expiresAt)
	if err := json.Unmarshal([]byte(scopes), &in.Scopes); err != nil {
		return nil, fmt.Errorf("failed to decode scopes: %w", err)
	}
	if err := json.Unmarshal([]byte(meta), &in.Metadata); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}
	return &in, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
