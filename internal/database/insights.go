// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lucyn-dev/lucyn/internal/models"
)

// DefaultInsightLimit caps listings that do not ask for a limit.
const DefaultInsightLimit = 50

// MaxInsightLimit is the largest accepted listing size.
const MaxInsightLimit = 200

const insightColumns = `
	id, organization_id, developer_id, type, severity, title,
	description, recommendation, status, created_at, read_at
`

// CreateInsight inserts an insight in the open state unless a status is set.
func (db *DB) CreateInsight(ctx context.Context, in *models.Insight) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.Status == "" {
		in.Status = models.InsightOpen
	}
	if in.Severity == "" {
		in.Severity = models.SeverityInfo
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now().UTC()
	}

	var devID sql.NullString
	if in.DeveloperID != nil {
		devID = sql.NullString{String: *in.DeveloperID, Valid: true}
	}

	query := `INSERT INTO insights (` + insightColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := db.conn.ExecContext(ctx, query,
		in.ID, in.OrganizationID, devID, in.Type, in.Severity, in.Title,
		in.Description, in.Recommendation, in.Status, in.CreatedAt, nullTime(in.ReadAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert insight: %w", err)
	}
	return nil
}

// ListInsights returns the organization's insights, newest first.
func (db *DB) ListInsights(ctx context.Context, orgID string, f models.InsightFilter) ([]models.Insight, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	where := []string{"organization_id = $1"}
	args := []interface{}{orgID}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Severity != "" {
		args = append(args, f.Severity)
		where = append(where, fmt.Sprintf("severity = $%d", len(args)))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultInsightLimit
	}
	if limit > MaxInsightLimit {
		limit = MaxInsightLimit
	}
	args = append(args, limit)

	query := fmt.Sprintf(`SELECT %s FROM insights WHERE %s ORDER BY created_at DESC, id LIMIT $%d`,
		insightColumns, strings.Join(where, " AND "), len(args))

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query insights: %w", err)
	}
	defer closeWithLog(rows, "insight rows")

	out := []models.Insight{}
	for rows.Next() {
		in, err := scanInsight(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan insight: %w", err)
		}
		out = append(out, *in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating insights: %w", err)
	}
	return out, nil
}

// GetInsight returns one insight of the organization.
func (db *DB) GetInsight(ctx context.Context, orgID, id string) (*models.Insight, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT ` + insightColumns + ` FROM insights WHERE organization_id = $1 AND id = $2`
	in, err := scanInsight(db.conn.QueryRowContext(ctx, query, orgID, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get insight %s: %w", id, notFound(err))
	}
	return in, nil
}

// UpdateInsightStatus moves an insight to status. Moving to read or
// dismissed stamps read_at once; reopening clears it.
func (db *DB) UpdateInsightStatus(ctx context.Context, orgID, id, status string) (*models.Insight, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	current, err := db.GetInsight(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	readAt := current.ReadAt
	switch status {
	case models.InsightOpen:
		readAt = nil
	default:
		if readAt == nil {
			now := time.Now().UTC()
			readAt = &now
		}
	}

	_, err = db.conn.ExecContext(ctx,
		`UPDATE insights SET status = $1, read_at = $2 WHERE organization_id = $3 AND id = $4`,
		status, nullTime(readAt), orgID, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update insight: %w", err)
	}

	current.Status = status
	current.ReadAt = readAt
	return current, nil
}

func scanInsight(row rowScanner) (*models.Insight, error) {
	var (
		in     models.Insight
		devID  sql.NullString
		readAt sql.NullTime
	)
	err := row.Scan(
		&in.ID, &in.OrganizationID, &devID, &in.Type, &in.Severity, &in.Title,
		&in.Description, &in.Recommendation, &in.Status, &in.CreatedAt, &readAt,
	)
	if err != nil {
		return nil, err
	}
	if devID.Valid {
		in.DeveloperID = &devID.String
	}
	in.ReadAt = timePtr(readAt)
	return &in, nil
}
