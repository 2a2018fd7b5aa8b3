// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package database

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/lucyn-dev/lucyn/internal/models"
)

// ActiveWindow is how recently a developer must have been active to count
// as active on the overview.
const ActiveWindow = 14 * 24 * time.Hour

// atRiskScore is the burnout score from which a developer is at risk.
const atRiskScore = 70

const developerColumns = `
	id, organization_id, name, email, avatar_url, github_login,
	commits, prs_opened, prs_merged, reviews_given,
	avg_review_hours, velocity_score, burnout_score, last_active_at
`

// UpsertDeveloper inserts or replaces a developer's metrics.
func (db *DB) UpsertDeveloper(ctx context.Context, d *models.Developer) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if d.ID == "" {
		d.ID = uuid.NewString()
	}

	query := `
		INSERT INTO developers (` + developerColumns + `, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			avatar_url = EXCLUDED.avatar_url,
			github_login = EXCLUDED.github_login,
			commits = EXCLUDED.commits,
			prs_opened = EXCLUDED.prs_opened,
			prs_merged = EXCLUDED.prs_merged,
			reviews_given = EXCLUDED.reviews_given,
			avg_review_hours = EXCLUDED.avg_review_hours,
			velocity_score = EXCLUDED.velocity_score,
			burnout_score = EXCLUDED.burnout_score,
			last_active_at = EXCLUDED.last_active_at
	`
	_, err := db.conn.ExecContext(ctx, query,
		d.ID, d.OrganizationID, d.Name, d.Email, d.AvatarURL, d.GitHubLogin,
		d.Commits, d.PRsOpened, d.PRsMerged, d.ReviewsGiven,
		d.AvgReviewHours, d.VelocityScore, d.BurnoutScore, nullTime(d.LastActiveAt),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert developer: %w", err)
	}
	d.BurnoutRisk = models.BurnoutRiskLevel(d.BurnoutScore)
	return nil
}

// ListDevelopers returns the organization's developers, highest burnout
// score first.
func (db *DB) ListDevelopers(ctx context.Context, orgID string) ([]models.Developer, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT ` + developerColumns + ` FROM developers WHERE organization_id = $1 ORDER BY burnout_score DESC, name`
	rows, err := db.conn.QueryContext(ctx, query, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to query developers: %w", err)
	}
	defer closeWithLog(rows, "developer rows")

	out := []models.Developer{}
	for rows.Next() {
		d, err := scanDeveloper(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan developer: %w", err)
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating developers: %w", err)
	}
	return out, nil
}

// GetDeveloper returns one developer of the organization.
func (db *DB) GetDeveloper(ctx context.Context, orgID, id string) (*models.Developer, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT ` + developerColumns + ` FROM developers WHERE organization_id = $1 AND id = $2`
	d, err := scanDeveloper(db.conn.QueryRowContext(ctx, query, orgID, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get developer %s: %w", id, notFound(err))
	}
	return d, nil
}

// GetOverview aggregates the dashboard summary for an organization.
//
// The team health score weighs the inverse of the mean burnout score (60%)
// against the mean velocity score (40%) and is 0 for a team without
// developers.
func (db *DB) GetOverview(ctx context.Context, orgID string) (*models.Overview, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT
			COUNT(*),
			CAST(COALESCE(SUM(CASE WHEN last_active_at >= $2 THEN 1 ELSE 0 END), 0) AS BIGINT),
			CAST(COALESCE(SUM(CASE WHEN burnout_score >= $3 THEN 1 ELSE 0 END), 0) AS BIGINT),
			CAST(COALESCE(SUM(commits), 0) AS BIGINT),
			CAST(COALESCE(SUM(prs_merged), 0) AS BIGINT),
			COALESCE(AVG(avg_review_hours), 0),
			COALESCE(AVG(velocity_score), 0),
			COALESCE(AVG(burnout_score), 0)
		FROM developers
		WHERE organization_id = $1
	`
	var (
		total      int
		ov         models.Overview
		avgBurnout float64
	)
	err := db.conn.QueryRowContext(ctx, query, orgID, time.Now().UTC().Add(-ActiveWindow), atRiskScore).Scan(
		&total, &ov.ActiveDevelopers, &ov.AtRiskDevelopers, &ov.Commits, &ov.PRsMerged,
		&ov.AvgReviewHours, &ov.AvgVelocityScore, &avgBurnout,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate developers: %w", err)
	}
	if total > 0 {
		ov.TeamHealthScore = round1(0.6*(100-avgBurnout) + 0.4*ov.AvgVelocityScore)
	}
	ov.AvgReviewHours = round1(ov.AvgReviewHours)
	ov.AvgVelocityScore = round1(ov.AvgVelocityScore)

	if err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM insights WHERE organization_id = $1 AND status = $2`,
		orgID, models.InsightOpen).Scan(&ov.OpenInsights); err != nil {
		return nil, fmt.Errorf("failed to count insights: %w", err)
	}

	n, err := db.CountActiveIntegrations(ctx, orgID)
	if err != nil {
		return nil, err
	}
	ov.ConnectedIntegrations = n
	return &ov, nil
}

func scanDeveloper(row rowScanner) (*models.Developer, error) {
	var (
		d      models.Developer
		active sql.NullTime
	)
	err := row.Scan(
		&d.ID, &d.OrganizationID, &d.Name, &d.Email, &d.AvatarURL, &d.GitHubLogin,
		&d.Commits, &d.PRsOpened, &d.PRsMerged, &d.ReviewsGiven,
		&d.AvgReviewHours, &d.VelocityScore, &d.BurnoutScore, &active,
	)
	if err != nil {
		return nil, err
	}
	d.LastActiveAt = timePtr(active)
	d.BurnoutRisk = models.BurnoutRiskLevel(d.BurnoutScore)
	return &d, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
