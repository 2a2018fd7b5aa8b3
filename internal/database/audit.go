// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/lucyn-dev/lucyn/internal/models"
)

// InsertAuditEvent records an integration lifecycle event. Events with an
// ID that already exists are ignored, so redelivered messages are harmless.
func (db *DB) InsertAuditEvent(ctx context.Context, ev *models.AuditEvent) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	data := ev.Data
	if data == nil {
		data = map[string]string{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal audit data: %w", err)
	}

	query := `
		INSERT INTO audit_events (id, organization_id, user_id, type, provider, data, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = db.conn.ExecContext(ctx, query,
		ev.ID, ev.OrganizationID, ev.UserID, ev.Type, ev.Provider, string(dataJSON), ev.OccurredAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}

// ListAuditEvents returns the organization's most recent events.
func (db *DB) ListAuditEvents(ctx context.Context, orgID string, limit int) ([]models.AuditEvent, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, organization_id, user_id, type, provider, data, occurred_at
		FROM audit_events
		WHERE organization_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`
	rows, err := db.conn.QueryContext(ctx, query, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer closeWithLog(rows, "audit rows")

	out := []models.AuditEvent{}
	for rows.Next() {
		var (
			ev   models.AuditEvent
			data string
		)
		if err := rows.Scan(&ev.ID, &ev.OrganizationID, &ev.UserID, &ev.Type, &ev.Provider, &data, &ev.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &ev.Data); err != nil {
			return nil, fmt.Errorf("failed to decode audit data: %w", err)
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}
	return out, nil
}
