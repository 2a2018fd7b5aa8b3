// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

//go:build integration

package database

import (
	"context"
	"errors"
	"testing"

	"github.com/lucyn-dev/lucyn/internal/config"
	"github.com/lucyn-dev/lucyn/internal/models"
	"github.com/lucyn-dev/lucyn/internal/testinfra"
)

func TestPostgres_EndToEnd(t *testing.T) {
	testinfra.SkipIfNoDocker(t)
	ctx := context.Background()

	pg, err := testinfra.NewPostgresContainer(ctx)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	defer testinfra.CleanupContainer(t, ctx, pg)

	db, err := Open(&config.DatabaseConfig{Driver: DriverPostgres, DSN: pg.DSN, MaxOpenConns: 4})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	// golang-migrate must be a no-op the second time.
	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	// Migrations hand their connection back and leave the pool open.
	if inUse := db.Conn().Stats().InUse; inUse != 0 {
		t.Errorf("connections in use after Migrate = %d, want 0", inUse)
	}
	if err := db.Ping(ctx); err != nil {
		t.Fatalf("Ping() after Migrate error = %v", err)
	}

	if _, err := db.SeedMockData(ctx); err != nil {
		t.Fatalf("SeedMockData() error = %v", err)
	}
	ov, err := db.GetOverview(ctx, MockOrganizationID)
	if err != nil {
		t.Fatal(err)
	}
	if ov.ActiveDevelopers != 5 || ov.Commits != 306 {
		t.Errorf("overview = %+v", ov)
	}

	in := &models.Integration{OrganizationID: MockOrganizationID, Provider: models.ProviderDiscord, ExternalID: "u1", Scopes: []string{"identify"}}
	if err := db.UpsertIntegration(ctx, in); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteIntegration(ctx, MockOrganizationID, models.ProviderDiscord); err != nil {
		t.Fatal(err)
	}
	if _, err := db.GetIntegration(ctx, MockOrganizationID, models.ProviderDiscord); !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}
