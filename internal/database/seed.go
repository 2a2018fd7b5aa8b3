// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lucyn-dev/lucyn/internal/logging"
	"github.com/lucyn-dev/lucyn/internal/models"
)

// Mock identities used by development seeding.
const (
	MockOrganizationID = "00000000-0000-4000-8000-000000000001"
	MockOwnerID        = "00000000-0000-4000-8000-000000000002"
	MockOwnerEmail     = "owner@acme.dev"
)

// SeedMockData fills an empty store with the demo organization the
// dashboard renders in development. It does nothing when the demo owner
// already exists.
func (db *DB) SeedMockData(ctx context.Context) (*models.User, error) {
	if owner, err := db.GetUser(ctx, MockOwnerID); err == nil {
		return owner, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	logging.Info().Msg("Seeding database with mock dashboard data")

	org := &models.Organization{ID: MockOrganizationID, Name: "Acme Engineering", Slug: "acme", Plan: "team"}
	if err := db.CreateOrganization(ctx, org); err != nil {
		return nil, fmt.Errorf("seed organization: %w", err)
	}

	owner := &models.User{
		ID:             MockOwnerID,
		OrganizationID: org.ID,
		Email:          MockOwnerEmail,
		Name:           "Alex Rivera",
		Role:           models.RoleOwner,
	}
	if err := db.UpsertUser(ctx, owner); err != nil {
		return nil, fmt.Errorf("seed owner: %w", err)
	}

	now := time.Now().UTC()
	ago := func(d time.Duration) *time.Time {
		t := now.Add(-d)
		return &t
	}

	developers := []models.Developer{
		{Name: "Sarah Chen", GitHubLogin: "schen", Commits: 87, PRsOpened: 14, PRsMerged: 12, ReviewsGiven: 31, AvgReviewHours: 3.2, VelocityScore: 92, BurnoutScore: 78, LastActiveAt: ago(2 * time.Hour)},
		{Name: "Marcus Johnson", GitHubLogin: "mjohnson", Commits: 54, PRsOpened: 9, PRsMerged: 8, ReviewsGiven: 12, AvgReviewHours: 6.5, VelocityScore: 71, BurnoutScore: 45, LastActiveAt: ago(5 * time.Hour)},
		{Name: "Priya Patel", GitHubLogin: "ppatel", Commits: 63, PRsOpened: 11, PRsMerged: 11, ReviewsGiven: 24, AvgReviewHours: 2.1, VelocityScore: 84, BurnoutScore: 32, LastActiveAt: ago(26 * time.Hour)},
		{Name: "James Wilson", GitHubLogin: "jwilson", Commits: 22, PRsOpened: 4, PRsMerged: 2, ReviewsGiven: 5, AvgReviewHours: 14.8, VelocityScore: 38, BurnoutScore: 66, LastActiveAt: ago(3 * 24 * time.Hour)},
		{Name: "Emily Rodriguez", GitHubLogin: "erodriguez", Commits: 71, PRsOpened: 13, PRsMerged: 12, ReviewsGiven: 19, AvgReviewHours: 4.0, VelocityScore: 79, BurnoutScore: 24, LastActiveAt: ago(9 * time.Hour)},
		{Name: "David Kim", GitHubLogin: "dkim", Commits: 9, PRsOpened: 1, PRsMerged: 1, ReviewsGiven: 2, AvgReviewHours: 9.3, VelocityScore: 21, BurnoutScore: 18, LastActiveAt: ago(20 * 24 * time.Hour)},
	}
	for i := range developers {
		d := &developers[i]
		d.OrganizationID = org.ID
		d.Email = d.GitHubLogin + "@acme.dev"
		d.AvatarURL = "https://github.com/" + d.GitHubLogin + ".png"
		if err := db.UpsertDeveloper(ctx, d); err != nil {
			return nil, fmt.Errorf("seed developer %s: %w", d.Name, err)
		}
	}

	insights := []models.Insight{
		{DeveloperID: &developers[0].ID, Type: models.InsightBurnoutRisk, Severity: models.SeverityCritical,
			Title:          "Sarah is showing signs of burnout",
			Description:    "Commits after 10pm rose 60% over the last two weeks and weekend activity is up.",
			Recommendation: "Check in during your next 1:1 and consider rebalancing sprint load.", CreatedAt: now.Add(-1 * time.Hour)},
		{DeveloperID: &developers[3].ID, Type: models.InsightReviewBottleneck, Severity: models.SeverityWarning,
			Title:          "Reviews for James are waiting too long",
			Description:    "Pull requests authored by James wait 14.8 hours on average for a first review.",
			Recommendation: "Pair James with a second reviewer for the payments service.", CreatedAt: now.Add(-5 * time.Hour)},
		{Type: models.InsightVelocityDrop, Severity: models.SeverityWarning,
			Title:       "Team velocity dipped 12% this sprint",
			Description: "Merged pull requests fell from 52 to 46 compared to the previous sprint.", CreatedAt: now.Add(-26 * time.Hour)},
		{Type: models.InsightCollaboration, Severity: models.SeverityInfo,
			Title:       "Cross-team reviews are up",
			Description: "Priya and Emily reviewed 9 pull requests outside their own area this week.", CreatedAt: now.Add(-2 * 24 * time.Hour)},
		{DeveloperID: &developers[2].ID, Type: models.InsightAchievement, Severity: models.SeverityInfo,
			Title:       "Priya shipped the search rewrite",
			Description: "All 11 pull requests of the search rewrite merged with no reverts.", Status: models.InsightRead,
			CreatedAt: now.Add(-4 * 24 * time.Hour), ReadAt: ago(3 * 24 * time.Hour)},
	}
	for i := range insights {
		insights[i].OrganizationID = org.ID
		if err := db.CreateInsight(ctx, &insights[i]); err != nil {
			return nil, fmt.Errorf("seed insight: %w", err)
		}
	}

	repos := []models.Repository{
		{ExternalID: "100001", Name: "web", FullName: "acme/web", Tracked: true, LastSyncedAt: ago(30 * time.Minute)},
		{ExternalID: "100002", Name: "api", FullName: "acme/api", Private: true, Tracked: true, LastSyncedAt: ago(30 * time.Minute)},
		{ExternalID: "100003", Name: "payments", FullName: "acme/payments", Private: true, Tracked: true, LastSyncedAt: ago(2 * time.Hour)},
		{ExternalID: "100004", Name: "docs", FullName: "acme/docs", Tracked: false},
	}
	for i := range repos {
		repos[i].OrganizationID = org.ID
		if err := db.UpsertRepository(ctx, &repos[i]); err != nil {
			return nil, fmt.Errorf("seed repository %s: %w", repos[i].FullName, err)
		}
	}

	logging.Info().
		Int("developers", len(developers)).
		Int("insights", len(insights)).
		Int("repositories", len(repos)).
		Msg("Mock data seeded")
	return owner, nil
}
