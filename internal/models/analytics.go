// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package models

import "time"

// Burnout risk levels.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// BurnoutRiskLevel buckets a 0-100 burnout score.
func BurnoutRiskLevel(score float64) string {
	switch {
	case score < 40:
		return RiskLow
	case score < 70:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// Developer is a tracked engineer with activity for the current period.
type Developer struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	Name           string     `json:"name"`
	Email          string     `json:"email,omitempty"`
	AvatarURL      string     `json:"avatar_url,omitempty"`
	GitHubLogin    string     `json:"github_login,omitempty"`
	Commits        int        `json:"commits"`
	PRsOpened      int        `json:"prs_opened"`
	PRsMerged      int        `json:"prs_merged"`
	ReviewsGiven   int        `json:"reviews_given"`
	AvgReviewHours float64    `json:"avg_review_hours"`
	VelocityScore  float64    `json:"velocity_score"`
	BurnoutScore   float64    `json:"burnout_score"`
	BurnoutRisk    string     `json:"burnout_risk"`
	LastActiveAt   *time.Time `json:"last_active_at,omitempty"`
}

// Insight types.
const (
	InsightBurnoutRisk      = "burnout_risk"
	InsightVelocityDrop     = "velocity_drop"
	InsightReviewBottleneck = "review_bottleneck"
	InsightCollaboration    = "collaboration"
	InsightAchievement      = "achievement"
)

// Insight statuses.
const (
	InsightOpen      = "open"
	InsightRead      = "read"
	InsightDismissed = "dismissed"
)

// Insight severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Insight is an observation about the team shown on the dashboard.
type Insight struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	DeveloperID    *string    `json:"developer_id,omitempty"`
	Type           string     `json:"type"`
	Severity       string     `json:"severity"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Recommendation string     `json:"recommendation,omitempty"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
}

// InsightFilter narrows an insight listing. Zero values match everything.
type InsightFilter struct {
	Status   string
	Severity string
	Limit    int
}

// Overview is the dashboard summary.
type Overview struct {
	TeamHealthScore       float64 `json:"team_health_score"`
	ActiveDevelopers      int     `json:"active_developers"`
	AtRiskDevelopers      int     `json:"at_risk_developers"`
	Commits               int     `json:"commits"`
	PRsMerged             int     `json:"prs_merged"`
	AvgReviewHours        float64 `json:"avg_review_hours"`
	AvgVelocityScore      float64 `json:"avg_velocity_score"`
	OpenInsights          int     `json:"open_insights"`
	ConnectedIntegrations int     `json:"connected_integrations"`
}
