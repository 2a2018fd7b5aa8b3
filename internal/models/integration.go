// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package models

import "time"

// Integration providers.
const (
	ProviderGitHub  = "github"
	ProviderSlack   = "slack"
	ProviderDiscord = "discord"
)

// Integration statuses.
const (
	IntegrationActive  = "active"
	IntegrationRevoked = "revoked"
	IntegrationError   = "error"
)

// Integration is an organization's connection to a provider account.
// There is at most one integration per (organization, provider).
//
// AccessToken and RefreshToken hold ciphertext produced by
// auth.TokenEncryptor and never leave the server.
type Integration struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organization_id"`
	Provider       string            `json:"provider"`
	ExternalID     string            `json:"external_id"`
	ExternalName   string            `json:"external_name"`
	AccessToken    string            `json:"-"`
	RefreshToken   string            `json:"-"`
	TokenExpiresAt *time.Time        `json:"token_expires_at,omitempty"`
	Scopes         []string          `json:"scopes"`
	Status         string            `json:"status"`
	ConnectedBy    string            `json:"connected_by"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// Repository is a GitHub repository visible to an organization's integration.
type Repository struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	ExternalID     string     `json:"external_id"`
	Name           string     `json:"name"`
	FullName       string     `json:"full_name"`
	DefaultBranch  string     `json:"default_branch"`
	Private        bool       `json:"private"`
	Tracked        bool       `json:"tracked"`
	LastSyncedAt   *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// AuditEvent is a persisted integration lifecycle event.
type AuditEvent struct {
	ID             string            `json:"id"`
	OrganizationID string            `json:"organization_id"`
	UserID         string            `json:"user_id,omitempty"`
	Type           string            `json:"type"`
	Provider       string            `json:"provider,omitempty"`
	Data           map[string]string `json:"data,omitempty"`
	OccurredAt     time.Time         `json:"occurred_at"`
}
