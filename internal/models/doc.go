// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

/*
Package models defines the data structures shared by the store, the HTTP
API and the event pipeline.

Entities:
  - Organization: a customer company; owns everything else
  - User: a dashboard member of an organization with a role
  - Integration: a connected GitHub, Slack or Discord account
  - Repository: a GitHub repository discovered through an integration
  - Developer: a tracked engineer with activity and wellbeing scores
  - Insight: a generated observation about the team
  - AuditEvent: a persisted integration lifecycle event

Provider tokens on Integration are never serialized to JSON.
*/
package models
