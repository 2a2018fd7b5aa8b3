// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package authz

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/lucyn-dev/lucyn/internal/logging"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Objects.
const (
	ObjectDashboard    = "dashboard"
	ObjectInsights     = "insights"
	ObjectRepositories = "repositories"
	ObjectIntegrations = "integrations"
	ObjectOrganization = "organization"
)

// Actions.
const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionDelete = "delete"
)

// Enforcer wraps the Casbin enforcer loaded with the embedded policy.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer loads the embedded model and policy.
func NewEnforcer() (*Enforcer, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	if err := loadEmbeddedPolicy(enforcer, embeddedPolicy); err != nil {
		return nil, err
	}

	return &Enforcer{enforcer: enforcer}, nil
}

// loadEmbeddedPolicy parses and loads the embedded policy CSV.
func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch {
		case parts[0] == "p" && len(parts) == 4:
			if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", parts[1:], err)
			}
		case parts[0] == "g" && len(parts) == 3:
			if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", parts[1:], err)
			}
		default:
			return fmt.Errorf("malformed policy line %q", line)
		}
	}
	return nil
}

// Can reports whether role may perform action on object. Enforcement
// errors deny.
func (e *Enforcer) Can(role, object, action string) bool {
	if role == "" {
		return false
	}
	allowed, err := e.enforcer.Enforce(role, object, action)
	if err != nil {
		logging.Error().Err(err).
			Str("role", role).
			Str("object", object).
			Str("action", action).
			Msg("Authorization enforcement failed")
		return false
	}
	return allowed
}

// Permissions lists everything role may do, including inherited rules, as
// object to sorted actions.
func (e *Enforcer) Permissions(role string) (map[string][]string, error) {
	rules, err := e.enforcer.GetImplicitPermissionsForUser(role)
	if err != nil {
		return nil, fmt.Errorf("list permissions for %s: %w", role, err)
	}

	perms := make(map[string][]string)
	seen := make(map[string]bool)
	for _, rule := range rules {
		if len(rule) < 3 {
			continue
		}
		obj, act := rule[1], rule[2]
		if seen[obj+"/"+act] {
			continue
		}
		seen[obj+"/"+act] = true
		perms[obj] = append(perms[obj], act)
	}
	for obj := range perms {
		sort.Strings(perms[obj])
	}
	return perms, nil
}
