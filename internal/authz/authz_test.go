// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package authz

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/lucyn-dev/lucyn/internal/auth"
	"github.com/lucyn-dev/lucyn/internal/models"
)

func newTestEnforcer(t *testing.T) *Enforcer {
	t.Helper()
	e, err := NewEnforcer()
	if err != nil {
		t.Fatalf("NewEnforcer() error = %v", err)
	}
	return e
}

func TestEnforcer_Can(t *testing.T) {
	e := newTestEnforcer(t)

	tests := []struct {
		role   string
		object string
		action string
		want   bool
	}{
		{models.RoleMember, ObjectDashboard, ActionRead, true},
		{models.RoleMember, ObjectInsights, ActionWrite, true},
		{models.RoleMember, ObjectRepositories, ActionWrite, false},
		{models.RoleMember, ObjectIntegrations, ActionDelete, false},
		{models.RoleMember, ObjectOrganization, ActionWrite, false},

		{models.RoleAdmin, ObjectDashboard, ActionRead, true},
		{models.RoleAdmin, ObjectRepositories, ActionWrite, true},
		{models.RoleAdmin, ObjectIntegrations, ActionWrite, true},
		{models.RoleAdmin, ObjectIntegrations, ActionDelete, true},
		{models.RoleAdmin, ObjectOrganization, ActionWrite, true},

		{models.RoleOwner, ObjectOrganization, ActionWrite, true},
		{models.RoleOwner, ObjectIntegrations, ActionDelete, true},
		{models.RoleOwner, ObjectInsights, ActionWrite, true},

		{"", ObjectDashboard, ActionRead, false},
		{"guest", ObjectDashboard, ActionRead, false},
		{models.RoleOwner, "billing", ActionRead, false},
	}

	for _, tt := range tests {
		t.Run(tt.role+"/"+tt.object+"/"+tt.action, func(t *testing.T) {
			if got := e.Can(tt.role, tt.object, tt.action); got != tt.want {
				t.Errorf("Can(%q, %q, %q) = %v, want %v", tt.role, tt.object, tt.action, got, tt.want)
			}
		})
	}
}

func TestEnforcer_Permissions(t *testing.T) {
	e := newTestEnforcer(t)

	member, err := e.Permissions(models.RoleMember)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(member[ObjectInsights], []string{ActionRead, ActionWrite}) {
		t.Errorf("member insights = %v", member[ObjectInsights])
	}
	if _, ok := member[ObjectIntegrations]; !ok {
		t.Error("member should read integrations")
	}

	owner, err := e.Permissions(models.RoleOwner)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(owner[ObjectIntegrations], []string{ActionDelete, ActionRead, ActionWrite}) {
		t.Errorf("owner integrations = %v", owner[ObjectIntegrations])
	}
	if !reflect.DeepEqual(owner[ObjectOrganization], []string{ActionRead, ActionWrite}) {
		t.Errorf("owner organization = %v", owner[ObjectOrganization])
	}
}

func TestMiddleware_Require(t *testing.T) {
	mw := NewMiddleware(newTestEnforcer(t))
	handler := mw.Require(ObjectIntegrations, ActionDelete)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name    string
		subject *auth.Subject
		want    int
	}{
		{name: "no subject", subject: nil, want: http.StatusUnauthorized},
		{name: "member denied", subject: &auth.Subject{UserID: "u1", Role: models.RoleMember}, want: http.StatusForbidden},
		{name: "admin allowed", subject: &auth.Subject{UserID: "u2", Role: models.RoleAdmin}, want: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodDelete, "/api/integrations/github", nil)
			if tt.subject != nil {
				req = req.WithContext(auth.ContextWithSubject(req.Context(), tt.subject))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
