// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lucyn-dev/lucyn/internal/database"
	"github.com/lucyn-dev/lucyn/internal/logging"
	"github.com/lucyn-dev/lucyn/internal/models"
)

// UpdateOrganizationRequest is the body of PATCH /api/organization.
type UpdateOrganizationRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// UpdateRepositoryRequest is the body of PATCH /api/repositories/{id}.
type UpdateRepositoryRequest struct {
	Tracked *bool `json:"tracked" validate:"required"`
}

// Me returns the caller, their organization and what their role allows.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	rw := NewResponseWriter(w, r)

	user, err := h.store.GetUser(ctx, s.UserID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	org, err := h.store.GetOrganization(ctx, s.OrganizationID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	perms := map[string][]string{}
	if h.enforcer != nil {
		if perms, err = h.enforcer.Permissions(s.Role); err != nil {
			logging.Ctx(ctx).Error().Err(err).Str("role", s.Role).Msg("Failed to list permissions")
			rw.InternalError("Internal server error")
			return
		}
	}

	rw.Success(&models.Profile{User: user, Organization: org, Permissions: perms})
}

// UpdateOrganization renames the caller's organization.
func (h *Handler) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}

	var req UpdateOrganizationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	rw := NewResponseWriter(w, r)
	name := strings.TrimSpace(req.Name)
	if name == "" {
		rw.BadRequest("name must not be blank")
		return
	}

	org, err := h.store.UpdateOrganizationName(r.Context(), s.OrganizationID, name)
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("Organization not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(org)
}

// ListRepositories returns the organization's repositories.
func (h *Handler) ListRepositories(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}
	rw := NewResponseWriter(w, r)

	repos, err := h.store.ListRepositories(r.Context(), s.OrganizationID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if repos == nil {
		repos = []models.Repository{}
	}
	rw.Success(repos)
}

// UpdateRepository starts or stops tracking a repository.
func (h *Handler) UpdateRepository(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}

	var req UpdateRepositoryRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rw := NewResponseWriter(w, r)
	repo, err := h.store.SetRepositoryTracked(r.Context(), s.OrganizationID, chi.URLParam(r, "id"), *req.Tracked)
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("Repository not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	h.invalidateOverview(s.OrganizationID)
	rw.Success(repo)
}
