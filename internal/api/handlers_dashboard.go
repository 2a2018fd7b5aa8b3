// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lucyn-dev/lucyn/internal/database"
	"github.com/lucyn-dev/lucyn/internal/models"
	"github.com/lucyn-dev/lucyn/internal/validation"
)

// insightQuery holds the query parameters of GET /api/insights.
type insightQuery struct {
	Status   string `json:"status" validate:"omitempty,insight_status"`
	Severity string `json:"severity" validate:"omitempty,oneof=info warning critical"`
	Limit    int    `json:"limit" validate:"gte=1,lte=200"`
}

// UpdateInsightRequest is the body of PATCH /api/insights/{id}.
type UpdateInsightRequest struct {
	Status string `json:"status" validate:"required,insight_status"`
}

// Overview returns the team health aggregates.
func (h *Handler) Overview(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}
	rw := NewResponseWriter(w, r)

	var version uint64
	if h.overviews != nil {
		if overview, hit := h.overviews.Get(s.OrganizationID); hit {
			rw.Success(overview)
			return
		}
		version = h.overviews.Version(s.OrganizationID)
	}

	overview, err := h.store.GetOverview(r.Context(), s.OrganizationID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	// A write that landed during the query invalidated the version; its
	// result may predate the write, so it is served but not cached.
	if h.overviews != nil {
		h.overviews.SetIfUnchanged(s.OrganizationID, overview, version)
	}
	rw.Success(overview)
}

// ListDevelopers returns the organization's developers.
func (h *Handler) ListDevelopers(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}
	rw := NewResponseWriter(w, r)

	devs, err := h.store.ListDevelopers(r.Context(), s.OrganizationID)
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if devs == nil {
		devs = []models.Developer{}
	}
	rw.Success(devs)
}

// GetDeveloper returns one developer.
func (h *Handler) GetDeveloper(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}
	rw := NewResponseWriter(w, r)

	dev, err := h.store.GetDeveloper(r.Context(), s.OrganizationID, chi.URLParam(r, "id"))
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("Developer not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	rw.Success(dev)
}

// ListInsights returns insights filtered by ?status=, ?severity= and
// ?limit=.
func (h *Handler) ListInsights(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}
	rw := NewResponseWriter(w, r)

	q := r.URL.Query()
	params := insightQuery{
		Status:   q.Get("status"),
		Severity: q.Get("severity"),
		Limit:    database.DefaultInsightLimit,
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			rw.BadRequest("limit must be an integer")
			return
		}
		params.Limit = limit
	}
	if verr := validation.ValidateStruct(&params); verr != nil {
		rw.ValidationError(verr.Error(), verr.Fields)
		return
	}

	insights, err := h.store.ListInsights(r.Context(), s.OrganizationID, models.InsightFilter{
		Status:   params.Status,
		Severity: params.Severity,
		Limit:    params.Limit,
	})
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	if insights == nil {
		insights = []models.Insight{}
	}
	rw.Success(insights)
}

// UpdateInsight moves an insight to read, dismissed or back to open.
func (h *Handler) UpdateInsight(w http.ResponseWriter, r *http.Request) {
	s, ok := subject(w, r)
	if !ok {
		return
	}

	var req UpdateInsightRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rw := NewResponseWriter(w, r)
	insight, err := h.store.UpdateInsightStatus(r.Context(), s.OrganizationID, chi.URLParam(r, "id"), req.Status)
	if errors.Is(err, database.ErrNotFound) {
		rw.NotFound("Insight not found")
		return
	}
	if err != nil {
		rw.DatabaseError(err)
		return
	}
	h.invalidateOverview(s.OrganizationID)
	rw.Success(insight)
}
