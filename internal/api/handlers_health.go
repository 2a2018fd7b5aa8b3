// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/lucyn-dev/lucyn/internal/logging"
)

const readinessTimeout = 2 * time.Second

// HealthStatus is the payload of the health checks.
type HealthStatus struct {
	Status        string  `json:"status"`
	Database      string  `json:"database,omitempty"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Live reports that the process is serving requests.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, HealthStatus{
		Status:        "ok",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	})
}

// Ready reports whether the store answers. It returns 503 when it does not.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Readiness check failed")
		WriteError(w, r, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Database unavailable")
		return
	}

	WriteSuccess(w, r, HealthStatus{
		Status:        "ok",
		Database:      "ok",
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	})
}
