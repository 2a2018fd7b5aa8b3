// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

/*
Package cache provides a thread-safe, typed in-memory cache with TTL expiry.

The API uses it to keep dashboard aggregates per organization for a short
time, since the overview query scans every developer and insight row. Writes
that change those aggregates (insight status changes, integration connect and
disconnect) invalidate the organization's entry.

# Usage

	overview := cache.New[*models.DashboardOverview]("dashboard_overview", 30*time.Second)
	defer overview.Stop()

	if o, ok := overview.Get(orgID); ok {
	    return o, nil
	}
	o, err := store.GetOverview(ctx, orgID)
	if err == nil {
	    overview.Set(orgID, o)
	}

# Expiry

Entries expire lazily on Get and in bulk on a background sweep. Stop ends the
sweep goroutine; a stopped cache still serves Get and Set.

# Observability

Hits and misses are counted in cache_lookups_total{cache,result} and removals
in cache_evictions_total{cache}, both labelled with the name passed to New.
*/
package cache
