// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

/*
Package api implements the Lucyn REST API on the Chi router.

Routes:

	GET    /api/health/live                      liveness check
	GET    /api/health/ready                     readiness check (pings the store)
	GET    /metrics                              Prometheus exposition

	GET    /api/me                               current user, organization, permissions
	PATCH  /api/organization                     rename the organization (admin)
	GET    /api/dashboard/overview               team health aggregates
	GET    /api/developers                       developers with velocity and burnout risk
	GET    /api/developers/{id}                  one developer
	GET    /api/insights                         insights (?status=&severity=&limit=)
	PATCH  /api/insights/{id}                    mark read, dismissed or open
	GET    /api/repositories                     repositories of the organization
	PATCH  /api/repositories/{id}                track or untrack a repository (admin)

	GET    /api/integrations                     connected integrations
	GET    /api/integrations/{provider}          start the OAuth flow (admin)
	GET    /api/integrations/{provider}/callback finish the OAuth flow (admin)
	DELETE /api/integrations/{provider}          disconnect (admin)

Every /api route except the health checks requires a session. JSON
responses are {"success": true, "data": ...} on success and
{"success": false, "error": "...", "code": "...", "request_id": "..."} on
failure. OAuth callbacks answer with a redirect to the dashboard's
integrations page carrying ?success= or ?error=.

The dashboard overview is cached per organization for server.cache_ttl.
Handlers that change insights, repositories or integrations drop the
organization's cached overview.
*/
package api
