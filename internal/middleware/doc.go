// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

/*
Package middleware provides infrastructure HTTP middleware shared by every
route: request ID propagation and Prometheus instrumentation.

Authentication, authorization and rate limiting live in their own packages
(auth, authz, ratelimit). The router composes them as:

	r.Use(middleware.RequestID)          // X-Request-ID + logging context
	r.Use(middleware.PrometheusMetrics)  // api_requests_total et al.
	r.Use(chimw.Recoverer)
	...
	r.With(authMW.Authenticate, limiter.Handler).Get(...)
*/
package middleware
