// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

/*
Package supervisor runs the long-lived parts of the server under a
thejerf/suture supervision tree.

	lucyn
	├── messaging-layer   audit event consumer
	└── api-layer         HTTP server

A crashing service is restarted with backoff without taking its siblings
down. Supervisor events are logged through sutureslog on the zerolog-backed
slog logger. Service adapters live in the services subpackage.
*/
package supervisor
