// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

/*
Package events carries integration lifecycle events over Watermill.

Two transports are supported behind the same Bus:

  - NATS JetStream (watermill-nats) when nats.enabled is set. The stream
    (nats.stream, default LUCYN_EVENTS) is created on startup with subjects
    "integration.>". With nats.embedded an in-process nats-server is
    started first (EmbeddedServer).
  - An in-process gochannel otherwise, for single-instance and development
    setups.

Topics:

	integration.connected      provider account linked to an organization
	integration.disconnected   integration removed

Publisher serializes Event as JSON. AuditConsumer subscribes to every topic
and writes each event to the audit_events table; it is run as a supervised
service.
*/
package events
