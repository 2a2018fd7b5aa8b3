// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

/*
Package database is Lucyn's relational store.

Two drivers are supported behind the same *DB:

  - duckdb: an embedded single-file database, the default for development
    and single-node deployments
  - postgres: a shared server (the hosted Supabase database in production)

Both accept $n positional placeholders, so every query is written once.
The schema lives in migrations/*.sql. Postgres applies it with
golang-migrate; DuckDB applies the same files through a schema_migrations
table.

All queries are scoped by organization ID. Missing rows are reported as
ErrNotFound.
*/
package database
