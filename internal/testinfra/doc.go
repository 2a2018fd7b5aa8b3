// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

// Package testinfra starts throwaway dependencies for integration tests
// with testcontainers-go. Everything here is behind the "integration"
// build tag:
//
//	go test -tags integration ./internal/database/...
package testinfra
