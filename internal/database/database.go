// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/lib/pq"

	"github.com/lucyn-dev/lucyn/internal/config"
	"github.com/lucyn-dev/lucyn/internal/logging"
)

// Driver names.
const (
	DriverDuckDB   = "duckdb"
	DriverPostgres = "postgres"
)

// defaultQueryTimeout bounds queries whose caller context has no deadline.
const defaultQueryTimeout = 30 * time.Second

// DB wraps the connection pool.
type DB struct {
	conn   *sql.DB
	driver string
}

// Open connects to the configured store and applies pending migrations.
func Open(cfg *config.DatabaseConfig) (*DB, error) {
	var (
		conn *sql.DB
		err  error
	)

	switch cfg.Driver {
	case DriverDuckDB:
		if dir := filepath.Dir(cfg.Path); cfg.Path != ":memory:" && dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
		path := cfg.Path
		if path == ":memory:" {
			path = ""
		}
		conn, err = sql.Open(DriverDuckDB, path)
	case DriverPostgres:
		conn, err = sql.Open(DriverPostgres, cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.Driver == DriverDuckDB && cfg.Path == ":memory:" {
		// Every pooled connection to "" would be a separate in-memory database.
		conn.SetMaxOpenConns(1)
	}

	db := &DB{conn: conn, driver: cfg.Driver}

	ctx, cancel := context.WithTimeout(context.Background(), defaultQueryTimeout)
	defer cancel()
	if err := db.Ping(ctx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.Driver, err)
	}

	if err := db.Migrate(ctx); err != nil {
		closeQuietly(conn)
		return nil, err
	}

	logging.Info().Str("driver", cfg.Driver).Msg("Database ready")
	return db, nil
}

// Driver returns the driver name.
func (db *DB) Driver() string {
	return db.driver
}

// Conn exposes the pool for tests and tooling.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Ping checks connectivity.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// Close closes the pool.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// ensureContext applies defaultQueryTimeout when ctx has no deadline.
func (db *DB) ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// nullTime converts an optional time for a nullable column.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// timePtr converts a scanned nullable column.
func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
