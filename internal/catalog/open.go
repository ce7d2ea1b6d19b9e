// Package catalog is C8: the embedded relational store backing feeds,
// entries, and the reasoning graph's per-entry category/score/summary rows.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	_ "modernc.org/sqlite"
)

// ConnectionConfig controls the pool sitting in front of the single SQLite
// file. Kept small on purpose: SQLite serializes writers regardless of
// MaxOpenConns, but readers benefit from a handful of idle connections.
type ConnectionConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	BusyTimeout     time.Duration
}

// DefaultConnectionConfig mirrors the teacher's pool defaults, scaled down
// for a single-writer embedded file and widened for the 5s busy timeout
// spec §4.8 requires to tolerate concurrent readers.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 1 * time.Hour,
		BusyTimeout:     5 * time.Second,
	}
}

// Open opens (creating if necessary) a SQLite database at path, applies WAL
// journaling and the busy timeout, and verifies connectivity. dsn query
// parameters are appended so the mode survives connection pool churn.
func Open(path string, cfg ConnectionConfig) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)", path, cfg.BusyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("catalog: open %s: %w", path, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("catalog: ping %s: %w", path, err)
	}

	slog.Info("catalog opened",
		slog.String("path", path),
		slog.Int("max_open_conns", cfg.MaxOpenConns),
		slog.Duration("busy_timeout", cfg.BusyTimeout))

	return db, nil
}

// OpenFromEnv reads SQLITE_URL (a bare file path, per spec §6's "SQLITE_URL
// or equivalent catalog DSN") and opens it with default connection config.
func OpenFromEnv() (*sql.DB, error) {
	path := os.Getenv("SQLITE_URL")
	if path == "" {
		path = "feedmind.db"
	}
	return Open(path, DefaultConnectionConfig())
}
