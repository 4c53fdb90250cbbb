// Package database manages the SQLite database used for persistent storage.
// It opens the database, enables WAL mode, and runs all schema migrations.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// Open opens (or creates) the SQLite database at path and runs all migrations.
// Use ":memory:" for an in-memory database (useful in tests).
func Open(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Keep a single writer connection to avoid SQLITE_BUSY under concurrent load.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", path, err)
	}
	return db, nil
}

// migrate executes the schema DDL. All statements are idempotent.
func migrate(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

// AuditRetention bounds how long gateway invocations are kept.
const AuditRetention = 30 * 24 * time.Hour

// Cleanup removes expired sessions and audit rows older than AuditRetention.
func Cleanup(db *sql.DB) error {
	return cleanupBefore(db, time.Now().UTC())
}

func cleanupBefore(db *sql.DB, now time.Time) error {
	if db == nil {
		return errors.New("database handle is required")
	}
	if _, err := db.Exec(`DELETE FROM sessions WHERE expires_at < ?`, now.Unix()); err != nil {
		return fmt.Errorf("prune sessions: %w", err)
	}
	cutoff := now.Add(-AuditRetention).Unix()
	if _, err := db.Exec(`DELETE FROM gateway_audit WHERE started_at < ?`, cutoff); err != nil {
		return fmt.Errorf("prune gateway audit: %w", err)
	}
	return nil
}
