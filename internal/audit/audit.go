// Package audit records every OpenVPN tool invocation in SQLite so
// administrators can review who changed what.
package audit

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"openvpn-webui/internal/gateway"
)

// DefaultLimit bounds Recent when no limit is given.
const DefaultLimit = 100

// Entry is one recorded invocation.
type Entry struct {
	ID         int64     `json:"id"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMS int64     `json:"durationMs"`
	Viewer     string    `json:"viewer"`
	Subcommand string    `json:"subcommand"`
	ExitCode   int       `json:"exitCode"`
	Error      string    `json:"error,omitempty"`
}

// Store persists invocations. It implements gateway.Observer.
type Store struct {
	db *sql.DB
}

// NewStore creates a store on db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ObserveInvocation implements gateway.Observer. Write failures are logged;
// auditing never fails a gateway call.
func (s *Store) ObserveInvocation(inv gateway.Invocation) {
	if err := s.Record(inv); err != nil {
		log.Printf("audit: %v", err)
	}
}

// Record stores inv.
func (s *Store) Record(inv gateway.Invocation) error {
	var errText sql.NullString
	if inv.Err != nil {
		errText = sql.NullString{String: inv.Err.Error(), Valid: true}
	}
	_, err := s.db.Exec(`
		INSERT INTO gateway_audit (started_at, duration_ms, viewer, subcommand, exit_code, error)
		VALUES (?, ?, ?, ?, ?, ?)`,
		inv.Started.Unix(), inv.Duration.Milliseconds(), inv.Viewer, inv.Subcommand, inv.ExitCode, errText)
	if err != nil {
		return fmt.Errorf("record %s invocation: %w", inv.Subcommand, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	rows, err := s.db.Query(`
		SELECT id, started_at, duration_ms, viewer, subcommand, exit_code, error
		FROM gateway_audit ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query gateway audit: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0)
	for rows.Next() {
		var (
			entry   Entry
			started int64
			errText sql.NullString
		)
		if err := rows.Scan(&entry.ID, &started, &entry.DurationMS, &entry.Viewer, &entry.Subcommand, &entry.ExitCode, &errText); err != nil {
			return nil, err
		}
		entry.StartedAt = time.Unix(started, 0).UTC()
		entry.Error = errText.String
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
