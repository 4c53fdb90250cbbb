package database

import (
	"path/filepath"
	"testing"
	"time"
)

func TestOpen_InMemory(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) error: %v", err)
	}
	defer db.Close()

	// Verify all expected tables exist.
	tables := []string{"accounts", "sessions", "gateway_audit"}
	for _, table := range tables {
		var name string
		err := db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "openvpn-webui.db")
	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open(%s): %v", path, err)
	}
	db.Close()
}

func TestMigrate_Idempotent(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	// Running migrate a second time must not error.
	if err := migrate(db); err != nil {
		t.Fatalf("second migrate failed: %v", err)
	}
}

func TestOpen_ForeignKeys(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec("INSERT INTO accounts (username, password_hash) VALUES ('alice', 'x')"); err != nil {
		t.Fatalf("insert account: %v", err)
	}
	if _, err := db.Exec("INSERT INTO sessions (token, username, created_at, expires_at) VALUES ('t', 'alice', 0, 1)"); err != nil {
		t.Fatalf("insert session: %v", err)
	}

	// Deleting the account should cascade-delete its sessions.
	if _, err := db.Exec("DELETE FROM accounts WHERE username='alice'"); err != nil {
		t.Fatalf("delete account: %v", err)
	}

	var count int
	db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&count)
	if count != 0 {
		t.Errorf("expected cascade delete, got %d orphan sessions", count)
	}
}

func TestCleanupBefore(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	now := time.Unix(1_700_000_000, 0).UTC()
	mustExec := func(query string, args ...any) {
		t.Helper()
		if _, err := db.Exec(query, args...); err != nil {
			t.Fatalf("exec %q: %v", query, err)
		}
	}
	mustExec("INSERT INTO accounts (username, password_hash) VALUES ('root', 'x')")
	mustExec("INSERT INTO sessions (token, username, created_at, expires_at) VALUES ('old', 'root', 0, ?)", now.Add(-time.Minute).Unix())
	mustExec("INSERT INTO sessions (token, username, created_at, expires_at) VALUES ('live', 'root', 0, ?)", now.Add(time.Hour).Unix())
	mustExec("INSERT INTO gateway_audit (started_at, subcommand) VALUES (?, 'get')", now.Add(-AuditRetention-time.Hour).Unix())
	mustExec("INSERT INTO gateway_audit (started_at, subcommand) VALUES (?, 'get')", now.Add(-time.Hour).Unix())

	if err := cleanupBefore(db, now); err != nil {
		t.Fatalf("cleanupBefore: %v", err)
	}

	var sessions, audit int
	db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&sessions)
	db.QueryRow("SELECT COUNT(*) FROM gateway_audit").Scan(&audit)
	if sessions != 1 || audit != 1 {
		t.Fatalf("expected 1 session and 1 audit row, got %d and %d", sessions, audit)
	}
	if err := cleanupBefore(nil, now); err == nil {
		t.Fatalf("expected nil handle to be rejected")
	}
}
