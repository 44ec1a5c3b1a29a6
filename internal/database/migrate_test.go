package database

import (
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

func TestMigrateNewDB(t *testing.T) {
	db := openTestDB(t)

	version, err := getSchemaVersion(db.conn)
	if err != nil {
		t.Fatalf("getSchemaVersion: %v", err)
	}
	if version != latestVersion() {
		t.Errorf("expected version %d, got %d", latestVersion(), version)
	}
}

func TestMigrateIdempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "idem.db")

	db1, err := Open(dbPath)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	db1.Close()

	db2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("second Open: %v", err)
	}
	defer db2.Close()

	version, _ := getSchemaVersion(db2.conn)
	if version != latestVersion() {
		t.Errorf("expected version %d, got %d", latestVersion(), version)
	}
}

func TestMigrateFromVersionOne(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "v1.db")

	// Build a database that only has the first migration applied.
	raw, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	tx, _ := raw.Begin()
	if err := migrations[0].Up(tx); err != nil {
		t.Fatalf("apply v1: %v", err)
	}
	tx.Commit()
	raw.Exec("PRAGMA user_version = 1")
	raw.Close()

	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	var n int
	if err := db.conn.QueryRow(
		"SELECT COUNT(*) FROM pragma_table_info('user_rating_stats') WHERE name = 'recovered_at'",
	).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Error("expected recovered_at column after upgrade")
	}
}

func TestRerunColumnMigration(t *testing.T) {
	db := openTestDB(t)

	tx, err := db.conn.Begin()
	if err != nil {
		t.Fatal(err)
	}
	if err := migrations[2].Up(tx); err != nil {
		t.Fatalf("re-running migration 3 should be a no-op, got %v", err)
	}
	tx.Rollback()
}

func TestRejectNewerSchema(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "future.db")
	raw, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	raw.Exec("PRAGMA user_version = 99")
	raw.Close()

	_, err = Open(dbPath)
	if err == nil || !strings.Contains(err.Error(), "newer than this binary") {
		t.Errorf("expected newer-schema error, got %v", err)
	}
}
