//go:build integration

package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func openRawDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunMigrations_FreshDatabase(t *testing.T) {
	db := openRawDB(t)

	if err := RunMigrations(db); err != nil {
		t.Fatalf("RunMigrations failed: %v", err)
	}

	tables := []string{
		"jobs", "attempts", "sync_stats", "stream_stats", "state",
		"stream_generation", "stream_attempt_metadata", "connections",
		"destinations", "destination_definitions", "destination_version_overrides",
	}
	for _, table := range tables {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&name)
		if err != nil {
			t.Errorf("table %s not created: %v", table, err)
		}
	}

	_, err := db.Exec(`
		SELECT id, job_id, attempt_number, log_path, status, output, failure_summary,
		       attempt_sync_config, created_at, updated_at, ended_at
		FROM attempts LIMIT 0
	`)
	if err != nil {
		t.Fatalf("attempts missing required columns: %v", err)
	}
}

func TestRunMigrations_Idempotent(t *testing.T) {
	db := openRawDB(t)

	if err := RunMigrations(db); err != nil {
		t.Fatalf("first migration failed: %v", err)
	}
	if err := RunMigrations(db); err != nil {
		t.Fatalf("second migration should be idempotent, got error: %v", err)
	}

	v, err := MigrationVersion(db)
	if err != nil {
		t.Fatalf("MigrationVersion failed: %v", err)
	}
	if v != 1 {
		t.Errorf("version = %d, want 1", v)
	}
}

func TestRunMigrations_PreservesData(t *testing.T) {
	db := openRawDB(t)

	if err := RunMigrations(db); err != nil {
		t.Fatalf("initial migration failed: %v", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := db.Exec(`
		INSERT INTO jobs (config_type, scope, config, status, created_at, updated_at)
		VALUES ('sync', 'conn-1', '{}', 'pending', ?, ?)
	`, now, now)
	if err != nil {
		t.Fatalf("failed to insert test data: %v", err)
	}

	if err := RunMigrations(db); err != nil {
		t.Fatalf("re-migration failed: %v", err)
	}

	var scope string
	if err := db.QueryRow(`SELECT scope FROM jobs WHERE id = 1`).Scan(&scope); err != nil {
		t.Fatalf("data not preserved after migration: %v", err)
	}
	if scope != "conn-1" {
		t.Errorf("expected scope 'conn-1', got %q", scope)
	}
}

func TestSchema_Indexes(t *testing.T) {
	db := openRawDB(t)

	if err := RunMigrations(db); err != nil {
		t.Fatalf("migration failed: %v", err)
	}

	expectedIndexes := []string{
		"idx_jobs_scope",
		"idx_sync_stats_attempt",
		"idx_stream_stats_attempt",
		"idx_state_connection",
		"idx_stream_generation_connection",
		"idx_stream_attempt_metadata_attempt",
	}

	for _, idx := range expectedIndexes {
		var name string
		err := db.QueryRow(`SELECT name FROM sqlite_master WHERE type='index' AND name=?`, idx).Scan(&name)
		if err != nil {
			t.Errorf("index %s not found: %v", idx, err)
		}
	}
}

func TestWALMode_Enabled(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	var journalMode string
	if err := store.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("expected journal_mode 'wal', got %q", journalMode)
	}
}

func TestPragmas_Applied(t *testing.T) {
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	var busyTimeout int
	if err := store.db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout); err != nil {
		t.Fatalf("failed to query busy_timeout: %v", err)
	}
	if busyTimeout != 5000 {
		t.Errorf("expected busy_timeout 5000, got %d", busyTimeout)
	}

	var foreignKeys int
	if err := store.db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
		t.Fatalf("failed to query foreign_keys: %v", err)
	}
	if foreignKeys != 1 {
		t.Errorf("expected foreign_keys 1, got %d", foreignKeys)
	}
}

func TestNewSQLiteStore_CreatesParentDirectories(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "test.db")

	store, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("failed to create store with nested path: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}
