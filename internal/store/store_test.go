package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// Verify file was created
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_OpensExistingDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	// Create database
	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	s1.Close()

	// Reopen database
	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	// Verify we can query it
	var count int
	err = s2.db.QueryRow("SELECT COUNT(*) FROM instances").Scan(&count)
	if err != nil {
		t.Errorf("query failed: %v", err)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	// Open multiple times
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	// Final open should work
	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	// Verify schema is intact
	tables := []string{"instances", "instance_notes", "coverage_requests"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	// Try to open in non-existent directory
	path := "/nonexistent/dir/test.db"

	_, err := Open(path)
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	err := s.Close()
	if err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestClose_MultipleCalls(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}

	// First close should succeed
	if err := s.Close(); err != nil {
		t.Errorf("first Close() failed: %v", err)
	}

	// Second close should not panic (though may error)
	// We just verify it doesn't panic
	_ = s.Close()
}

// Pragma tests

func TestPragma_JournalMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
}

func TestPragma_Synchronous(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// NORMAL = 1
	if err := s.verifyPragma("synchronous", "1"); err != nil {
		t.Error(err)
	}
}

func TestPragma_BusyTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if err := s.verifyPragma("busy_timeout", "5000"); err != nil {
		t.Error(err)
	}
}

func TestPragma_ForeignKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// ON = 1
	if err := s.verifyPragma("foreign_keys", "1"); err != nil {
		t.Error(err)
	}
}

// Schema table tests

func TestSchema_InstancesTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "instances")
	expected := []string{
		"id", "entity_type", "entity_id", "date", "status", "assignee_override",
		"deferred_to", "completed_at", "skipped_at", "created_at", "updated_at",
	}
	for _, col := range expected {
		if !contains(columns, col) {
			t.Errorf("instances table missing column %q", col)
		}
	}
}

func TestSchema_NotesAndCoverageTables(t *testing.T) {
	s := createTestStore(t)

	for table, expected := range map[string][]string{
		"instance_notes":    {"id", "instance_id", "author", "body", "created_at"},
		"coverage_requests": {"id", "instance_id", "requested_by", "covered_by", "status", "requested_at", "responded_at"},
	} {
		columns := getTableColumns(t, s.db, table)
		for _, col := range expected {
			if !contains(columns, col) {
				t.Errorf("%s table missing column %q", table, col)
			}
		}
	}
}

func TestConstraint_InstancesUniqueKey(t *testing.T) {
	s := createTestStore(t)

	insert := `INSERT INTO instances (id, entity_type, entity_id, date, status, created_at, updated_at)
		VALUES (?, 'routine', 'vitamins', '2024-01-15', 'pending', 0, 0)`
	if _, err := s.db.Exec(insert, "inst-1"); err != nil {
		t.Fatalf("first insert failed: %v", err)
	}
	if _, err := s.db.Exec(insert, "inst-2"); err == nil {
		t.Error("expected UNIQUE violation for duplicate (entity_type, entity_id, date)")
	}
}

func TestConstraint_InstancesRejectUnknownStatus(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`INSERT INTO instances (id, entity_type, entity_id, date, status, created_at, updated_at)
		VALUES ('inst-1', 'routine', 'vitamins', '2024-01-15', 'postponed', 0, 0)`)
	if err == nil {
		t.Error("expected CHECK violation for unknown status")
	}
}

func TestConstraint_ForeignKeyNoteToInstance(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`INSERT INTO instance_notes (id, instance_id, author, body, created_at)
		VALUES ('note-1', 'missing', 'alice', 'hi', 0)`)
	if err == nil {
		t.Error("expected foreign key violation for note on missing instance")
	}
}

func TestMigration_SchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// Verify user_version is set to currentSchemaVersion
	var version int
	err = s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}

	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestMigration_V1DeferredIndexExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	indexes := getTableIndexes(t, s.db, "instances")
	if !contains(indexes, "idx_instances_deferred_to") {
		t.Errorf("instances table missing idx_instances_deferred_to, indexes: %v", indexes)
	}
}

func TestMigration_IdempotentUpgrade(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	// Open and close multiple times - migrations should be idempotent
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}

		// Verify version is correct each time
		var version int
		err = s.db.QueryRow("PRAGMA user_version").Scan(&version)
		if err != nil {
			t.Fatalf("failed to get user_version: %v", err)
		}

		if version != currentSchemaVersion {
			t.Errorf("iteration %d: user_version = %d, want %d", i, version, currentSchemaVersion)
		}

		s.Close()
	}
}

func TestMigration_UpgradeFromV0(t *testing.T) {
	// Simulate a pre-migration database (version 0)
	path := filepath.Join(t.TempDir(), "test.db")

	// Create database manually without migration
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}

	// Apply schema but NOT migrations (simulates pre-migration state)
	if _, err := db.Exec(schemaSQL); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}

	// Set version to 0 explicitly (pre-migration)
	if _, err := db.Exec("PRAGMA user_version = 0"); err != nil {
		t.Fatalf("failed to set user_version: %v", err)
	}
	db.Close()

	// Now open through our normal path - should trigger migration
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	// Verify version was upgraded
	var version int
	err = s.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}

	if version != currentSchemaVersion {
		t.Errorf("user_version = %d, want %d after migration", version, currentSchemaVersion)
	}

	indexes := getTableIndexes(t, s.db, "instances")
	if !contains(indexes, "idx_instances_deferred_to") {
		t.Errorf("expected idx_instances_deferred_to after migration, got indexes: %v", indexes)
	}
}

// Helper functions

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
