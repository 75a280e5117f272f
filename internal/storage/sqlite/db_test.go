package sqlite

import (
	"path/filepath"
	"testing"
	"testing/fstest"
)

func TestOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "gapcheck.db")
	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	if db.Path() != dbPath {
		t.Errorf("Path() = %q; want %q", db.Path(), dbPath)
	}

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %q; want wal", journalMode)
	}

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d; want 1", fk)
	}
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)

	version, err := db.Version()
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if version != 2 {
		t.Errorf("Version() = %d; want 2", version)
	}

	for _, table := range []string{"sessions", "reports"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := openTestDB(t)

	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}

	version, _ := db.Version()
	if version != 2 {
		t.Errorf("Version() = %d; want 2", version)
	}
}

func TestPendingMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"002_reports.sql":  {Data: []byte("B")},
		"001_sessions.sql": {Data: []byte("A")},
		"010_later.sql":    {Data: []byte("C")},
		"README.md":        {Data: []byte("ignored")},
		"notaversion.sql":  {Data: []byte("ignored")},
	}

	pending, err := pendingMigrations(fsys, 1)
	if err != nil {
		t.Fatalf("pendingMigrations() error = %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("len(pending) = %d; want 2", len(pending))
	}
	if pending[0].version != 2 || pending[1].version != 10 {
		t.Errorf("versions = %d, %d; want 2, 10", pending[0].version, pending[1].version)
	}
	if pending[0].sql != "B" {
		t.Errorf("pending[0].sql = %q; want B", pending[0].sql)
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name    string
		want    int
		wantErr bool
	}{
		{"001_sessions.sql", 1, false},
		{"002_reports.sql", 2, false},
		{"010_something.sql", 10, false},
		{"notaversion.sql", 0, true},
		{"abc_def.sql", 0, true},
	}
	for _, tt := range tests {
		got, err := parseVersion(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseVersion(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseVersion(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

// openTestDB is a helper that opens and migrates a test database.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenMigrated(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("OpenMigrated() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
