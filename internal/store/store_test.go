package store

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"snapshots", "actions", "heads"} {
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

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	if err := s.verifyPragma("journal_mode", "wal"); err != nil {
		t.Error(err)
	}
	if err := s.verifyPragma("user_version", "1"); err != nil {
		t.Error(err)
	}
}

func TestOpen_MigratesVersionZeroHeads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "old.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("sql.Open() failed: %v", err)
	}
	_, err = db.Exec(`CREATE TABLE heads (game_id TEXT PRIMARY KEY, head TEXT NOT NULL, count INTEGER NOT NULL)`)
	if err != nil {
		t.Fatalf("create old table: %v", err)
	}
	_, err = db.Exec(`INSERT INTO heads (game_id, head, count) VALUES ('g1', 'a1', 1)`)
	if err != nil {
		t.Fatalf("seed old table: %v", err)
	}
	db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() on v0 database failed: %v", err)
	}
	defer s.Close()

	var updated int64
	if err := s.db.QueryRow(`SELECT updated_at FROM heads WHERE game_id = 'g1'`).Scan(&updated); err != nil {
		t.Fatalf("updated_at missing after migration: %v", err)
	}
	if updated != 0 {
		t.Errorf("updated_at = %d, want 0", updated)
	}
}
