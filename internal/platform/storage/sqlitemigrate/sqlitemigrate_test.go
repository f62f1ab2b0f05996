package sqlitemigrate

import (
	"database/sql"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", t.TempDir()+"/migrate.db")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestApplyMigrations(t *testing.T) {
	db := openDB(t)
	migrationFS := fstest.MapFS{
		"0001_init.sql": &fstest.MapFile{
			Data: []byte(`CREATE TABLE widgets (id TEXT PRIMARY KEY);`),
		},
		"0002_more.sql": &fstest.MapFile{
			Data: []byte(`ALTER TABLE widgets ADD COLUMN name TEXT;`),
		},
		"notes.txt": &fstest.MapFile{Data: []byte("ignored")},
	}

	if err := ApplyMigrations(db, migrationFS); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if _, err := db.Exec(`INSERT INTO widgets (id, name) VALUES ('w1', 'one')`); err != nil {
		t.Fatalf("schema incomplete: %v", err)
	}

	var applied int
	if err := db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if applied != 2 {
		t.Errorf("applied = %d, want 2", applied)
	}
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	db := openDB(t)
	migrationFS := fstest.MapFS{
		"0001_init.sql": &fstest.MapFile{
			Data: []byte(`CREATE TABLE widgets (id TEXT PRIMARY KEY);`),
		},
	}

	if err := ApplyMigrations(db, migrationFS); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if err := ApplyMigrations(db, migrationFS); err != nil {
		t.Fatalf("second apply: %v", err)
	}
}

func TestApplyMigrationsRequiresDB(t *testing.T) {
	if err := ApplyMigrations(nil, fstest.MapFS{}); err == nil {
		t.Error("expected an error for nil db")
	}
}
