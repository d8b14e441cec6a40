package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// CreateStoreFixture creates an on-disk store file with both Cursor
// key-value tables and returns its path. Callers pass a t.TempDir so the
// file is cleaned up with the test.
func CreateStoreFixture(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to create store fixture: %v", err)
	}
	defer db.Close()

	for _, stmt := range []string{
		`CREATE TABLE IF NOT EXISTS ItemTable (key TEXT UNIQUE ON CONFLICT REPLACE, value BLOB)`,
		`CREATE TABLE IF NOT EXISTS cursorDiskKV (key TEXT PRIMARY KEY, value TEXT)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to create fixture schema: %v", err)
		}
	}
	return path
}

// SeedItem inserts one ItemTable row into the store at path.
func SeedItem(t *testing.T, path, key, value string) {
	t.Helper()
	seed(t, path, "INSERT INTO ItemTable (key, value) VALUES (?, ?)", key, value)
}

// SeedKV inserts one cursorDiskKV row into the store at path.
func SeedKV(t *testing.T, path, key, value string) {
	t.Helper()
	seed(t, path, "INSERT INTO cursorDiskKV (key, value) VALUES (?, ?)", key, value)
}

func seed(t *testing.T, path, stmt, key, value string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open fixture for seeding: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(stmt, key, value); err != nil {
		t.Fatalf("failed to seed fixture: %v", err)
	}
}

// CreateEmptySchemaStore creates a store file with no Cursor tables at
// all, for schema-drift tests.
func CreateEmptySchemaStore(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE unrelated (id INTEGER PRIMARY KEY)`); err != nil {
		t.Fatalf("failed to create unrelated table: %v", err)
	}
	return path
}
