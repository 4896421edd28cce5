package testing

import (
	"database/sql"
	"testing"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aristath/splitrelay/internal/database"
)

// NewTestDB opens an in-memory SQLite database (mattn driver) with the embedded schema of
// name applied the way Migrate applies it ("registry" or "portfolio"). The connection is closed when the test ends.
func NewTestDB(t *testing.T, name string) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=1")
	if err != nil {
		t.Fatalf("Failed to open test database %s: %v", name, err)
	}
	// A single connection keeps the in-memory database alive and private to the test
	db.SetMaxOpenConns(1)

	if err := database.ApplySchema(db, name, database.DialectSQLite); err != nil {
		_ = db.Close()
		t.Fatalf("Failed to apply schema %s: %v", name, err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: Failed to close test database %s: %v", name, err)
		}
	})
	return db
}
