package database

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_MigrateAndHealth(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"registry", "portfolio"} {
		t.Run(name, func(t *testing.T) {
			db, err := New(Config{Path: filepath.Join(dir, "sub", name+".db"), Profile: ProfileStandard, Name: name})
			require.NoError(t, err)
			defer db.Close()

			assert.Equal(t, DialectSQLite, db.Dialect())
			require.NoError(t, db.Migrate())
			require.NoError(t, db.Migrate(), "migrations are repeatable")

			require.NoError(t, db.HealthCheck(context.Background()))
			require.NoError(t, db.WALCheckpoint("PASSIVE"))
			assert.Error(t, db.WALCheckpoint("NOW"))

			stats, err := db.GetStats()
			require.NoError(t, err)
			assert.Greater(t, stats.PageCount, int64(0))
		})
	}
}

func TestSchema(t *testing.T) {
	s, err := Schema("registry", DialectSQLite)
	require.NoError(t, err)
	assert.Contains(t, s, "CREATE TABLE IF NOT EXISTS tasks")

	pg, err := Schema("registry", DialectPostgres)
	require.NoError(t, err)
	assert.Contains(t, pg, "BYTEA")

	_, err = Schema("unknown", DialectSQLite)
	assert.Error(t, err)
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements("-- comment\nCREATE TABLE a (x INT);\n\nCREATE INDEX i ON a(x);\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE INDEX i ON a(x)"}, stmts)

	stmts = splitStatements("-- rows; the worker owns status\nCREATE TABLE a (x INT);\n  -- trailing; note\n")
	assert.Equal(t, []string{"CREATE TABLE a (x INT)"}, stmts)
}

func TestEmbeddedSchemasSplitIntoStatements(t *testing.T) {
	for _, tc := range []struct {
		name    string
		dialect Dialect
	}{
		{"registry", DialectSQLite},
		{"registry", DialectPostgres},
		{"portfolio", DialectSQLite},
	} {
		content, err := Schema(tc.name, tc.dialect)
		require.NoError(t, err)
		for _, stmt := range splitStatements(content) {
			assert.Regexp(t, `^(CREATE|ALTER|INSERT)`, strings.TrimSpace(stmt), "%s/%s", tc.name, tc.dialect)
		}
	}
}

func TestRebind(t *testing.T) {
	q := "SELECT * FROM tasks WHERE owner = ? AND kind = ? LIMIT ?"
	assert.Equal(t, q, Rebind(DialectSQLite, q))
	assert.Equal(t, "SELECT * FROM tasks WHERE owner = $1 AND kind = $2 LIMIT $3", Rebind(DialectPostgres, q))
}

func TestIsPostgresDSN(t *testing.T) {
	assert.True(t, IsPostgresDSN("postgres://u:p@localhost/db"))
	assert.True(t, IsPostgresDSN("postgresql://localhost/db"))
	assert.False(t, IsPostgresDSN("./data/registry.db"))
	assert.False(t, IsPostgresDSN("file::memory:"))
}

func TestWithTransaction_RollsBackOnError(t *testing.T) {
	db, err := New(Config{Path: filepath.Join(t.TempDir(), "tx.db"), Name: "portfolio"})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())

	err = WithTransaction(db.Conn(), func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO lots (owner, code, sequence_number, price, quantity, opened_date, created_at)
			VALUES ('o', 'X', 1, 100, 1, '2026-01-01', 0)`)
		require.NoError(t, err)
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	var n int
	require.NoError(t, db.Conn().QueryRow("SELECT COUNT(*) FROM lots").Scan(&n))
	assert.Zero(t, n)
}
