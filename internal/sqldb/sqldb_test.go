// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package sqldb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRebind(t *testing.T) {
	pg, err := DialectFor(DriverPostgres)
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1 WHERE a = $1 AND b = $2", pg.Rebind("SELECT 1 WHERE a = ? AND b = ?"))
	assert.Equal(t, "BYTEA", pg.Blob)

	lite, err := DialectFor(DriverSQLite)
	require.NoError(t, err)
	assert.Equal(t, "a = ?", lite.Rebind("a = ?"))

	_, err = DialectFor("mysql")
	assert.Error(t, err)
}

func TestOpen_SQLiteCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	db, d, err := Open(context.Background(), DriverSQLite, path)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, DriverSQLite, d.Driver)

	require.NoError(t, Exec(context.Background(), db,
		`CREATE TABLE t (id INTEGER PRIMARY KEY, ok INTEGER)`,
		`INSERT INTO t (id, ok) VALUES (1, 1)`,
	))
	var ok int
	require.NoError(t, db.QueryRow(`SELECT ok FROM t WHERE id = 1`).Scan(&ok))
	assert.Equal(t, BoolInt(true), ok)
	assert.Equal(t, 0, BoolInt(false))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, _, err := Open(context.Background(), "oracle", "x")
	assert.Error(t, err)
}
