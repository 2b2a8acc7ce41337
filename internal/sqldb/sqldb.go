// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package sqldb opens the SQLite and PostgreSQL databases used for
// checkpoints and run history and papers over their SQL differences.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Dialect captures the differences between the supported databases.
type Dialect struct {
	Driver string
	Blob   string
	Real   string
	BigInt string

	// numbered selects $1, $2 placeholders instead of ?.
	numbered bool
}

// DialectFor returns the dialect of a driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case DriverSQLite:
		return Dialect{Driver: driver, Blob: "BLOB", Real: "REAL", BigInt: "INTEGER"}, nil
	case DriverPostgres:
		return Dialect{Driver: driver, Blob: "BYTEA", Real: "DOUBLE PRECISION", BigInt: "BIGINT", numbered: true}, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Rebind rewrites ? placeholders for dialects with numbered parameters.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Open connects to the database and verifies the connection. For sqlite3
// dsn is a file path; its directory is created and WAL mode enabled.
func Open(ctx context.Context, driver, dsn string) (*sql.DB, Dialect, error) {
	d, err := DialectFor(driver)
	if err != nil {
		return nil, Dialect{}, err
	}
	if driver == DriverSQLite {
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, Dialect{}, fmt.Errorf("creating database directory: %w", err)
		}
		dsn += "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, Dialect{}, fmt.Errorf("opening database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, Dialect{}, fmt.Errorf("connecting to database: %w", err)
	}
	return db, d, nil
}

// Exec runs schema statements in order.
func Exec(ctx context.Context, db *sql.DB, statements ...string) error {
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// BoolInt encodes b for an INTEGER column.
func BoolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
