// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pdiddy/reaction-engine/internal/sqldb"
	"github.com/pdiddy/reaction-engine/pkg/types"
)

// Database drivers accepted by OpenSQL.
const (
	DriverSQLite   = sqldb.DriverSQLite
	DriverPostgres = sqldb.DriverPostgres
)

const sqliteFile = "checkpoints.db"

// SQLStore keeps checkpoints in a single table of a SQLite or PostgreSQL
// database. A save is one upsert, so a row is either fully present or
// absent.
type SQLStore struct {
	db    *sql.DB
	d     sqldb.Dialect
	codec *codec
}

// OpenSQL opens the database and creates the schema if needed. For the
// sqlite3 driver dsn is a file path. A zero compression level selects the
// default.
func OpenSQL(ctx context.Context, driver, dsn string, compression int) (*SQLStore, error) {
	c, err := newCodec(compression)
	if err != nil {
		return nil, err
	}
	db, d, err := sqldb.Open(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}

	s := &SQLStore{db: db, d: d, codec: c}
	if err := s.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) createSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS checkpoints (
		id TEXT PRIMARY KEY,
		stage TEXT NOT NULL,
		created_at TEXT NOT NULL,
		fingerprint TEXT,
		atoms INTEGER NOT NULL,
		energy %s NOT NULL,
		converged INTEGER NOT NULL,
		method TEXT,
		sha256 TEXT NOT NULL,
		size %s NOT NULL,
		payload %s NOT NULL
	)`, s.d.Real, s.d.BigInt, s.d.Blob)
	return sqldb.Exec(ctx, s.db, stmt)
}

func (s *SQLStore) Exists(ctx context.Context, id string) (bool, error) {
	if err := ValidateID(id); err != nil {
		return false, err
	}
	var one int
	err := s.db.QueryRowContext(ctx, s.d.Rebind(`SELECT 1 FROM checkpoints WHERE id = ?`), id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking checkpoint %s: %w", id, err)
	}
	return true, nil
}

func (s *SQLStore) Save(ctx context.Context, id string, state *types.SystemState, meta types.CheckpointMeta) (types.Checkpoint, error) {
	if err := ValidateID(id); err != nil {
		return types.Checkpoint{}, err
	}
	payload, sum, err := s.codec.encode(id, state)
	if err != nil {
		return types.Checkpoint{}, err
	}
	cp := manifest(id, state, meta, sum, len(payload))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Checkpoint{}, &PersistenceError{ID: id, Op: "save", Err: err}
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, s.d.Rebind(`INSERT INTO checkpoints
		(id, stage, created_at, fingerprint, atoms, energy, converged, method, sha256, size, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			stage = excluded.stage,
			created_at = excluded.created_at,
			fingerprint = excluded.fingerprint,
			atoms = excluded.atoms,
			energy = excluded.energy,
			converged = excluded.converged,
			method = excluded.method,
			sha256 = excluded.sha256,
			size = excluded.size,
			payload = excluded.payload`),
		cp.ID, cp.Stage, cp.CreatedAt.Format(time.RFC3339Nano), cp.Fingerprint,
		cp.Atoms, cp.Energy, sqldb.BoolInt(cp.Converged), cp.Method, cp.SHA256, cp.Size, payload,
	)
	if err != nil {
		return types.Checkpoint{}, &PersistenceError{ID: id, Op: "save", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return types.Checkpoint{}, &PersistenceError{ID: id, Op: "publish", Err: err}
	}
	return cp, nil
}

const manifestColumns = `id, stage, created_at, fingerprint, atoms, energy, converged, method, sha256, size`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanManifest(row rowScanner, extra ...any) (types.Checkpoint, error) {
	var (
		cp          types.Checkpoint
		created     string
		fingerprint sql.NullString
		method      sql.NullString
		converged   int
	)
	dest := append([]any{
		&cp.ID, &cp.Stage, &created, &fingerprint, &cp.Atoms,
		&cp.Energy, &converged, &method, &cp.SHA256, &cp.Size,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return types.Checkpoint{}, err
	}
	cp.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	cp.Fingerprint = fingerprint.String
	cp.Method = method.String
	cp.Converged = converged != 0
	return cp, nil
}

func (s *SQLStore) Stat(ctx context.Context, id string) (types.Checkpoint, error) {
	if err := ValidateID(id); err != nil {
		return types.Checkpoint{}, err
	}
	row := s.db.QueryRowContext(ctx, s.d.Rebind(`SELECT `+manifestColumns+` FROM checkpoints WHERE id = ?`), id)
	cp, err := scanManifest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Checkpoint{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return types.Checkpoint{}, fmt.Errorf("reading checkpoint %s: %w", id, err)
	}
	return cp, nil
}

func (s *SQLStore) Load(ctx context.Context, id string) (*types.SystemState, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	var payload []byte
	row := s.db.QueryRowContext(ctx, s.d.Rebind(`SELECT `+manifestColumns+`, payload FROM checkpoints WHERE id = ?`), id)
	cp, err := scanManifest(row, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint %s: %w", id, err)
	}
	return s.codec.decode(id, payload, cp.SHA256)
}

func (s *SQLStore) List(ctx context.Context) ([]types.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+manifestColumns+` FROM checkpoints ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing checkpoints: %w", err)
	}
	defer rows.Close()

	var out []types.Checkpoint
	for rows.Next() {
		cp, err := scanManifest(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning checkpoint: %w", err)
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, s.d.Rebind(`DELETE FROM checkpoints WHERE id = ?`), id)
	if err != nil {
		return &PersistenceError{ID: id, Op: "delete", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}
