// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger records pipeline runs and per-stage outcomes in a SQLite
// or PostgreSQL database so past runs can be inspected.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/pdiddy/reaction-engine/internal/sqldb"
	"github.com/pdiddy/reaction-engine/pkg/types"
)

// ErrNotFound is returned when no run matches an id.
var ErrNotFound = errors.New("run not found")

// Ledger is the run history database.
type Ledger struct {
	db *sql.DB
	d  sqldb.Dialect
}

// Open opens or creates the ledger. For the sqlite3 driver dsn is a file
// path.
func Open(ctx context.Context, driver, dsn string) (*Ledger, error) {
	db, d, err := sqldb.Open(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}
	l := &Ledger{db: db, d: d}
	if err := l.createSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createSchema(ctx context.Context) error {
	return sqldb.Exec(ctx, l.db,
		`CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			plan TEXT NOT NULL,
			policy TEXT NOT NULL,
			status TEXT NOT NULL,
			started_at TEXT NOT NULL,
			finished_at TEXT
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS stage_outcomes (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			stage TEXT NOT NULL,
			status TEXT NOT NULL,
			failure_kind TEXT,
			message TEXT,
			outputs TEXT,
			warnings TEXT,
			started_at TEXT NOT NULL,
			duration_ms %s NOT NULL,
			PRIMARY KEY (run_id, position)
		)`, l.d.BigInt),
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_stage_outcomes_stage ON stage_outcomes(stage)`,
	)
}

// BeginRun inserts a run row.
func (l *Ledger) BeginRun(ctx context.Context, run types.PipelineRun) error {
	_, err := l.db.ExecContext(ctx, l.d.Rebind(
		`INSERT INTO runs (id, plan, policy, status, started_at) VALUES (?, ?, ?, ?, ?)`),
		run.ID, run.Plan, string(run.Policy), string(run.Status), formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}
	return nil
}

// RecordStage appends one stage outcome to its run.
func (l *Ledger) RecordStage(ctx context.Context, o types.StageOutcome) error {
	outputs, err := json.Marshal(o.Outputs)
	if err != nil {
		return fmt.Errorf("marshaling outputs: %w", err)
	}
	warnings, err := json.Marshal(o.Warnings)
	if err != nil {
		return fmt.Errorf("marshaling warnings: %w", err)
	}
	_, err = l.db.ExecContext(ctx, l.d.Rebind(`INSERT INTO stage_outcomes
		(run_id, position, stage, status, failure_kind, message, outputs, warnings, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		o.RunID, o.Position, o.Stage, string(o.Status), string(o.FailureKind), o.Message,
		string(outputs), string(warnings), formatTime(o.StartedAt), o.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("inserting outcome of %s: %w", o.Stage, err)
	}
	return nil
}

// FinishRun stores the final status of a run.
func (l *Ledger) FinishRun(ctx context.Context, run types.PipelineRun) error {
	res, err := l.db.ExecContext(ctx, l.d.Rebind(
		`UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`),
		string(run.Status), formatTime(run.FinishedAt), run.ID,
	)
	if err != nil {
		return fmt.Errorf("updating run %s: %w", run.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, run.ID)
	}
	return nil
}

const runColumns = `id, plan, policy, status, started_at, finished_at`

func scanRun(row interface{ Scan(...any) error }) (types.PipelineRun, error) {
	var (
		run      types.PipelineRun
		policy   string
		status   string
		started  string
		finished sql.NullString
	)
	if err := row.Scan(&run.ID, &run.Plan, &policy, &status, &started, &finished); err != nil {
		return types.PipelineRun{}, err
	}
	run.Policy = types.ResumePolicy(policy)
	run.Status = types.RunStatus(status)
	run.StartedAt = parseTime(started)
	run.FinishedAt = parseTime(finished.String)
	return run, nil
}

// Runs returns the most recent runs first, without stage outcomes. A
// limit of zero or less returns every run.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]types.PipelineRun, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := l.db.QueryContext(ctx, l.d.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var out []types.PipelineRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

// Run returns one run with its stage outcomes. id may be an unambiguous
// prefix of the run id, matched literally.
func (l *Ledger) Run(ctx context.Context, id string) (types.PipelineRun, error) {
	if id == "" {
		return types.PipelineRun{}, fmt.Errorf("%w: empty id", ErrNotFound)
	}
	rows, err := l.db.QueryContext(ctx, l.d.Rebind(`SELECT `+runColumns+` FROM runs WHERE substr(id, 1, ?) = ? ORDER BY id LIMIT 2`),
		utf8.RuneCountInString(id), id)
	if err != nil {
		return types.PipelineRun{}, fmt.Errorf("reading run %s: %w", id, err)
	}
	var matches []types.PipelineRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return types.PipelineRun{}, fmt.Errorf("scanning run: %w", err)
		}
		matches = append(matches, run)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return types.PipelineRun{}, fmt.Errorf("reading run %s: %w", id, err)
	}

	switch len(matches) {
	case 0:
		return types.PipelineRun{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
	default:
		if matches[0].ID != id {
			return types.PipelineRun{}, fmt.Errorf("run id %q is ambiguous", id)
		}
	}
	run := matches[0]
	run.Stages, err = l.outcomes(ctx, run.ID)
	if err != nil {
		return types.PipelineRun{}, err
	}
	return run, nil
}

func (l *Ledger) outcomes(ctx context.Context, runID string) ([]types.StageOutcome, error) {
	rows, err := l.db.QueryContext(ctx, l.d.Rebind(`SELECT
		position, stage, status, failure_kind, message, outputs, warnings, started_at, duration_ms
		FROM stage_outcomes WHERE run_id = ? ORDER BY position`), runID)
	if err != nil {
		return nil, fmt.Errorf("reading outcomes of %s: %w", runID, err)
	}
	defer rows.Close()

	var out []types.StageOutcome
	for rows.Next() {
		var (
			o                 types.StageOutcome
			status            string
			failure, message  sql.NullString
			outputs, warnings sql.NullString
			started           string
			durationMS        int64
		)
		if err := rows.Scan(&o.Position, &o.Stage, &status, &failure, &message, &outputs, &warnings, &started, &durationMS); err != nil {
			return nil, fmt.Errorf("scanning outcome: %w", err)
		}
		o.RunID = runID
		o.Status = types.StageStatus(status)
		o.FailureKind = types.FailureKind(failure.String)
		o.Message = message.String
		o.StartedAt = parseTime(started)
		o.Duration = time.Duration(durationMS) * time.Millisecond
		if err := unmarshalList(outputs, &o.Outputs); err != nil {
			return nil, fmt.Errorf("decoding outputs of %s: %w", o.Stage, err)
		}
		if err := unmarshalList(warnings, &o.Warnings); err != nil {
			return nil, fmt.Errorf("decoding warnings of %s: %w", o.Stage, err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// StageHistory returns the outcomes recorded for a stage name across all
// runs, newest first.
func (l *Ledger) StageHistory(ctx context.Context, stage string, limit int) ([]types.StageOutcome, error) {
	query := `SELECT o.run_id, o.position, o.status, o.failure_kind, o.message, o.started_at, o.duration_ms
		FROM stage_outcomes o WHERE o.stage = ? ORDER BY o.started_at DESC`
	args := []any{stage}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := l.db.QueryContext(ctx, l.d.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("reading history of %s: %w", stage, err)
	}
	defer rows.Close()

	var out []types.StageOutcome
	for rows.Next() {
		var (
			o                types.StageOutcome
			status           string
			failure, message sql.NullString
			started          string
			durationMS       int64
		)
		if err := rows.Scan(&o.RunID, &o.Position, &status, &failure, &message, &started, &durationMS); err != nil {
			return nil, fmt.Errorf("scanning outcome: %w", err)
		}
		o.Stage = stage
		o.Status = types.StageStatus(status)
		o.FailureKind = types.FailureKind(failure.String)
		o.Message = message.String
		o.StartedAt = parseTime(started)
		o.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, o)
	}
	return out, rows.Err()
}

func unmarshalList(s sql.NullString, out *[]string) error {
	if !s.Valid || s.String == "" || s.String == "null" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), out)
}

// timeLayout has a fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeLayout, s)
	return t
}
