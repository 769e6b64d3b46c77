// Package history records index mutations in a SQLite audit log.
//
// Every mutating command opens a run, records the change set produced by
// the merge, and closes the run with a status. The log is append only and
// lives next to the manifests inside the state directory.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"volsegsync/internal/errs"
	"volsegsync/internal/index"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema
// changes; stale databases are reported rather than migrated in place.
const schemaVersion = 1

// Run statuses recorded in the runs table.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Run is one recorded invocation of a mutating command.
type Run struct {
	ID         string
	Command    string
	Index      string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Detail     string
}

// Change is one recorded index mutation belonging to a run.
type Change struct {
	RunID      string
	Subject    string
	Kind       string
	Detail     string
	RecordedAt time.Time
}

// Store manages the audit log backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errs.Wrap(nil, "history", "open", "open sqlite db", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, errs.Wrap(nil, "history", "open", fmt.Sprintf("apply pragma %q", pragma), execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return errs.Wrap(nil, "history", "init", "check schema_version table", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return errs.Wrap(nil, "history", "init", "read schema version", err)
	}
	if version != schemaVersion {
		return errs.Wrap(errs.ErrConfiguration, "history", "init",
			fmt.Sprintf("history database has schema version %d, expected %d (delete %s to reset)", version, schemaVersion, s.path), nil)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(nil, "history", "init", "begin schema tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return errs.Wrap(nil, "history", "init", "create schema", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return errs.Wrap(nil, "history", "init", "record schema version", err)
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(nil, "history", "init", "commit schema", err)
	}
	return nil
}

// BeginRun opens a run for command against the named index and returns its ID.
func (s *Store) BeginRun(ctx context.Context, command, indexName string) (string, error) {
	id := uuid.NewString()
	started := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, command, index_name, started_at, status) VALUES (?, ?, ?, ?, ?)",
		id, command, indexName, started, StatusRunning)
	if err != nil {
		return "", errs.Wrap(nil, "history", "begin-run", "insert run", err)
	}
	return id, nil
}

// FinishRun marks the run with a terminal status and optional detail.
func (s *Store) FinishRun(ctx context.Context, runID, status, detail string) error {
	finished := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		"UPDATE runs SET finished_at = ?, status = ?, detail = ? WHERE id = ?",
		finished, status, detail, runID)
	if err != nil {
		return errs.Wrap(nil, "history", "finish-run", "update run", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errs.Wrap(nil, "history", "finish-run", "rows affected", err)
	}
	if affected == 0 {
		return errs.Wrap(errs.ErrNotFound, "history", "finish-run", fmt.Sprintf("run %s not found", runID), nil)
	}
	return nil
}

// RecordChanges stores every change from a merge change set under runID.
func (s *Store) RecordChanges(ctx context.Context, runID string, changes []index.Change) error {
	if len(changes) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errs.Wrap(nil, "history", "record-changes", "begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	recorded := time.Now().UTC().Format(time.RFC3339Nano)
	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO changes (run_id, subject, kind, detail, recorded_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return errs.Wrap(nil, "history", "record-changes", "prepare insert", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, change := range changes {
		if _, err := stmt.ExecContext(ctx, runID, change.Subject, string(change.Kind), change.Detail, recorded); err != nil {
			return errs.Wrap(nil, "history", "record-changes", fmt.Sprintf("insert change for %s", change.Subject), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errs.Wrap(nil, "history", "record-changes", "commit", err)
	}
	return nil
}

// Runs returns the most recent runs, newest first. A limit of zero or less
// returns everything.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := "SELECT id, command, index_name, started_at, finished_at, status, detail FROM runs ORDER BY started_at DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(nil, "history", "runs", "query runs", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var (
			run      Run
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.Command, &run.Index, &started, &finished, &run.Status, &run.Detail); err != nil {
			return nil, errs.Wrap(nil, "history", "runs", "scan run", err)
		}
		run.StartedAt = parseTimestamp(started)
		if finished.Valid {
			run.FinishedAt = parseTimestamp(finished.String)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(nil, "history", "runs", "iterate runs", err)
	}
	return runs, nil
}

// Changes returns the changes recorded under runID in insertion order.
func (s *Store) Changes(ctx context.Context, runID string) ([]Change, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT run_id, subject, kind, detail, recorded_at FROM changes WHERE run_id = ? ORDER BY id",
		runID)
	if err != nil {
		return nil, errs.Wrap(nil, "history", "changes", "query changes", err)
	}
	defer func() { _ = rows.Close() }()

	var changes []Change
	for rows.Next() {
		var (
			change   Change
			recorded string
		)
		if err := rows.Scan(&change.RunID, &change.Subject, &change.Kind, &change.Detail, &recorded); err != nil {
			return nil, errs.Wrap(nil, "history", "changes", "scan change", err)
		}
		change.RecordedAt = parseTimestamp(recorded)
		changes = append(changes, change)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Wrap(nil, "history", "changes", "iterate changes", err)
	}
	return changes, nil
}

func parseTimestamp(value string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return ts
}
