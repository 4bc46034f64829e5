// Package history is a SQLite-backed record of past sweeps, enabled only
// when history_file is configured.
package history

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/3cpo-dev/nodesync/internal/core"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Store persists one row per run and one row per attempted operation.
type Store struct {
	db    *sql.DB
	runID int64
}

// Open opens (creating if needed) the history database at path and starts a
// new run row.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	if err := s.beginRun(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema, err := migrationFS.ReadFile("migrations/0001_init.sql")
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("apply migration: %w", err)
	}
	return nil
}

func (s *Store) beginRun() error {
	res, err := s.db.Exec(`INSERT INTO runs (started_at) VALUES (?)`,
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	s.runID, err = res.LastInsertId()
	return err
}

// Record implements core.Recorder.
func (s *Store) Record(ctx context.Context, op core.Operation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO operations (run_id, node, kind, target, ok) VALUES (?, ?, ?, ?, ?)`,
		s.runID, op.Node, op.Kind, op.Target, op.OK)
	return err
}

// Close stamps the run as finished and closes the database.
func (s *Store) Close() error {
	_, err := s.db.Exec(`UPDATE runs SET finished_at = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339), s.runID)
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	return err
}

// RunCount reports how many runs the database holds.
func (s *Store) RunCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n)
	return n, err
}

// OperationCount reports how many operations were recorded for the current
// run.
func (s *Store) OperationCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM operations WHERE run_id = ?`, s.runID).Scan(&n)
	return n, err
}
