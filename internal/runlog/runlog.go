// Package runlog persists completed assignment runs. A run mutates
// upstream tickets chunk by chunk with no rollback, so the stored
// result is the only durable record of a partially failed run.
package runlog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/videodesk-io/videodesk/pkg/triage"
)

// SQLiteStore records run results in SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the run log database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("run log: open: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("run log: wal: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			run_id      TEXT PRIMARY KEY,
			view_id     INTEGER NOT NULL,
			field_id    INTEGER NOT NULL,
			total       INTEGER NOT NULL,
			failed_jobs INTEGER NOT NULL,
			result      TEXT NOT NULL,
			started_at  TEXT NOT NULL,
			finished_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`)
	if err != nil {
		return fmt.Errorf("run log: migrate: %w", err)
	}
	return nil
}

// Save records a finished run.
func (s *SQLiteStore) Save(res *triage.RunResult) error {
	blob, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("run log: marshal: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO runs (run_id, view_id, field_id, total, failed_jobs, result, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, res.RunID, res.ViewID, res.FieldID, res.Total, res.FailedJobs(), string(blob),
		res.StartedAt.Format(time.RFC3339), res.FinishedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("run log: save: %w", err)
	}
	return nil
}

// List returns run results newest first, up to limit (0 = no limit).
func (s *SQLiteStore) List(limit int) ([]*triage.RunResult, error) {
	query := `SELECT result FROM runs ORDER BY started_at DESC, run_id`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("run log: list: %w", err)
	}
	defer rows.Close()

	var results []*triage.RunResult
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("run log: list scan: %w", err)
		}
		var res triage.RunResult
		if err := json.Unmarshal([]byte(blob), &res); err != nil {
			return nil, fmt.Errorf("run log: decode %w", err)
		}
		results = append(results, &res)
	}
	return results, rows.Err()
}

// Get returns one run result by id.
func (s *SQLiteStore) Get(runID string) (*triage.RunResult, error) {
	var blob string
	err := s.db.QueryRow(`SELECT result FROM runs WHERE run_id = ?`, runID).Scan(&blob)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run %q not found", runID)
		}
		return nil, fmt.Errorf("run log: get: %w", err)
	}

	var res triage.RunResult
	if err := json.Unmarshal([]byte(blob), &res); err != nil {
		return nil, fmt.Errorf("run log: decode: %w", err)
	}
	return &res, nil
}

// Close releases the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
