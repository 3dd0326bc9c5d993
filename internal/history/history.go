// Package history keeps a durable record of jobs the pipeline has already
// finished, so repeated runs over the same feed skip work instead of
// re-calling the AI service. It is separate from the tracker CSV: the
// tracker is the human-facing log, history is the machine-facing dedupe
// index.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/applypilot/applypilot/internal/job"
)

type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

func Open(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("history path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create history dir %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS processed_jobs (
		job_id     TEXT PRIMARY KEY,
		status     TEXT NOT NULL,
		reason     TEXT,
		fit_score  REAL,
		updated_at TEXT NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("init history schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Seen reports whether a job already has a terminal outcome. Jobs that
// ended in "error" are not terminal: a later run should retry them.
func (s *Store) Seen(ctx context.Context, jobID string) (bool, error) {
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM processed_jobs WHERE job_id = ?`, jobID,
	).Scan(&status)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("history lookup %s: %w", jobID, err)
	}
	return job.Status(status) != job.StatusError, nil
}

// Record upserts the outcome for a job.
func (s *Store) Record(ctx context.Context, outcome *job.Outcome) error {
	var score any
	if outcome.HasScore {
		score = outcome.FitScore
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO processed_jobs (job_id, status, reason, fit_score, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(job_id) DO UPDATE SET
			status = excluded.status,
			reason = excluded.reason,
			fit_score = excluded.fit_score,
			updated_at = excluded.updated_at`,
		outcome.JobID, string(outcome.Status), outcome.Reason, score,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("history record %s: %w", outcome.JobID, err)
	}

	s.logger.Debug("history updated",
		zap.String("job_id", outcome.JobID),
		zap.String("status", string(outcome.Status)),
	)
	return nil
}
