package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/willibrandon/rdsprobe/internal/db/models"
)

const timeLayout = "2006-01-02 15:04:05.000"

// RunStore records invocations for the history command.
type RunStore struct {
	db *DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// RecordRun inserts a run. A run recorded twice keeps its first row.
func (s *RunStore) RecordRun(ctx context.Context, run models.Run) error {
	_, err := s.db.conn.ExecContext(ctx, `
		INSERT OR IGNORE INTO runs (
			id, operation, target, auth_mode, proxied, tls,
			outcome, status_code, body, error, started_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Operation, run.Target, run.AuthMode, run.Proxied, run.TLS,
		string(run.Outcome), run.StatusCode, run.Body, run.Error,
		run.StartedAt.UTC().Format(timeLayout), run.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", run.ID, err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *RunStore) RecentRuns(ctx context.Context, limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.conn.QueryContext(ctx, `
		SELECT id, operation, target, auth_mode, proxied, tls,
		       outcome, status_code, body, error, started_at, duration_ms
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.Run
	for rows.Next() {
		var (
			r          models.Run
			outcome    string
			startedAt  string
			durationMs int64
		)
		if err := rows.Scan(&r.ID, &r.Operation, &r.Target, &r.AuthMode, &r.Proxied, &r.TLS,
			&outcome, &r.StatusCode, &r.Body, &r.Error, &startedAt, &durationMs); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.Outcome = models.Outcome(outcome)
		r.StartedAt, err = parseTime(startedAt)
		if err != nil {
			return nil, err
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Prune removes runs older than retention.
func (s *RunStore) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).UTC().Format(timeLayout)
	result, err := s.db.conn.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return result.RowsAffected()
}

// parseTime accepts both the stored layout and RFC3339, which the driver
// returns when _loc=auto converts a DATETIME column.
func parseTime(s string) (time.Time, error) {
	for _, layout := range []string{timeLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("failed to parse run time %q", s)
}
