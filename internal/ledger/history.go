package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/unearth-dev/unearth/internal/pipeline"
)

// RunSummary is one row of run history.
type RunSummary struct {
	ID         string
	StartedAt  time.Time
	FinishedAt *time.Time
	Flavors    string
	Outcome    string
}

// StepHistory is one recorded (release, step) outcome.
type StepHistory struct {
	Release    string
	Step       string
	Outcome    pipeline.Outcome
	RecordedAt time.Time
}

// Runs returns the most recent runs, newest first.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit < 1 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, flavors, COALESCE(outcome, '')
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		var finished sql.NullTime
		if err := rows.Scan(&s.ID, &s.StartedAt, &finished, &s.Flavors, &s.Outcome); err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		if finished.Valid {
			t := finished.Time
			s.FinishedAt = &t
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Steps returns a run's recorded step outcomes ordered by insertion.
func (l *Ledger) Steps(ctx context.Context, runID string) ([]StepHistory, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT release, step, outcome, recorded_at
		FROM step_records
		WHERE run_id = ?
		ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("run steps: %w", err)
	}
	defer rows.Close()

	return scanSteps(rows)
}

// ReleaseHistory returns every recorded step outcome for one release across
// all runs, newest run first.
func (l *Ledger) ReleaseHistory(ctx context.Context, release string) ([]StepHistory, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT s.release, s.step, s.outcome, s.recorded_at
		FROM step_records s
		JOIN runs r ON r.id = s.run_id
		WHERE s.release = ?
		ORDER BY r.started_at DESC, s.id
	`, release)
	if err != nil {
		return nil, fmt.Errorf("release history: %w", err)
	}
	defer rows.Close()

	return scanSteps(rows)
}

func scanSteps(rows *sql.Rows) ([]StepHistory, error) {
	var out []StepHistory
	for rows.Next() {
		var h StepHistory
		var outcome string
		if err := rows.Scan(&h.Release, &h.Step, &outcome, &h.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan step record: %w", err)
		}
		parsed, ok := pipeline.ParseOutcome(outcome)
		if !ok {
			return nil, fmt.Errorf("scan step record: unknown outcome %q", outcome)
		}
		h.Outcome = parsed
		out = append(out, h)
	}
	return out, rows.Err()
}
