package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/unearth-dev/unearth/internal/canonical"
	"github.com/unearth-dev/unearth/internal/pipeline"
	"github.com/unearth-dev/unearth/internal/storage"
)

// BeginRun opens a new run row and returns its token. The flavor set is
// serialized canonically so identical configurations compare equal as text.
func (l *Ledger) BeginRun(ctx context.Context, flavors storage.Flavors) (string, error) {
	flavorsJSON, err := canonical.Marshal(map[string]any{
		"mappings":   flavors.Mappings,
		"signatures": flavors.Signatures,
		"unpick":     flavors.Unpick,
		"nests":      flavors.Nests,
	})
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}

	id := uuid.NewString()
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO runs (id, flavors) VALUES (?, ?)
	`, id, string(flavorsJSON))
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	return id, nil
}

// RecordStep writes one (release, step) outcome for a run. Idempotent:
// re-recording the same triple is silently ignored, so a retried recording
// pass never duplicates rows.
func (l *Ledger) RecordStep(ctx context.Context, runID, release, step string, outcome pipeline.Outcome) error {
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO step_records (run_id, release, step, outcome)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, release, step) DO NOTHING
	`, runID, release, step, outcome.String())
	if err != nil {
		return fmt.Errorf("record step: %w", err)
	}
	return nil
}

// FinishRun stamps the run's aggregate outcome and finish time.
func (l *Ledger) FinishRun(ctx context.Context, runID string, outcome pipeline.Outcome) error {
	_, err := l.db.ExecContext(ctx, `
		UPDATE runs SET outcome = ?, finished_at = CURRENT_TIMESTAMP WHERE id = ?
	`, outcome.String(), runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// RecordRun persists a completed run in one transaction: every release's
// step outcomes plus the aggregate. Returns the run token.
func (l *Ledger) RecordRun(ctx context.Context, flavors storage.Flavors, result *pipeline.RunResult) (string, error) {
	runID, err := l.BeginRun(ctx, flavors)
	if err != nil {
		return "", err
	}

	aggregate := pipeline.OutcomeNotRun
	for _, rel := range result.Releases() {
		aggregate = aggregate.Merge(rel.Outcome)
		for _, step := range rel.Steps {
			if err := l.RecordStep(ctx, runID, rel.Release.Name(), step.Worker, step.Outcome); err != nil {
				return runID, err
			}
		}
	}

	if err := l.FinishRun(ctx, runID, aggregate); err != nil {
		return runID, err
	}
	return runID, nil
}
