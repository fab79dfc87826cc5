package ledger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unearth-dev/unearth/internal/pipeline"
	"github.com/unearth-dev/unearth/internal/storage"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")

	l, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, l.Close())

	// Re-opening an existing database applies schema and migrations again.
	l, err = Open(path)
	require.NoError(t, err)
	defer l.Close()

	var version int
	require.NoError(t, l.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestOpen_AppliesPragmas(t *testing.T) {
	l := openTestLedger(t)

	var journal string
	require.NoError(t, l.db.QueryRow("PRAGMA journal_mode").Scan(&journal))
	assert.Equal(t, "wal", journal)

	var fk int
	require.NoError(t, l.db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)
}

func TestRecordAndReadBack(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	runID, err := l.BeginRun(ctx, storage.Flavors{Mappings: "sparrow"})
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	require.NoError(t, l.RecordStep(ctx, runID, "1.14.4", "fetch", pipeline.OutcomeSuccess))
	require.NoError(t, l.RecordStep(ctx, runID, "1.14.4", "merge", pipeline.OutcomeUpToDate))
	require.NoError(t, l.RecordStep(ctx, runID, "1.15", "fetch", pipeline.OutcomeFailed))
	require.NoError(t, l.FinishRun(ctx, runID, pipeline.OutcomeFailed))

	runs, err := l.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, runID, runs[0].ID)
	assert.Equal(t, "failed", runs[0].Outcome)
	assert.NotNil(t, runs[0].FinishedAt)
	assert.JSONEq(t, `{"mappings":"sparrow","nests":"","signatures":"","unpick":""}`, runs[0].Flavors)

	steps, err := l.Steps(ctx, runID)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, "fetch", steps[0].Step)
	assert.Equal(t, pipeline.OutcomeSuccess, steps[0].Outcome)
	assert.Equal(t, "1.15", steps[2].Release)
	assert.Equal(t, pipeline.OutcomeFailed, steps[2].Outcome)
}

func TestRecordStep_Idempotent(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	runID, err := l.BeginRun(ctx, storage.Flavors{})
	require.NoError(t, err)

	require.NoError(t, l.RecordStep(ctx, runID, "1.0", "fetch", pipeline.OutcomeSuccess))
	require.NoError(t, l.RecordStep(ctx, runID, "1.0", "fetch", pipeline.OutcomeSuccess))

	steps, err := l.Steps(ctx, runID)
	require.NoError(t, err)
	assert.Len(t, steps, 1)
}

func TestReleaseHistory_SpansRuns(t *testing.T) {
	ctx := context.Background()
	l := openTestLedger(t)

	first, err := l.BeginRun(ctx, storage.Flavors{})
	require.NoError(t, err)
	require.NoError(t, l.RecordStep(ctx, first, "1.0", "fetch", pipeline.OutcomeFailed))
	require.NoError(t, l.FinishRun(ctx, first, pipeline.OutcomeFailed))

	second, err := l.BeginRun(ctx, storage.Flavors{})
	require.NoError(t, err)
	require.NoError(t, l.RecordStep(ctx, second, "1.0", "fetch", pipeline.OutcomeSuccess))
	require.NoError(t, l.RecordStep(ctx, second, "2.0", "fetch", pipeline.OutcomeSuccess))
	require.NoError(t, l.FinishRun(ctx, second, pipeline.OutcomeSuccess))

	history, err := l.ReleaseHistory(ctx, "1.0")
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, h := range history {
		assert.Equal(t, "1.0", h.Release)
	}
}

func TestSteps_UnknownRunIsEmpty(t *testing.T) {
	l := openTestLedger(t)

	steps, err := l.Steps(context.Background(), "no-such-run")
	require.NoError(t, err)
	assert.Empty(t, steps)
}
