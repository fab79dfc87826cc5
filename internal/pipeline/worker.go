package pipeline

import (
	"context"

	"github.com/unearth-dev/unearth/internal/graph"
	"github.com/unearth-dev/unearth/internal/storage"
)

// ReleaseContext carries the per-release execution state handed to workers.
// The graph and store are shared, read-only collaborators; the release is
// the unit this invocation operates on.
type ReleaseContext struct {
	Graph   *graph.Graph
	Release *graph.Release
	Store   *storage.Store
}

// Result is what a worker reports back to the engine.
type Result struct {
	// Outcome classifies what the worker did.
	Outcome Outcome

	// Produced lists the storage keys the worker produced or confirmed.
	Produced []storage.Key
}

// NotRun is the empty result for a skipped step.
func NotRun() Result { return Result{Outcome: OutcomeNotRun} }

// UpToDate reports confirmed cached keys without doing work.
func UpToDate(keys ...storage.Key) Result {
	return Result{Outcome: OutcomeUpToDate, Produced: keys}
}

// Success reports freshly produced keys.
func Success(keys ...storage.Key) Result {
	return Result{Outcome: OutcomeSuccess, Produced: keys}
}

// Merge combines two results: outcomes under the merge law, produced key
// sets by union.
func (r Result) Merge(other Result) Result {
	return Result{
		Outcome:  r.Outcome.Merge(other.Outcome),
		Produced: append(append([]storage.Key{}, r.Produced...), other.Produced...),
	}
}

// Worker is one idempotent unit of pipeline work.
//
// Contract:
//   - Inputs and Outputs are fixed declarations; the engine uses them to
//     order workers within a release and to skip workers whose required
//     inputs were never produced.
//   - Run must be safely re-invocable: with identical inputs and an
//     already-valid output it returns UpToDate without side effects; with a
//     missing or invalid output it fully re-produces it or fails. Partial
//     outputs are never an acceptable final state.
//   - A returned error means OutcomeFailed and aborts the release.
type Worker interface {
	// Name identifies the worker in logs, results, and the ledger.
	Name() string

	// Inputs lists storage keys this worker requires.
	Inputs() []storage.Key

	// Outputs lists storage keys this worker produces.
	Outputs() []storage.Key

	// Run executes the worker for one release.
	Run(ctx context.Context, rc ReleaseContext) (Result, error)
}
