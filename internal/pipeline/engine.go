// Package pipeline drives ordered transformation steps over a release graph.
//
// The engine resolves a declared worker list into dependency order (a
// topological order over the workers' storage-key declarations), then runs
// each release's chain sequentially while processing releases concurrently.
// Releases have disjoint artifact namespaces, so cross-release concurrency
// needs no locking; within one release no two steps ever run at once.
//
// Failures are isolated per release: one bad release never blocks the
// others, and re-running the engine over an unchanged release set converges
// to an all-up-to-date steady state.
//
// Two whole-pipeline runs against the same store root are not guarded
// against each other; callers must serialize them.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/unearth-dev/unearth/internal/graph"
	"github.com/unearth-dev/unearth/internal/storage"
)

// StepRecord is one worker's outcome within a release.
type StepRecord struct {
	Worker  string  `json:"worker"`
	Outcome Outcome `json:"outcome"`
}

// ReleaseResult aggregates one release's step outcomes.
type ReleaseResult struct {
	Release *graph.Release
	Outcome Outcome
	Steps   []StepRecord

	// Err is the step error that aborted the release, if any.
	Err error
}

// RunResult holds per-release results in graph order.
type RunResult struct {
	results []ReleaseResult
	byName  map[string]int
}

// Releases returns the per-release results in graph order.
func (r *RunResult) Releases() []ReleaseResult { return r.results }

// Outcome returns the aggregate outcome for a release name, or
// OutcomeNotRun for releases outside the run.
func (r *RunResult) Outcome(name string) Outcome {
	idx, ok := r.byName[name]
	if !ok {
		return OutcomeNotRun
	}
	return r.results[idx].Outcome
}

// Failed returns the names of releases that failed, in graph order.
func (r *RunResult) Failed() []string {
	var out []string
	for _, rr := range r.results {
		if rr.Outcome == OutcomeFailed {
			out = append(out, rr.Release.Name())
		}
	}
	return out
}

// Engine executes a fixed worker sequence over releases.
type Engine struct {
	store       *storage.Store
	workers     []Worker       // in dependency order after New
	producerOf  map[storage.Key]int
	parallelism int
	log         *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithParallelism bounds how many releases are processed concurrently.
// Values below 1 behave as 1.
func WithParallelism(n int) Option {
	return func(e *Engine) { e.parallelism = n }
}

// WithLogger overrides the engine's logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New creates an engine for the given worker sequence.
//
// Workers are reordered into a topological order over their declared
// input/output keys; declaration order is preserved among independent
// workers. Setup problems (a key produced twice, cyclic dependencies, a
// declared key missing from the store) are ConfigurationErrors and fail
// before any release is processed.
func New(store *storage.Store, workers []Worker, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:       store,
		parallelism: 1,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.parallelism < 1 {
		e.parallelism = 1
	}

	producerOf := make(map[storage.Key]int)
	for i, w := range workers {
		for _, key := range w.Outputs() {
			if !store.Known(key) {
				return nil, &ConfigurationError{Reason: fmt.Sprintf("worker %s declares unregistered output key %q", w.Name(), key)}
			}
			if prev, dup := producerOf[key]; dup {
				return nil, &ConfigurationError{Reason: fmt.Sprintf("key %q produced by both %s and %s", key, workers[prev].Name(), w.Name())}
			}
			producerOf[key] = i
		}
	}
	for _, w := range workers {
		for _, key := range w.Inputs() {
			if !store.Known(key) {
				return nil, &ConfigurationError{Reason: fmt.Sprintf("worker %s declares unregistered input key %q", w.Name(), key)}
			}
		}
	}

	ordered, err := topoOrder(workers, producerOf)
	if err != nil {
		return nil, err
	}
	e.workers = ordered

	// Recompute producer indices against the final order.
	e.producerOf = make(map[storage.Key]int)
	for i, w := range e.workers {
		for _, key := range w.Outputs() {
			e.producerOf[key] = i
		}
	}
	return e, nil
}

// topoOrder sorts workers so every producer precedes its consumers,
// keeping declaration order among independent workers (Kahn's algorithm
// with a declaration-ordered frontier).
func topoOrder(workers []Worker, producerOf map[storage.Key]int) ([]Worker, error) {
	n := len(workers)
	indegree := make([]int, n)
	dependents := make([][]int, n)

	for i, w := range workers {
		for _, key := range w.Inputs() {
			p, ok := producerOf[key]
			if !ok || p == i {
				continue // externally supplied input, or self-confirmed key
			}
			indegree[i]++
			dependents[p] = append(dependents[p], i)
		}
	}

	ordered := make([]Worker, 0, n)
	done := make([]bool, n)
	for len(ordered) < n {
		next := -1
		for i := 0; i < n; i++ {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next == -1 {
			return nil, &ConfigurationError{Reason: "cyclic step dependencies over storage keys"}
		}
		done[next] = true
		ordered = append(ordered, workers[next])
		for _, dep := range dependents[next] {
			indegree[dep]--
		}
	}
	return ordered, nil
}

// Workers returns the workers in execution order.
func (e *Engine) Workers() []Worker {
	out := make([]Worker, len(e.workers))
	copy(out, e.workers)
	return out
}

// Run executes the pipeline over every release of g passing filter (nil
// means all), returning per-release outcomes. Releases are processed
// concurrently up to the configured parallelism; the only error Run itself
// returns is context cancellation — per-release failures are reported in
// the result, never propagated.
func (e *Engine) Run(ctx context.Context, g *graph.Graph, filter func(*graph.Release) bool) (*RunResult, error) {
	releases := g.Releases()
	if filter != nil {
		kept := releases[:0]
		for _, r := range releases {
			if filter(r) {
				kept = append(kept, r)
			}
		}
		releases = kept
	}

	results := make([]ReleaseResult, len(releases))

	eg, runCtx := errgroup.WithContext(ctx)
	eg.SetLimit(e.parallelism)
	for i, r := range releases {
		i, r := i, r
		eg.Go(func() error {
			if err := runCtx.Err(); err != nil {
				return err
			}
			results[i] = e.runRelease(runCtx, g, r)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	out := &RunResult{results: results, byName: make(map[string]int, len(results))}
	for i, rr := range results {
		out.byName[rr.Release.Name()] = i
	}
	return out, nil
}

// runRelease executes the ordered worker chain for one release.
//
// Skip rule: a worker whose required input has a producer that ended up
// NotRun is itself NotRun. Abort rule: a failed worker (error or
// OutcomeFailed) ends the release immediately as Failed.
func (e *Engine) runRelease(ctx context.Context, g *graph.Graph, r *graph.Release) ReleaseResult {
	rc := ReleaseContext{Graph: g, Release: r, Store: e.store}
	rr := ReleaseResult{Release: r, Steps: make([]StepRecord, 0, len(e.workers))}

	stepOutcomes := make([]Outcome, len(e.workers))
	for i, w := range e.workers {
		if err := ctx.Err(); err != nil {
			// Cancellation: remaining steps never ran. The partial
			// release is reported as failed; artifacts written so far
			// are re-validated on the next run.
			rr.Err = err
			rr.Outcome = OutcomeFailed
			return rr
		}

		if skip := e.inputNotProduced(i, stepOutcomes); skip {
			stepOutcomes[i] = OutcomeNotRun
			rr.Steps = append(rr.Steps, StepRecord{Worker: w.Name(), Outcome: OutcomeNotRun})
			continue
		}

		result, err := w.Run(ctx, rc)
		if err != nil || result.Outcome == OutcomeFailed {
			if err == nil {
				err = fmt.Errorf("worker reported failure")
			}
			stepErr := &StepError{Release: r.Name(), Worker: w.Name(), Err: err}
			e.log.Error("step failed", "release", r.Name(), "worker", w.Name(), "error", err)
			rr.Steps = append(rr.Steps, StepRecord{Worker: w.Name(), Outcome: OutcomeFailed})
			rr.Err = stepErr
			rr.Outcome = OutcomeFailed
			return rr
		}

		stepOutcomes[i] = result.Outcome
		rr.Steps = append(rr.Steps, StepRecord{Worker: w.Name(), Outcome: result.Outcome})
		e.log.Debug("step finished", "release", r.Name(), "worker", w.Name(), "outcome", result.Outcome.String())
	}

	rr.Outcome = MergeOutcomes(stepOutcomes...)
	return rr
}

// inputNotProduced reports whether worker i has a required input whose
// producing step ended up NotRun. Inputs without a producer are externally
// supplied and never block.
func (e *Engine) inputNotProduced(i int, stepOutcomes []Outcome) bool {
	for _, key := range e.workers[i].Inputs() {
		p, ok := e.producerOf[key]
		if !ok || p >= i {
			continue
		}
		if stepOutcomes[p] == OutcomeNotRun {
			return true
		}
	}
	return false
}
