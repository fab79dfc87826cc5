package steps

import (
	"context"

	"github.com/unearth-dev/unearth/internal/graph"
	"github.com/unearth-dev/unearth/internal/pipeline"
	"github.com/unearth-dev/unearth/internal/provider"
	"github.com/unearth-dev/unearth/internal/storage"
)

// MaterializeData brings one kind of optional provider data into the store.
//
// Consumers materialize on demand too (Materialize is idempotent), so this
// step carries no ordering edges; it exists to warm the cache and to surface
// per-kind data availability in the run report: NotRun here means no
// strategy had data for the release.
//
// Materialization is keyed by effective variant: when merged substitution
// collapses client and server onto the merged feed, the data is fetched
// once, not once per side.
type MaterializeData struct {
	DataKind provider.Kind
	Registry *provider.Registry
}

func (w *MaterializeData) Name() string { return "provide-" + string(w.DataKind) }

func (w *MaterializeData) Inputs() []storage.Key { return nil }

func (w *MaterializeData) Outputs() []storage.Key { return nil }

func (w *MaterializeData) Run(ctx context.Context, rc pipeline.ReleaseContext) (pipeline.Result, error) {
	result := pipeline.NotRun()

	seen := make(map[graph.Variant]bool)
	for _, v := range []graph.Variant{graph.VariantClient, graph.VariantServer} {
		if !rc.Release.HasVariant(v) {
			continue
		}
		effective := rc.Release.EffectiveVariant(v)
		if seen[effective] {
			continue
		}
		seen[effective] = true

		p, err := w.Registry.Select(ctx, w.DataKind, rc.Release, v)
		if err != nil {
			return result, err
		}
		outcome, err := p.Materialize(ctx, rc.Release, v)
		if err != nil {
			return result, err
		}
		result = result.Merge(pipeline.Result{Outcome: outcome})
	}

	return result, nil
}
