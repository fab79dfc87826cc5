package steps

import (
	"bytes"
	"context"
	"fmt"

	"github.com/unearth-dev/unearth/internal/graph"
	"github.com/unearth-dev/unearth/internal/pipeline"
	"github.com/unearth-dev/unearth/internal/provider"
	"github.com/unearth-dev/unearth/internal/storage"
)

// RemapArtifact rewrites the raw jars under the selected mapping strategy.
//
// When a merged jar exists only it is remapped; otherwise client and server
// are remapped individually. A release for which the selected strategy
// contributes no mapping data gets a byte-identical copy via Passthrough, so
// downstream steps always find a remapped artifact to work on.
type RemapArtifact struct {
	Registry *provider.Registry
	Remapper Remapper
}

func (w *RemapArtifact) Name() string { return "remap" }

func (w *RemapArtifact) Inputs() []storage.Key {
	return []storage.Key{storage.KeyClientJar, storage.KeyServerJar, storage.KeyMergedJar}
}

func (w *RemapArtifact) Outputs() []storage.Key {
	return []storage.Key{
		storage.KeyRemappedClientJar,
		storage.KeyRemappedServerJar,
		storage.KeyRemappedMergedJar,
	}
}

func (w *RemapArtifact) Run(ctx context.Context, rc pipeline.ReleaseContext) (pipeline.Result, error) {
	variants, err := sourceVariants(rc, storage.JarKey)
	if err != nil {
		return pipeline.NotRun(), err
	}
	if len(variants) == 0 {
		return pipeline.NotRun(), nil
	}

	result := pipeline.NotRun()
	for _, v := range variants {
		r, err := w.remapOne(ctx, rc, v)
		if err != nil {
			return result, err
		}
		result = result.Merge(r)
	}
	return result, nil
}

func (w *RemapArtifact) remapOne(ctx context.Context, rc pipeline.ReleaseContext, v graph.Variant) (pipeline.Result, error) {
	out := storage.RemappedKey(v)
	fresh, err := rc.Store.Fresh(out, rc.Release)
	if err != nil {
		return pipeline.NotRun(), err
	}
	if fresh {
		return pipeline.UpToDate(out), nil
	}

	p, err := w.Registry.Select(ctx, provider.KindMappings, rc.Release, v)
	if err != nil {
		return pipeline.NotRun(), err
	}
	if _, err := p.Materialize(ctx, rc.Release, v); err != nil {
		return pipeline.NotRun(), err
	}

	var mappings bytes.Buffer
	if err := p.Apply(ctx, rc.Release, v, &mappings); err != nil {
		return pipeline.NotRun(), err
	}

	src, err := rc.Store.Resolve(storage.JarKey(v), rc.Release)
	if err != nil {
		return pipeline.NotRun(), err
	}
	err = rc.Store.Publish(out, rc.Release, func(tmp string) error {
		if mappings.Len() == 0 {
			return Passthrough{}.Remap(ctx, src, tmp, nil)
		}
		if w.Remapper == nil {
			return fmt.Errorf("mapping data present for %s but no remapper configured", rc.Release.Name())
		}
		return w.Remapper.Remap(ctx, src, tmp, bytes.NewReader(mappings.Bytes()))
	})
	if err != nil {
		return pipeline.NotRun(), err
	}
	return pipeline.Success(out), nil
}

// sourceVariants picks which variants a transformation step operates on:
// merged alone when a merged artifact exists, else whichever of client and
// server are present.
func sourceVariants(rc pipeline.ReleaseContext, key func(graph.Variant) storage.Key) ([]graph.Variant, error) {
	mergedOK, err := rc.Store.Fresh(key(graph.VariantMerged), rc.Release)
	if err != nil {
		return nil, err
	}
	if mergedOK {
		return []graph.Variant{graph.VariantMerged}, nil
	}

	var out []graph.Variant
	for _, v := range []graph.Variant{graph.VariantClient, graph.VariantServer} {
		ok, err := rc.Store.Fresh(key(v), rc.Release)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, v)
		}
	}
	return out, nil
}
