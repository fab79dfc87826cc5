package steps

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/unearth-dev/unearth/internal/canonical"
	"github.com/unearth-dev/unearth/internal/graph"
	"github.com/unearth-dev/unearth/internal/pipeline"
	"github.com/unearth-dev/unearth/internal/storage"
)

// DecompileArtifact turns the remapped jars into source archives and writes
// the dependencies sidecar alongside them.
//
// Merged-first with per-side fallback: when a remapped merged jar exists it
// is the only one decompiled; otherwise client and server are decompiled
// individually. Without a configured engine the step reports NotRun, leaving
// the remapped artifacts as the pipeline's final product.
type DecompileArtifact struct {
	Engine Decompiler
}

func (w *DecompileArtifact) Name() string { return "decompile" }

func (w *DecompileArtifact) Inputs() []storage.Key {
	return []storage.Key{
		storage.KeyRemappedClientJar,
		storage.KeyRemappedServerJar,
		storage.KeyRemappedMergedJar,
	}
}

func (w *DecompileArtifact) Outputs() []storage.Key {
	return []storage.Key{
		storage.KeyDecompiledClientJar,
		storage.KeyDecompiledServerJar,
		storage.KeyDecompiledMergedJar,
		storage.KeyDependencies,
	}
}

func (w *DecompileArtifact) Run(ctx context.Context, rc pipeline.ReleaseContext) (pipeline.Result, error) {
	if w.Engine == nil {
		return pipeline.NotRun(), nil
	}

	variants, err := sourceVariants(rc, storage.RemappedKey)
	if err != nil {
		return pipeline.NotRun(), err
	}
	if len(variants) == 0 {
		return pipeline.NotRun(), nil
	}

	result := pipeline.NotRun()
	for _, v := range variants {
		r, err := w.decompileOne(ctx, rc, v)
		if err != nil {
			return result, err
		}
		result = result.Merge(r)
	}

	r, err := w.writeDependencies(rc)
	if err != nil {
		return result, err
	}
	return result.Merge(r), nil
}

func (w *DecompileArtifact) decompileOne(ctx context.Context, rc pipeline.ReleaseContext, v graph.Variant) (pipeline.Result, error) {
	out := storage.DecompiledKey(v)
	fresh, err := rc.Store.Fresh(out, rc.Release)
	if err != nil {
		return pipeline.NotRun(), err
	}
	if fresh {
		return pipeline.UpToDate(out), nil
	}

	src, err := rc.Store.Resolve(storage.RemappedKey(v), rc.Release)
	if err != nil {
		return pipeline.NotRun(), err
	}
	err = rc.Store.Publish(out, rc.Release, func(tmp string) error {
		return w.Engine.Decompile(ctx, src, rc.Release.Libraries(), tmp)
	})
	if err != nil {
		return pipeline.NotRun(), fmt.Errorf("decompiling %s %s: %w", rc.Release.Name(), v, err)
	}
	return pipeline.Success(out), nil
}

// writeDependencies publishes the canonical-JSON sidecar listing the
// release's library coordinates plus a synthetic runtime entry, sorted by
// name so the file is byte-stable across runs.
func (w *DecompileArtifact) writeDependencies(rc pipeline.ReleaseContext) (pipeline.Result, error) {
	fresh, err := rc.Store.Fresh(storage.KeyDependencies, rc.Release)
	if err != nil {
		return pipeline.NotRun(), err
	}
	if fresh {
		return pipeline.UpToDate(storage.KeyDependencies), nil
	}

	payload, err := DependencyManifest(rc.Release)
	if err != nil {
		return pipeline.NotRun(), err
	}
	err = rc.Store.Publish(storage.KeyDependencies, rc.Release, func(tmp string) error {
		return os.WriteFile(tmp, payload, 0o644)
	})
	if err != nil {
		return pipeline.NotRun(), err
	}
	return pipeline.Success(storage.KeyDependencies), nil
}

// DependencyManifest renders the dependencies sidecar for a release: every
// library coordinate plus a "Java N" entry for the targeted runtime, sorted
// by name, serialized as canonical JSON.
func DependencyManifest(r *graph.Release) ([]byte, error) {
	names := r.Libraries()
	if jv := r.JavaVersion(); jv > 0 {
		names = append(names, fmt.Sprintf("Java %d", jv))
	}
	sort.Strings(names)

	entries := make([]any, len(names))
	for i, name := range names {
		entries[i] = map[string]any{"name": name}
	}
	return canonical.Marshal(map[string]any{"dependencies": entries})
}
