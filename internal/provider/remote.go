package provider

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/unearth-dev/unearth/internal/fetch"
	"github.com/unearth-dev/unearth/internal/graph"
	"github.com/unearth-dev/unearth/internal/meta"
	"github.com/unearth-dev/unearth/internal/pipeline"
	"github.com/unearth-dev/unearth/internal/storage"
)

// Remote is a provider backed by a versioned metadata feed and a Maven
// repository. The feed answers "which build exists for this release"; the
// repository serves the build's jar, from which one inner file (the actual
// data) is extracted into the artifact store.
type Remote struct {
	// StrategyName appears in artifact file names, e.g. "sparrow".
	StrategyName string

	// DataKind is the category this provider serves.
	DataKind Kind

	// Source answers latest-build-for-key queries.
	Source meta.Source

	// MavenBase is the repository base URL for the feed's coordinates.
	MavenBase string

	// InnerPath is the data file's path inside the downloaded jar,
	// e.g. "signatures/mappings.sigs".
	InnerPath string

	// Ext is the materialized data file's extension, e.g. ".sigs".
	Ext string

	// Store resolves and validates materialized artifacts.
	Store *storage.Store

	// Fetcher downloads the backing jar; Retry is this provider's fetch
	// retry policy.
	Fetcher *fetch.Fetcher
	Retry   fetch.RetryPolicy
}

func (p *Remote) Name() string { return p.StrategyName }
func (p *Remote) Kind() Kind   { return p.DataKind }

// feedKey is the feed lookup key for a (release, variant) pair: the release
// name for the merged variant, name-variant otherwise.
func feedKey(r *graph.Release, v graph.Variant) string {
	if v == graph.VariantMerged {
		return r.Name()
	}
	return r.Name() + "-" + string(v)
}

func (p *Remote) latest(ctx context.Context, r *graph.Release, v graph.Variant) (*meta.BuildMeta, error) {
	return p.Source.Latest(ctx, feedKey(r, v))
}

// ExistsFor reports whether the feed has a build for the exact pair.
func (p *Remote) ExistsFor(ctx context.Context, r *graph.Release, v graph.Variant) (bool, error) {
	m, err := p.latest(ctx, r, v)
	if err != nil {
		return false, err
	}
	return m != nil, nil
}

// CanBeUsedOn applies merged-variant substitution before the existence
// check: a release that shares obfuscation (or does not version variants
// separately) is served by merged data.
func (p *Remote) CanBeUsedOn(ctx context.Context, r *graph.Release, v graph.Variant) (bool, error) {
	return p.ExistsFor(ctx, r, r.EffectiveVariant(v))
}

// Materialize ensures the provider's data file exists in the store.
//
// Resolution: feed lookup (absent → NotRun), cached-copy validation
// (valid → UpToDate; invalid → deleted), jar download via the checksum
// fetcher under this provider's retry policy, inner-file extraction with
// atomic publish.
func (p *Remote) Materialize(ctx context.Context, r *graph.Release, v graph.Variant) (pipeline.Outcome, error) {
	v = r.EffectiveVariant(v)

	build, err := p.latest(ctx, r, v)
	if err != nil {
		return pipeline.OutcomeFailed, err
	}
	if build == nil {
		return pipeline.OutcomeNotRun, nil
	}

	dataPath := p.Store.PatchPath(r, v, p.StrategyName, build.Build, p.Ext)
	if valid, err := validatedNonEmpty(dataPath); err != nil {
		return pipeline.OutcomeFailed, err
	} else if valid {
		return pipeline.OutcomeUpToDate, nil
	}

	jarURL, err := build.URL(p.MavenBase, ".jar")
	if err != nil {
		return pipeline.OutcomeFailed, err
	}
	jarPath := p.Store.PatchPath(r, v, p.StrategyName, build.Build, ".jar")

	err = p.Retry.Do(ctx, func(ctx context.Context) error {
		_, fetchErr := p.Fetcher.Fetch(ctx, jarURL, jarPath, nil)
		return fetchErr
	})
	if err != nil {
		return pipeline.OutcomeFailed, err
	}

	if err := extractFromArchive(jarPath, p.InnerPath, dataPath); err != nil {
		return pipeline.OutcomeFailed, err
	}
	return pipeline.OutcomeSuccess, nil
}

// Apply streams the materialized data file onto target.
func (p *Remote) Apply(ctx context.Context, r *graph.Release, v graph.Variant, target io.Writer) error {
	v = r.EffectiveVariant(v)

	build, err := p.latest(ctx, r, v)
	if err != nil {
		return err
	}
	if build == nil {
		return fmt.Errorf("%s %s: no data for %s/%s", p.DataKind, p.StrategyName, r.Name(), v)
	}

	dataPath := p.Store.PatchPath(r, v, p.StrategyName, build.Build, p.Ext)
	f, err := os.Open(dataPath)
	if err != nil {
		return fmt.Errorf("%s %s: %w", p.DataKind, p.StrategyName, err)
	}
	defer f.Close()

	_, err = io.Copy(target, f)
	return err
}

// validatedNonEmpty reports whether path holds a non-empty file, deleting a
// present-but-empty one so the caller re-creates it.
func validatedNonEmpty(path string) (bool, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if info.Size() > 0 {
		return true, nil
	}
	if err := os.Remove(path); err != nil {
		return false, err
	}
	return false, nil
}

// extractFromArchive copies one entry out of a zip archive, publishing it
// atomically next to dest.
func extractFromArchive(archivePath, innerPath, dest string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", archivePath, err)
	}
	defer zr.Close()

	entry, err := zr.Open(innerPath)
	if err != nil {
		return fmt.Errorf("entry %s missing from %s: %w", innerPath, archivePath, err)
	}
	defer entry.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".tmp*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, entry); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, dest)
}
