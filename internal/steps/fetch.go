package steps

import (
	"context"
	"os"
	"path/filepath"

	"github.com/unearth-dev/unearth/internal/fetch"
	"github.com/unearth-dev/unearth/internal/graph"
	"github.com/unearth-dev/unearth/internal/pipeline"
	"github.com/unearth-dev/unearth/internal/storage"
)

// FetchDistributions downloads the per-variant upstream distributions into
// the store, verified against their manifest-declared SHA-1 digests.
//
// A release that declares no download for a variant simply contributes
// nothing for that variant; a release with no downloads at all reports
// NotRun, which makes every downstream step skip it.
type FetchDistributions struct {
	Fetcher *fetch.Fetcher
	Retry   fetch.RetryPolicy
}

func (w *FetchDistributions) Name() string { return "fetch" }

func (w *FetchDistributions) Inputs() []storage.Key { return nil }

func (w *FetchDistributions) Outputs() []storage.Key {
	return []storage.Key{storage.KeyClientJar, storage.KeyServerJar}
}

func (w *FetchDistributions) Run(ctx context.Context, rc pipeline.ReleaseContext) (pipeline.Result, error) {
	result := pipeline.NotRun()

	for _, v := range []graph.Variant{graph.VariantClient, graph.VariantServer} {
		if !rc.Release.HasVariant(v) {
			continue
		}
		dl := rc.Release.DownloadFor(v)
		if dl == nil {
			continue
		}

		key := storage.JarKey(v)
		fresh, err := rc.Store.Fresh(key, rc.Release)
		if err != nil {
			return result, err
		}
		if fresh {
			result = result.Merge(pipeline.UpToDate(key))
			continue
		}

		dest, err := rc.Store.Resolve(key, rc.Release)
		if err != nil {
			return result, err
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return result, err
		}

		var expected *fetch.Checksum
		if dl.SHA1 != "" {
			expected = &fetch.Checksum{Algo: fetch.AlgoSHA1, Hex: dl.SHA1}
		}
		err = w.Retry.Do(ctx, func(ctx context.Context) error {
			_, err := w.Fetcher.Fetch(ctx, dl.URL, dest, expected)
			return err
		})
		if err != nil {
			return result, err
		}
		result = result.Merge(pipeline.Success(key))
	}

	return result, nil
}
