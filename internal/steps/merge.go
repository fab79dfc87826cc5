package steps

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/unearth-dev/unearth/internal/graph"
	"github.com/unearth-dev/unearth/internal/pipeline"
	"github.com/unearth-dev/unearth/internal/storage"
)

// MergeDistributions produces the merged artifact from the raw client and
// server distributions.
//
// When both sides exist the merged jar is their entry union, client entries
// winning on name collisions. A single-sided release is its own merged
// artifact: the one existing jar is copied through unchanged.
type MergeDistributions struct{}

func (w *MergeDistributions) Name() string { return "merge" }

func (w *MergeDistributions) Inputs() []storage.Key {
	return []storage.Key{storage.KeyClientJar, storage.KeyServerJar}
}

func (w *MergeDistributions) Outputs() []storage.Key {
	return []storage.Key{storage.KeyMergedJar}
}

func (w *MergeDistributions) Run(ctx context.Context, rc pipeline.ReleaseContext) (pipeline.Result, error) {
	if !rc.Release.HasVariant(graph.VariantMerged) {
		return pipeline.NotRun(), nil
	}

	fresh, err := rc.Store.Fresh(storage.KeyMergedJar, rc.Release)
	if err != nil {
		return pipeline.NotRun(), err
	}
	if fresh {
		return pipeline.UpToDate(storage.KeyMergedJar), nil
	}

	clientOK, err := rc.Store.Fresh(storage.KeyClientJar, rc.Release)
	if err != nil {
		return pipeline.NotRun(), err
	}
	serverOK, err := rc.Store.Fresh(storage.KeyServerJar, rc.Release)
	if err != nil {
		return pipeline.NotRun(), err
	}
	if !clientOK && !serverOK {
		return pipeline.NotRun(), nil
	}

	clientPath, err := rc.Store.Resolve(storage.KeyClientJar, rc.Release)
	if err != nil {
		return pipeline.NotRun(), err
	}
	serverPath, err := rc.Store.Resolve(storage.KeyServerJar, rc.Release)
	if err != nil {
		return pipeline.NotRun(), err
	}

	err = rc.Store.Publish(storage.KeyMergedJar, rc.Release, func(tmp string) error {
		switch {
		case clientOK && serverOK:
			return mergeArchives(clientPath, serverPath, tmp)
		case clientOK:
			return copyFile(clientPath, tmp)
		default:
			return copyFile(serverPath, tmp)
		}
	})
	if err != nil {
		return pipeline.NotRun(), err
	}
	return pipeline.Success(storage.KeyMergedJar), nil
}

// mergeArchives writes the entry union of two zip archives to dest. Entries
// from primary win on name collisions.
func mergeArchives(primary, secondary, dest string) error {
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(out)

	seen := make(map[string]bool)
	for _, src := range []string{primary, secondary} {
		zr, err := zip.OpenReader(src)
		if err != nil {
			zw.Close()
			out.Close()
			return fmt.Errorf("opening %s: %w", src, err)
		}
		if err := copyEntries(zw, zr, seen); err != nil {
			zr.Close()
			zw.Close()
			out.Close()
			return err
		}
		zr.Close()
	}

	if err := zw.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func copyEntries(zw *zip.Writer, zr *zip.ReadCloser, seen map[string]bool) error {
	for _, entry := range zr.File {
		if seen[entry.Name] {
			continue
		}
		seen[entry.Name] = true

		in, err := entry.Open()
		if err != nil {
			return err
		}
		dst, err := zw.Create(entry.Name)
		if err != nil {
			in.Close()
			return err
		}
		if _, err := io.Copy(dst, in); err != nil {
			in.Close()
			return err
		}
		in.Close()
	}
	return nil
}
