package steps

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/unearth-dev/unearth/internal/graph"
	"github.com/unearth-dev/unearth/internal/storage"
)

// ExtractSources unpacks entries from a release's decompiled source archive
// into destDir, preferring the merged archive and falling back to client
// then server. Only entries matching one of the path prefixes are
// extracted; an empty prefix list extracts everything.
//
// Returns the number of entries written, or an error if no decompiled
// archive exists for the release.
func ExtractSources(store *storage.Store, r *graph.Release, prefixes []string, destDir string) (int, error) {
	var archivePath string
	for _, v := range []graph.Variant{graph.VariantMerged, graph.VariantClient, graph.VariantServer} {
		ok, err := store.Fresh(storage.DecompiledKey(v), r)
		if err != nil {
			return 0, err
		}
		if ok {
			archivePath, err = store.Resolve(storage.DecompiledKey(v), r)
			if err != nil {
				return 0, err
			}
			break
		}
	}
	if archivePath == "" {
		return 0, fmt.Errorf("no decompiled archive for %s; run the pipeline first", r.Name())
	}

	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return 0, err
	}
	defer zr.Close()

	written := 0
	for _, entry := range zr.File {
		if entry.FileInfo().IsDir() || !matchesPrefix(entry.Name, prefixes) {
			continue
		}
		if err := extractEntry(entry, destDir); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

func matchesPrefix(name string, prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

func extractEntry(entry *zip.File, destDir string) error {
	// Reject entries that would escape destDir.
	dest := filepath.Join(destDir, filepath.FromSlash(entry.Name))
	if rel, err := filepath.Rel(destDir, dest); err != nil || strings.HasPrefix(rel, "..") {
		return fmt.Errorf("archive entry %q escapes extraction root", entry.Name)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	in, err := entry.Open()
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
