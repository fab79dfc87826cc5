// Package testutil provides deterministic fixtures shared by package tests:
// canned manifest entries, a scripted pipeline worker, and a tiny zip
// builder for archive-shaped artifacts.
package testutil

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/unearth-dev/unearth/internal/graph"
	"github.com/unearth-dev/unearth/internal/pipeline"
	"github.com/unearth-dev/unearth/internal/storage"
)

// Manifest returns a small two-release manifest: "a" (build 1) and "b"
// (build 2), both with client and server distributions.
func Manifest() []graph.ManifestEntry {
	return []graph.ManifestEntry{
		{Name: "a", Build: 1, HasClient: true, HasServer: true, Stable: true},
		{Name: "b", Build: 2, HasClient: true, HasServer: true, Stable: true},
	}
}

// ScriptedWorker is a pipeline.Worker driven by a per-release script.
// It records every invocation so tests can assert on call order and counts.
type ScriptedWorker struct {
	WorkerName string
	In         []storage.Key
	Out        []storage.Key

	// Script decides the result per release name. Nil scripts succeed.
	Script func(release string) (pipeline.Result, error)

	mu    sync.Mutex
	calls []string
}

func (w *ScriptedWorker) Name() string           { return w.WorkerName }
func (w *ScriptedWorker) Inputs() []storage.Key  { return w.In }
func (w *ScriptedWorker) Outputs() []storage.Key { return w.Out }

// Calls returns the release names this worker ran for, in invocation order.
func (w *ScriptedWorker) Calls() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, len(w.calls))
	copy(out, w.calls)
	return out
}

func (w *ScriptedWorker) Run(_ context.Context, rc pipeline.ReleaseContext) (pipeline.Result, error) {
	w.mu.Lock()
	w.calls = append(w.calls, rc.Release.Name())
	w.mu.Unlock()

	if w.Script == nil {
		return pipeline.Success(w.Out...), nil
	}
	return w.Script(rc.Release.Name())
}

// WriteZip creates a zip archive at path with the given entries, creating
// parent directories as needed.
func WriteZip(path string, entries map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			f.Close()
			return err
		}
		if _, err := w.Write([]byte(content)); err != nil {
			f.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// TreeSize counts regular files under root. Used to assert "zero filesystem
// writes" on steady-state re-runs.
func TreeSize(root string) (int, error) {
	count := 0
	err := filepath.Walk(root, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			count++
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("walking %s: %w", root, err)
	}
	return count, nil
}
