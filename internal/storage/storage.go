// Package storage centralizes the filesystem layout and cache-validity policy
// for every artifact the pipeline produces or downloads.
//
// The store maps an abstract artifact key plus a release and run flavors to a
// deterministic path under one root directory. Resolution is pure: the same
// inputs always yield the same path, whether or not the file exists, and the
// flavors participate in the name so switching strategies never collides with
// artifacts produced under a different configuration.
//
// Validity is the store's call, not the caller's: Fresh is the single
// authority for cache-hit decisions, and a present-but-invalid file is
// deleted rather than silently reused.
package storage

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/zeebo/blake3"

	"github.com/unearth-dev/unearth/internal/graph"
)

// Key is a stable symbolic identifier for one kind of produced file.
// Keys are registered at engine-configuration time; the engine itself treats
// them as opaque.
type Key string

// Flavors identifies the provider strategies active for a run. Flavor names
// appear in resolved paths so that artifacts produced under different
// strategies never collide.
type Flavors struct {
	Mappings   string
	Signatures string
	Unpick     string
	Nests      string
}

// PathFunc computes the store-relative path for a key. It must be pure.
type PathFunc func(r *graph.Release, f Flavors) string

// ValidateFunc decides whether an existing file at path is a valid instance
// of its key. A nil ValidateFunc falls back to "exists and non-empty".
type ValidateFunc func(path string) (bool, error)

// KeySpec describes one registered key.
type KeySpec struct {
	Path     PathFunc
	Validate ValidateFunc
}

// Store resolves artifact keys to filesystem paths and owns cache-validity
// decisions. Registration happens once at setup; afterwards the store is
// read-only and safe for concurrent use.
type Store struct {
	root    string
	flavors Flavors
	keys    map[Key]KeySpec
}

// NewStore creates a store rooted at root with the run's flavors.
func NewStore(root string, flavors Flavors) *Store {
	return &Store{
		root:    root,
		flavors: flavors,
		keys:    make(map[Key]KeySpec),
	}
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

// Flavors returns the run's flavor configuration.
func (s *Store) Flavors() Flavors { return s.flavors }

// Register adds a key. Registering the same key twice is a setup bug and
// returns an error rather than silently replacing the spec.
func (s *Store) Register(key Key, spec KeySpec) error {
	if key == "" {
		return fmt.Errorf("empty storage key")
	}
	if spec.Path == nil {
		return fmt.Errorf("storage key %q has no path function", key)
	}
	if _, dup := s.keys[key]; dup {
		return fmt.Errorf("storage key %q registered twice", key)
	}
	s.keys[key] = spec
	return nil
}

// Known reports whether key is registered.
func (s *Store) Known(key Key) bool {
	_, ok := s.keys[key]
	return ok
}

// Resolve returns the canonical absolute path for (key, release) under the
// run's flavors. Pure: no I/O, no side effects; the file need not exist.
// Unknown keys indicate an engine setup bug.
func (s *Store) Resolve(key Key, r *graph.Release) (string, error) {
	spec, ok := s.keys[key]
	if !ok {
		return "", fmt.Errorf("unknown storage key %q", key)
	}
	return filepath.Join(s.root, spec.Path(r, s.flavors)), nil
}

// Exists reports whether the resolved file is present on disk.
func (s *Store) Exists(key Key, r *graph.Release) (bool, error) {
	path, err := s.Resolve(key, r)
	if err != nil {
		return false, err
	}
	_, statErr := os.Stat(path)
	if statErr == nil {
		return true, nil
	}
	if os.IsNotExist(statErr) {
		return false, nil
	}
	return false, statErr
}

// Fresh is the cache-hit authority: it reports whether a valid instance of
// the key exists for the release. A present-but-invalid file is deleted and
// reported as absent so the producing step re-creates it from scratch.
func (s *Store) Fresh(key Key, r *graph.Release) (bool, error) {
	spec, ok := s.keys[key]
	if !ok {
		return false, fmt.Errorf("unknown storage key %q", key)
	}
	path, err := s.Resolve(key, r)
	if err != nil {
		return false, err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		if os.IsNotExist(statErr) {
			return false, nil
		}
		return false, statErr
	}

	validate := spec.Validate
	if validate == nil {
		validate = ValidateNonEmpty
	}
	ok, err = validate(path)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	if err := os.Remove(path); err != nil {
		return false, fmt.Errorf("removing invalid artifact %s: %w", path, err)
	}
	return false, nil
}

// Publish materializes the key's file atomically: write populates a temp
// file in the destination directory, which is renamed into place only if
// write succeeds. A crash mid-write leaves at most a temp file that Fresh
// will never accept; a concurrent reader never observes a partial artifact.
func (s *Store) Publish(key Key, r *graph.Release, write func(path string) error) error {
	dest, err := s.Resolve(key, r)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("creating artifact directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating temp artifact: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := write(tmpPath); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return fmt.Errorf("publishing %s: %w", dest, err)
	}
	return nil
}

// Fingerprint computes the BLAKE3 digest of a file as lowercase hex. Used
// for derived artifacts that carry no upstream-declared checksum.
func Fingerprint(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
