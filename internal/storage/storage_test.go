package storage

import (
	"archive/zip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unearth-dev/unearth/internal/graph"
)

func testRelease(t *testing.T, name string) *graph.Release {
	t.Helper()
	g, err := graph.Build([]graph.ManifestEntry{
		{Name: name, Build: 1, HasClient: true, HasServer: true},
	})
	require.NoError(t, err)
	return g.ByName(name)
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore(t.TempDir(), Flavors{Mappings: "mojmap", Signatures: "sparrow"})
	require.NoError(t, RegisterDefaultLayout(s))
	return s
}

func writeZip(t *testing.T, path string, entries map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestResolve_DeterministicAndPure(t *testing.T) {
	s := newTestStore(t)
	r := testRelease(t, "1.14.4")

	p1, err := s.Resolve(KeyClientJar, r)
	require.NoError(t, err)
	p2, err := s.Resolve(KeyClientJar, r)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)

	// The file does not exist; resolution still succeeds.
	_, statErr := os.Stat(p1)
	assert.True(t, os.IsNotExist(statErr))
}

func TestResolve_FlavorParticipatesInPath(t *testing.T) {
	r := testRelease(t, "1.14.4")

	a := NewStore("/root", Flavors{Mappings: "mojmap"})
	require.NoError(t, RegisterDefaultLayout(a))
	b := NewStore("/root", Flavors{Mappings: "feather"})
	require.NoError(t, RegisterDefaultLayout(b))

	pa, err := a.Resolve(KeyRemappedClientJar, r)
	require.NoError(t, err)
	pb, err := b.Resolve(KeyRemappedClientJar, r)
	require.NoError(t, err)
	assert.NotEqual(t, pa, pb, "different mapping flavors must not collide")
	assert.Contains(t, pa, "mojmap")
	assert.Contains(t, pb, "feather")
}

func TestResolve_DistinctReleasesNeverCollide(t *testing.T) {
	s := newTestStore(t)
	g, err := graph.Build([]graph.ManifestEntry{
		{Name: "1.14.4", Build: 1, HasClient: true, HasServer: true},
		{Name: "1.15", Build: 2, HasClient: true, HasServer: true},
	})
	require.NoError(t, err)

	seen := make(map[string]Key)
	for _, key := range []Key{KeyClientJar, KeyServerJar, KeyMergedJar, KeyRemappedClientJar, KeyDecompiledMergedJar, KeyDependencies} {
		for _, r := range g.Releases() {
			path, err := s.Resolve(key, r)
			require.NoError(t, err)
			prev, dup := seen[path]
			require.False(t, dup, "path %s resolved for both %s and %s", path, prev, key)
			seen[path] = key
		}
	}
}

func TestResolve_UnknownKey(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Resolve(Key("nope"), testRelease(t, "1.14.4"))
	assert.Error(t, err)
}

func TestRegister_RejectsDuplicates(t *testing.T) {
	s := newTestStore(t)
	err := s.Register(KeyClientJar, KeySpec{Path: func(*graph.Release, Flavors) string { return "x" }})
	assert.Error(t, err)
}

func TestFresh_ValidArchiveIsAHit(t *testing.T) {
	s := newTestStore(t)
	r := testRelease(t, "1.14.4")

	path, err := s.Resolve(KeyClientJar, r)
	require.NoError(t, err)
	writeZip(t, path, map[string]string{"a.class": "bytecode"})

	fresh, err := s.Fresh(KeyClientJar, r)
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestFresh_InvalidFileIsDeletedAndReportedAbsent(t *testing.T) {
	s := newTestStore(t)
	r := testRelease(t, "1.14.4")

	path, err := s.Resolve(KeyClientJar, r)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))

	fresh, err := s.Fresh(KeyClientJar, r)
	require.NoError(t, err)
	assert.False(t, fresh)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr), "invalid artifact must be deleted, never silently reused")
}

func TestFresh_MissingFileIsAbsent(t *testing.T) {
	s := newTestStore(t)
	fresh, err := s.Fresh(KeyClientJar, testRelease(t, "1.14.4"))
	require.NoError(t, err)
	assert.False(t, fresh)
}

func TestPublish_AtomicRename(t *testing.T) {
	s := newTestStore(t)
	r := testRelease(t, "1.14.4")

	err := s.Publish(KeyDependencies, r, func(path string) error {
		return os.WriteFile(path, []byte(`{"deps":[]}`), 0o644)
	})
	require.NoError(t, err)

	fresh, err := s.Fresh(KeyDependencies, r)
	require.NoError(t, err)
	assert.True(t, fresh)
}

func TestPublish_FailedWriteLeavesNothing(t *testing.T) {
	s := newTestStore(t)
	r := testRelease(t, "1.14.4")

	err := s.Publish(KeyDependencies, r, func(path string) error {
		return os.ErrPermission
	})
	require.Error(t, err)

	exists, err := s.Exists(KeyDependencies, r)
	require.NoError(t, err)
	assert.False(t, exists)

	// No stray temp files either.
	dir, err := s.Resolve(KeyDependencies, r)
	require.NoError(t, err)
	entries, readErr := os.ReadDir(filepath.Dir(dir))
	if readErr == nil {
		for _, e := range entries {
			assert.False(t, strings.Contains(e.Name(), ".tmp"), "stray temp file %s", e.Name())
		}
	}
}

func TestPatchPath(t *testing.T) {
	s := NewStore("/store", Flavors{})
	r := testRelease(t, "1.14.4")

	merged := s.PatchPath(r, graph.VariantMerged, "sparrow", 3, ".sigs")
	assert.Equal(t, "/store/patches/1.14.4-sparrow-build.3.sigs", merged)

	client := s.PatchPath(r, graph.VariantClient, "sparrow", 3, ".sigs")
	assert.Equal(t, "/store/patches/1.14.4-client-sparrow-build.3.sigs", client)
}

func TestFingerprint_StableAcrossReads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "artifact.bin")
	require.NoError(t, os.WriteFile(path, []byte("content"), 0o644))

	a, err := Fingerprint(path)
	require.NoError(t, err)
	b, err := Fingerprint(path)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}
