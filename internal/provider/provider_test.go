package provider

import (
	"archive/zip"
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unearth-dev/unearth/internal/fetch"
	"github.com/unearth-dev/unearth/internal/graph"
	"github.com/unearth-dev/unearth/internal/meta"
	"github.com/unearth-dev/unearth/internal/pipeline"
	"github.com/unearth-dev/unearth/internal/storage"
)

func buildRelease(t *testing.T, entry graph.ManifestEntry) *graph.Release {
	t.Helper()
	g, err := graph.Build([]graph.ManifestEntry{entry})
	require.NoError(t, err)
	return g.ByName(entry.Name)
}

// zipWith builds an in-memory zip archive with one entry.
func zipWith(t *testing.T, name, content string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(name)
	require.NoError(t, err)
	_, err = w.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func newRemote(t *testing.T, src meta.Source, mavenBase string) *Remote {
	t.Helper()
	fetcher, err := fetch.New(2, 2)
	require.NoError(t, err)
	return &Remote{
		StrategyName: "sparrow",
		DataKind:     KindSignatures,
		Source:       src,
		MavenBase:    mavenBase,
		InnerPath:    "signatures/mappings.sigs",
		Ext:          ".sigs",
		Store:        storage.NewStore(t.TempDir(), storage.Flavors{}),
		Fetcher:      fetcher,
		Retry:        fetch.RetryPolicy{Attempts: 2, Interval: time.Millisecond},
	}
}

func TestRemote_MergedFallback(t *testing.T) {
	// Shared obfuscation, merged data exists, no per-variant data.
	r := buildRelease(t, graph.ManifestEntry{
		Name: "1.14.4", Build: 1,
		HasClient: true, HasServer: true,
		SharedObfuscation: true, SharedVersioning: true,
	})

	src := meta.StaticSource{
		{GameVersion: "1.14.4", Build: 3, Maven: "net.ornithemc:sparrow:1.14.4+build.3"},
	}
	p := newRemote(t, src, "https://maven.example/")

	usable, err := p.CanBeUsedOn(context.Background(), r, graph.VariantClient)
	require.NoError(t, err)
	assert.True(t, usable, "merged data must serve the client variant under shared obfuscation")

	// The exact per-variant pair still has no data.
	exists, err := p.ExistsFor(context.Background(), r, graph.VariantClient)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRemote_NoSubstitutionWithSeparateObfuscation(t *testing.T) {
	r := buildRelease(t, graph.ManifestEntry{
		Name: "1.3", Build: 1,
		HasClient: true, HasServer: true,
		SharedObfuscation: false, SharedVersioning: true,
	})

	src := meta.StaticSource{
		{GameVersion: "1.3-client", Build: 1, Maven: "g:a:1.3-client+build.1"},
	}
	p := newRemote(t, src, "https://maven.example/")

	usable, err := p.CanBeUsedOn(context.Background(), r, graph.VariantClient)
	require.NoError(t, err)
	assert.True(t, usable)

	usable, err = p.CanBeUsedOn(context.Background(), r, graph.VariantServer)
	require.NoError(t, err)
	assert.False(t, usable, "server data does not exist and merged substitution does not apply")
}

func TestRemote_MaterializeDownloadsAndExtracts(t *testing.T) {
	payload := zipWith(t, "signatures/mappings.sigs", "class a\tnet/minecraft/Thing\n")
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/net/ornithemc/sparrow/1.14.4+build.3/sparrow-1.14.4+build.3.jar", r.URL.Path)
		w.Write(payload)
	}))
	defer srv.Close()

	r := buildRelease(t, graph.ManifestEntry{
		Name: "1.14.4", Build: 1,
		HasClient: true, HasServer: true,
		SharedObfuscation: true,
	})
	src := meta.StaticSource{
		{GameVersion: "1.14.4", Build: 3, Maven: "net.ornithemc:sparrow:1.14.4+build.3"},
	}
	p := newRemote(t, src, srv.URL+"/")

	outcome, err := p.Materialize(context.Background(), r, graph.VariantClient)
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeSuccess, outcome)

	// Materialized under the merged variant's name with the build number.
	dataPath := p.Store.PatchPath(r, graph.VariantMerged, "sparrow", 3, ".sigs")
	data, err := os.ReadFile(dataPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "net/minecraft/Thing")

	// Second materialize is a cache hit: no new network traffic.
	outcome, err = p.Materialize(context.Background(), r, graph.VariantClient)
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeUpToDate, outcome)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRemote_MaterializeNotRunWhenFeedEmpty(t *testing.T) {
	r := buildRelease(t, graph.ManifestEntry{Name: "0.0.1", Build: 1, HasClient: true})
	p := newRemote(t, meta.StaticSource{}, "https://maven.example/")

	outcome, err := p.Materialize(context.Background(), r, graph.VariantClient)
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeNotRun, outcome)
}

func TestRemote_ApplyStreamsData(t *testing.T) {
	payload := zipWith(t, "signatures/mappings.sigs", "sig-content")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))
	defer srv.Close()

	r := buildRelease(t, graph.ManifestEntry{
		Name: "1.14.4", Build: 1,
		HasClient: true, HasServer: true,
		SharedObfuscation: true,
	})
	src := meta.StaticSource{
		{GameVersion: "1.14.4", Build: 3, Maven: "net.ornithemc:sparrow:1.14.4+build.3"},
	}
	p := newRemote(t, src, srv.URL+"/")

	_, err := p.Materialize(context.Background(), r, graph.VariantClient)
	require.NoError(t, err)

	var sink strings.Builder
	require.NoError(t, p.Apply(context.Background(), r, graph.VariantClient, &sink))
	assert.Equal(t, "sig-content", sink.String())
}

func TestRegistry_FirstMatchWins(t *testing.T) {
	r := buildRelease(t, graph.ManifestEntry{Name: "1.14.4", Build: 1, HasClient: true, HasServer: true, SharedObfuscation: true})

	missing := newRemote(t, meta.StaticSource{}, "https://maven.example/")
	missing.StrategyName = "first-but-empty"
	present := newRemote(t, meta.StaticSource{
		{GameVersion: "1.14.4", Build: 1, Maven: "g:a:v"},
	}, "https://maven.example/")
	present.StrategyName = "second-with-data"

	reg := NewRegistry()
	reg.Add(missing)
	reg.Add(present)

	selected, err := reg.Select(context.Background(), KindSignatures, r, graph.VariantMerged)
	require.NoError(t, err)
	assert.Equal(t, "second-with-data", selected.Name())
}

func TestRegistry_IdentityFallback(t *testing.T) {
	r := buildRelease(t, graph.ManifestEntry{Name: "1.14.4", Build: 1, HasClient: true})

	reg := NewRegistry()
	selected, err := reg.Select(context.Background(), KindNests, r, graph.VariantClient)
	require.NoError(t, err)
	assert.Equal(t, "identity", selected.Name())

	// Identity vacuously satisfies checks and contributes no artifact.
	usable, err := selected.CanBeUsedOn(context.Background(), r, graph.VariantClient)
	require.NoError(t, err)
	assert.True(t, usable)

	outcome, err := selected.Materialize(context.Background(), r, graph.VariantClient)
	require.NoError(t, err)
	assert.Equal(t, pipeline.OutcomeNotRun, outcome)

	var sink strings.Builder
	require.NoError(t, selected.Apply(context.Background(), r, graph.VariantClient, &sink))
	assert.Empty(t, sink.String())
}
