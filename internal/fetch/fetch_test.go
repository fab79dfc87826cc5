package fetch

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sha1Of(data []byte) string {
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:])
}

func newTestFetcher(t *testing.T) *Fetcher {
	t.Helper()
	f, err := New(4, 2)
	require.NoError(t, err)
	return f
}

func TestFetch_DownloadsAndVerifies(t *testing.T) {
	body := []byte("artifact bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	dest := filepath.Join(t.TempDir(), "artifact.jar")

	result, err := f.Fetch(context.Background(), srv.URL, dest, &Checksum{Algo: AlgoSHA1, Hex: sha1Of(body)})
	require.NoError(t, err)
	assert.Equal(t, ResultDownloaded, result)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestFetch_CachedReuseSkipsNetwork(t *testing.T) {
	body := []byte("cached content")
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write(body)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	dest := filepath.Join(t.TempDir(), "artifact.jar")
	require.NoError(t, os.WriteFile(dest, body, 0o644))

	result, err := f.Fetch(context.Background(), srv.URL, dest, &Checksum{Algo: AlgoSHA1, Hex: sha1Of(body)})
	require.NoError(t, err)
	assert.Equal(t, ResultCached, result)
	assert.Zero(t, hits.Load(), "no network call expected on checksum match")
}

func TestFetch_ChecksumMismatchLeavesNoFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("wrong bytes"))
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	dest := filepath.Join(t.TempDir(), "artifact.jar")

	_, err := f.Fetch(context.Background(), srv.URL, dest, &Checksum{Algo: AlgoSHA1, Hex: sha1Of([]byte("expected bytes"))})
	require.Error(t, err)

	var ie *IntegrityError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, AlgoSHA1, ie.Algo)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr), "no file may be left at destination after an integrity mismatch")
}

func TestFetch_InvalidCachedFileIsRefetched(t *testing.T) {
	body := []byte("good bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	dest := filepath.Join(t.TempDir(), "artifact.jar")
	require.NoError(t, os.WriteFile(dest, []byte("stale bytes"), 0o644))

	result, err := f.Fetch(context.Background(), srv.URL, dest, &Checksum{Algo: AlgoSHA1, Hex: sha1Of(body)})
	require.NoError(t, err)
	assert.Equal(t, ResultDownloaded, result)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, body, got)
}

func TestFetch_TransportFailurePreservesValidFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	dest := filepath.Join(t.TempDir(), "artifact.jar")

	_, err := f.Fetch(context.Background(), srv.URL, dest, nil)
	var te *TransportError
	require.ErrorAs(t, err, &te)

	_, statErr := os.Stat(dest)
	assert.True(t, os.IsNotExist(statErr), "failed transfer must not leave a partial file")
}

func TestFetch_BLAKE3Checksum(t *testing.T) {
	body := []byte("fingerprinted")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(body)
	}))
	defer srv.Close()

	f := newTestFetcher(t)
	dir := t.TempDir()

	// First download without a checksum, fingerprint it, then verify a
	// second fetch against that fingerprint is a cache hit.
	first := filepath.Join(dir, "first.bin")
	_, err := f.Fetch(context.Background(), srv.URL, first, nil)
	require.NoError(t, err)

	c := Checksum{Algo: AlgoBLAKE3}
	h, err := c.newHasher()
	require.NoError(t, err)
	h.Write(body)
	c.Hex = hex.EncodeToString(h.Sum(nil))

	result, err := f.Fetch(context.Background(), srv.URL, first, &c)
	require.NoError(t, err)
	assert.Equal(t, ResultCached, result)
}

func TestNew_RejectsInvalidCaps(t *testing.T) {
	_, err := New(0, 1)
	assert.Error(t, err)
	_, err = New(1, 0)
	assert.Error(t, err)
}

func TestRetryPolicy_RetriesTransportFailures(t *testing.T) {
	var calls int
	policy := RetryPolicy{Attempts: 3, Interval: time.Millisecond}

	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return &TransportError{URL: "http://example", Err: errors.New("reset")}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryPolicy_DoesNotRetryNonRetryable(t *testing.T) {
	var calls int
	policy := RetryPolicy{Attempts: 5, Interval: time.Millisecond}

	sentinel := errors.New("logic bug")
	err := policy.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_ExhaustionReturnsLastError(t *testing.T) {
	policy := RetryPolicy{Attempts: 2, Interval: time.Millisecond}

	err := policy.Do(context.Background(), func(ctx context.Context) error {
		return &TransportError{URL: "http://example", Err: errors.New("down")}
	})
	assert.True(t, IsTransportError(err))
}

func TestRetryPolicy_CancellationStopsRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	policy := RetryPolicy{Attempts: 10, Interval: time.Hour}

	var calls int
	done := make(chan error, 1)
	go func() {
		done <- policy.Do(ctx, func(ctx context.Context) error {
			calls++
			return &TransportError{URL: "http://example", Err: errors.New("down")}
		})
	}()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("retry loop did not observe cancellation")
	}
}
