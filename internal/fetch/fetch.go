// Package fetch implements checksum-verified artifact acquisition.
//
// The fetcher is deliberately dumb about policy: it performs exactly one
// transfer attempt per call and owns no retry loop. Retry-with-backoff lives
// in RetryPolicy and is applied by the caller, so different call sites can
// carry different policies without duplicating transport code.
//
// Concurrency is bounded twice: a global cap on simultaneous transfers and a
// per-origin cap, both enforced with weighted semaphores. Many releases are
// processed in one run; without the per-origin cap a wide run would hammer a
// single mirror.
package fetch

import (
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/zeebo/blake3"
	"golang.org/x/sync/semaphore"
)

// Algo names a checksum algorithm.
type Algo string

const (
	AlgoSHA1   Algo = "sha1"
	AlgoSHA256 Algo = "sha256"
	AlgoBLAKE3 Algo = "blake3"
)

// Checksum pairs an algorithm with a lowercase hex digest.
type Checksum struct {
	Algo Algo
	Hex  string
}

// newHasher returns a fresh hash state for the algorithm.
func (c Checksum) newHasher() (hash.Hash, error) {
	switch c.Algo {
	case AlgoSHA1:
		return sha1.New(), nil
	case AlgoSHA256:
		return sha256.New(), nil
	case AlgoBLAKE3:
		return blake3.New(), nil
	}
	return nil, fmt.Errorf("unknown checksum algorithm %q", c.Algo)
}

// Matches reports whether the file at path has this checksum.
func (c Checksum) Matches(path string) (bool, error) {
	h, err := c.newHasher()
	if err != nil {
		return false, err
	}
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()
	if _, err := io.Copy(h, f); err != nil {
		return false, err
	}
	return strings.EqualFold(hex.EncodeToString(h.Sum(nil)), c.Hex), nil
}

// Result reports how a fetch was satisfied.
type Result int

const (
	// ResultCached means the destination already matched the expected
	// checksum and no network call was made.
	ResultCached Result = iota

	// ResultDownloaded means bytes were transferred and verified.
	ResultDownloaded
)

func (r Result) String() string {
	if r == ResultCached {
		return "cached"
	}
	return "downloaded"
}

// Fetcher downloads files with checksum verification and bounded concurrency.
// Safe for concurrent use.
type Fetcher struct {
	client       *http.Client
	global       *semaphore.Weighted
	perOriginCap int64

	mu        sync.Mutex
	perOrigin map[string]*semaphore.Weighted
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithClient overrides the HTTP client (used by tests to point at httptest
// servers with custom transports or timeouts).
func WithClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

// New creates a Fetcher with the given concurrency caps. maxConcurrent bounds
// simultaneous transfers across all origins; maxPerOrigin bounds transfers to
// any single host. Both must be at least 1.
func New(maxConcurrent, maxPerOrigin int, opts ...Option) (*Fetcher, error) {
	if maxConcurrent < 1 {
		return nil, fmt.Errorf("maxConcurrent must be >= 1, got %d", maxConcurrent)
	}
	if maxPerOrigin < 1 {
		return nil, fmt.Errorf("maxPerOrigin must be >= 1, got %d", maxPerOrigin)
	}
	f := &Fetcher{
		client:       &http.Client{Timeout: 5 * time.Minute},
		global:       semaphore.NewWeighted(int64(maxConcurrent)),
		perOriginCap: int64(maxPerOrigin),
		perOrigin:    make(map[string]*semaphore.Weighted),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Fetch transfers rawURL to destination, verifying expected if non-nil.
//
// Idempotent reuse: if destination already exists and matches expected, the
// call returns ResultCached without touching the network. With a nil expected
// checksum any existing destination file is trusted.
//
// Crash/failure safety: the transfer writes to a sibling temp file and is
// renamed into place only after the checksum verifies, so a concurrent reader
// never observes a partial artifact and a previously valid destination is
// never replaced by a bad transfer.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, destination string, expected *Checksum) (Result, error) {
	if _, err := os.Stat(destination); err == nil {
		if expected == nil {
			return ResultCached, nil
		}
		ok, err := expected.Matches(destination)
		if err != nil {
			return 0, fmt.Errorf("checking cached file %s: %w", destination, err)
		}
		if ok {
			return ResultCached, nil
		}
		// Present but invalid: remove before re-fetching.
		if err := os.Remove(destination); err != nil {
			return 0, fmt.Errorf("removing invalid cached file %s: %w", destination, err)
		}
	}

	origin, err := originOf(rawURL)
	if err != nil {
		return 0, &TransportError{URL: rawURL, Err: err}
	}

	if err := f.global.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	defer f.global.Release(1)

	sem := f.originSemaphore(origin)
	if err := sem.Acquire(ctx, 1); err != nil {
		return 0, err
	}
	defer sem.Release(1)

	return f.transfer(ctx, rawURL, destination, expected)
}

func (f *Fetcher) originSemaphore(origin string) *semaphore.Weighted {
	f.mu.Lock()
	defer f.mu.Unlock()
	sem, ok := f.perOrigin[origin]
	if !ok {
		sem = semaphore.NewWeighted(f.perOriginCap)
		f.perOrigin[origin] = sem
	}
	return sem
}

func originOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Host == "" {
		return "", fmt.Errorf("url %q has no host", rawURL)
	}
	return u.Host, nil
}

func (f *Fetcher) transfer(ctx context.Context, rawURL, destination string, expected *Checksum) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, &TransportError{URL: rawURL, Err: err}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, &TransportError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &TransportError{URL: rawURL, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return 0, fmt.Errorf("creating destination directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(destination), filepath.Base(destination)+".part*")
	if err != nil {
		return 0, fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	// Remove the temp file on any failure path; rename clears it on success.
	defer os.Remove(tmpPath)

	var hasher hash.Hash
	var dst io.Writer = tmp
	if expected != nil {
		hasher, err = expected.newHasher()
		if err != nil {
			tmp.Close()
			return 0, err
		}
		dst = io.MultiWriter(tmp, hasher)
	}

	if _, err := io.Copy(dst, resp.Body); err != nil {
		tmp.Close()
		return 0, &TransportError{URL: rawURL, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("closing temp file: %w", err)
	}

	if expected != nil {
		actual := hex.EncodeToString(hasher.Sum(nil))
		if !strings.EqualFold(actual, expected.Hex) {
			return 0, &IntegrityError{
				URL:         rawURL,
				Destination: destination,
				Algo:        expected.Algo,
				Expected:    strings.ToLower(expected.Hex),
				Actual:      actual,
			}
		}
	}

	if err := os.Rename(tmpPath, destination); err != nil {
		return 0, fmt.Errorf("publishing %s: %w", destination, err)
	}
	return ResultDownloaded, nil
}
