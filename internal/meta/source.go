package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/unearth-dev/unearth/internal/fetch"
)

// Source answers "latest build for key" queries against a metadata feed.
//
// Latest returns (nil, nil) when no record exists for the key; callers treat
// absence as a legitimate steady state, not an error.
type Source interface {
	Latest(ctx context.Context, key string) (*BuildMeta, error)
}

// RemoteSource loads a feed over HTTP once per process and serves lookups
// from memory. The raw feed is cached on disk so repeated runs reuse it
// without a network call (the fetcher's nil-checksum cache reuse).
type RemoteSource struct {
	url       string
	cachePath string
	fetcher   *fetch.Fetcher

	once    sync.Once
	records []BuildMeta
	loadErr error
}

// NewRemoteSource creates a source for the feed at url, caching the raw JSON
// at cachePath.
func NewRemoteSource(url, cachePath string, fetcher *fetch.Fetcher) *RemoteSource {
	return &RemoteSource{url: url, cachePath: cachePath, fetcher: fetcher}
}

// Latest returns the maximum-build record for key, or (nil, nil) if the feed
// has no record for it. The feed is loaded on first use.
func (s *RemoteSource) Latest(ctx context.Context, key string) (*BuildMeta, error) {
	s.once.Do(func() { s.load(ctx) })
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return latest(s.records, key), nil
}

func (s *RemoteSource) load(ctx context.Context) {
	if _, err := s.fetcher.Fetch(ctx, s.url, s.cachePath, nil); err != nil {
		s.loadErr = fmt.Errorf("loading metadata feed %s: %w", s.url, err)
		return
	}
	data, err := os.ReadFile(s.cachePath)
	if err != nil {
		s.loadErr = fmt.Errorf("reading cached metadata feed: %w", err)
		return
	}
	if err := json.Unmarshal(data, &s.records); err != nil {
		s.loadErr = fmt.Errorf("parsing metadata feed %s: %w", s.url, err)
	}
}

// StaticSource serves lookups from an in-memory record list. Used for local
// feeds and in tests.
type StaticSource []BuildMeta

// Latest returns the maximum-build record for key, or (nil, nil).
func (s StaticSource) Latest(_ context.Context, key string) (*BuildMeta, error) {
	return latest(s, key), nil
}
