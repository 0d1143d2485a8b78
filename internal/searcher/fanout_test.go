// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package searcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lelloman/quentin/internal/domain"
	"github.com/lelloman/quentin/internal/ratelimiter"
)

type fakeBackend struct {
	candidates []domain.TorrentCandidate
	err        error
}

func (f *fakeBackend) Query(ctx context.Context, indexer string, q domain.SearchQuery) ([]domain.TorrentCandidate, error) {
	return f.candidates, f.err
}

type fakeCache struct {
	searchResult []domain.CachedTorrent
	stored       []domain.TorrentCandidate
}

func (f *fakeCache) Search(ctx context.Context, query string, limit int) ([]domain.CachedTorrent, error) {
	return f.searchResult, nil
}

func (f *fakeCache) Store(ctx context.Context, candidates []domain.TorrentCandidate) error {
	f.stored = append(f.stored, candidates...)
	return nil
}

func newTestEngine(backends map[string]Backend, cache Cache) *Engine {
	indexers := make([]domain.IndexerConfig, 0, len(backends))
	enabled := map[string]bool{}
	for name := range backends {
		indexers = append(indexers, domain.IndexerConfig{Name: name, RateLimitRPM: 6000})
		enabled[name] = true
	}
	return NewEngine(backends, enabled, ratelimiter.NewPool(indexers), cache)
}

func TestSearchAggregatesAcrossIndexers(t *testing.T) {
	backends := map[string]Backend{
		"a": &fakeBackend{candidates: []domain.TorrentCandidate{{Title: "X", InfoHash: "h1", Seeders: 5}}},
		"b": &fakeBackend{candidates: []domain.TorrentCandidate{{Title: "Y", InfoHash: "h2", Seeders: 10}}},
	}
	e := newTestEngine(backends, nil)

	result, err := e.Search(context.Background(), domain.SearchQuery{Text: "x", Mode: domain.ExternalOnly})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(result.Candidates))
	}
	if result.Candidates[0].Seeders != 10 {
		t.Fatalf("expected results ordered by seeders descending, got %+v", result.Candidates)
	}
}

func TestSearchAllIndexersFailed(t *testing.T) {
	backends := map[string]Backend{
		"a": &fakeBackend{err: errors.New("boom")},
		"b": &fakeBackend{err: errors.New("boom2")},
	}
	e := newTestEngine(backends, nil)

	_, err := e.Search(context.Background(), domain.SearchQuery{Text: "x", Mode: domain.ExternalOnly})
	if err == nil {
		t.Fatalf("expected AllIndexersFailed error")
	}
	var allFailed *domain.ErrAllIndexersFailed
	if ok := errors.As(err, &allFailed); !ok {
		t.Fatalf("expected *domain.ErrAllIndexersFailed, got %T", err)
	}
	if len(allFailed.Errors) != 2 {
		t.Fatalf("expected 2 indexer errors, got %d", len(allFailed.Errors))
	}
}

func TestSearchAllIndexersRateLimitedNeverFails(t *testing.T) {
	backends := map[string]Backend{
		"a": &fakeBackend{candidates: []domain.TorrentCandidate{{Title: "should never be queried"}}},
	}
	indexers := []domain.IndexerConfig{{Name: "a", RateLimitRPM: 0}}
	e := NewEngine(backends, map[string]bool{"a": true}, ratelimiter.NewPool(indexers), nil)

	result, err := e.Search(context.Background(), domain.SearchQuery{Text: "x", Mode: domain.ExternalOnly})
	if err != nil {
		t.Fatalf("a fully rate-limited search must never surface AllIndexersFailed, got: %v", err)
	}
	if len(result.Candidates) != 0 {
		t.Fatalf("expected no candidates, got %d", len(result.Candidates))
	}
	if len(result.IndexerErrors) != 1 {
		t.Fatalf("expected the rate-limited indexer recorded in IndexerErrors, got %d", len(result.IndexerErrors))
	}
}

func TestSearchPartialFailureStillSucceeds(t *testing.T) {
	backends := map[string]Backend{
		"a": &fakeBackend{candidates: []domain.TorrentCandidate{{Title: "X", InfoHash: "h1", Seeders: 1}}},
		"b": &fakeBackend{err: errors.New("boom")},
	}
	e := newTestEngine(backends, nil)

	result, err := e.Search(context.Background(), domain.SearchQuery{Text: "x", Mode: domain.ExternalOnly})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(result.Candidates))
	}
	if len(result.IndexerErrors) != 1 {
		t.Fatalf("expected 1 indexer error recorded, got %d", len(result.IndexerErrors))
	}
}

func TestSearchCacheAndExternalModeStoresAndFlagsFromCache(t *testing.T) {
	backends := map[string]Backend{
		"a": &fakeBackend{candidates: []domain.TorrentCandidate{{Title: "X", InfoHash: "new-hash", Seeders: 1}}},
	}
	cache := &fakeCache{
		searchResult: []domain.CachedTorrent{{InfoHash: "cached-only", Title: "Cached Only"}},
	}
	e := newTestEngine(backends, cache)

	result, err := e.Search(context.Background(), domain.SearchQuery{Text: "x", Mode: domain.CacheAndExternal})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.CacheHits != 1 || result.ExternalHits != 1 {
		t.Fatalf("expected 1 cache hit and 1 external hit, got %+v", result)
	}
	if len(cache.stored) != 1 {
		t.Fatalf("expected external candidates to be stored in cache, got %d", len(cache.stored))
	}

	var sawCacheOnly bool
	for _, c := range result.Candidates {
		if c.InfoHash == "cached-only" && c.FromCache {
			sawCacheOnly = true
		}
	}
	if !sawCacheOnly {
		t.Fatalf("expected cached-only candidate to be flagged from_cache, got %+v", result.Candidates)
	}
}

func TestDedupMergesSourcesAndSumsSeeders(t *testing.T) {
	candidates := []domain.TorrentCandidate{
		{Title: "First Seen", InfoHash: "AAA", Seeders: 5, PublishedAt: time.Unix(200, 0), Sources: []domain.CandidateSource{{Indexer: "a"}}},
		{Title: "Second Seen", InfoHash: "aaa", Seeders: 3, PublishedAt: time.Unix(100, 0), Sources: []domain.CandidateSource{{Indexer: "b"}}},
	}
	merged := Dedup(candidates)
	if len(merged) != 1 {
		t.Fatalf("expected a single merged group, got %d", len(merged))
	}
	m := merged[0]
	if m.Title != "First Seen" {
		t.Fatalf("expected first-seen title preserved, got %q", m.Title)
	}
	if m.Seeders != 8 {
		t.Fatalf("expected summed seeders of 8, got %d", m.Seeders)
	}
	if !m.PublishedAt.Equal(time.Unix(100, 0)) {
		t.Fatalf("expected earliest publication date preserved, got %v", m.PublishedAt)
	}
	if len(m.Sources) != 2 {
		t.Fatalf("expected sources accumulated from both groups, got %d", len(m.Sources))
	}
}

func TestDedupKeepsHashlessResultsAsSingletons(t *testing.T) {
	candidates := []domain.TorrentCandidate{
		{Title: "No Hash A"},
		{Title: "No Hash B"},
	}
	merged := Dedup(candidates)
	if len(merged) != 2 {
		t.Fatalf("expected hashless results to remain singleton groups, got %d", len(merged))
	}
}
