// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package searcher

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lelloman/quentin/internal/domain"
	"github.com/lelloman/quentin/internal/ratelimiter"
	"github.com/lelloman/quentin/internal/statemachine"
)

// Cache is the subset of the torrent metadata cache the fan-out engine
// needs: a LIKE search for CacheOnly/Both, and a store call to persist
// fresh external candidates for ExternalOnly/Both.
type Cache interface {
	Search(ctx context.Context, query string, limit int) ([]domain.CachedTorrent, error)
	Store(ctx context.Context, candidates []domain.TorrentCandidate) error
}

// Engine fans a SearchQuery out to every target indexer concurrently,
// gated by the rate-limiter pool, then merges, dedups and ranks results.
type Engine struct {
	backends map[string]Backend
	limiter  *ratelimiter.Pool
	cache    Cache

	mu      sync.Mutex
	enabled map[string]bool
}

func NewEngine(backends map[string]Backend, enabled map[string]bool, limiter *ratelimiter.Pool, cache Cache) *Engine {
	e := make(map[string]bool, len(enabled))
	for k, v := range enabled {
		e[k] = v
	}
	return &Engine{backends: backends, enabled: e, limiter: limiter, cache: cache}
}

// SetEnabled flips whether indexer name participates in future fan-outs,
// backing `PATCH /searcher/indexers/{name}`.
func (e *Engine) SetEnabled(name string, enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled[name] = enabled
}

// IndexerNames returns every backend name the engine knows about, sorted.
func (e *Engine) IndexerNames() []string {
	names := make([]string, 0, len(e.backends))
	for name := range e.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Engine) isEnabled(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.enabled == nil {
		return true
	}
	enabled, ok := e.enabled[name]
	if !ok {
		return true
	}
	return enabled
}

type indexerOutcome struct {
	indexer    string
	candidates []domain.TorrentCandidate
	err        error
}

func (e *Engine) targetIndexers(q domain.SearchQuery) []string {
	requested := q.Indexers
	if len(requested) == 0 {
		for name := range e.backends {
			requested = append(requested, name)
		}
	}
	var targets []string
	for _, name := range requested {
		if e.isEnabled(name) {
			if _, ok := e.backends[name]; ok {
				targets = append(targets, name)
			}
		}
	}
	return targets
}

// Search implements §4.5's contract end to end, including the cache mode
// interaction from §4.5's "Interaction with cache" subsection.
func (e *Engine) Search(ctx context.Context, q domain.SearchQuery) (domain.SearchResult, error) {
	start := time.Now()
	mode := q.Mode
	if mode == "" {
		mode = domain.CacheAndExternal
	}

	var cacheCandidates []domain.TorrentCandidate
	if mode == domain.CacheOnly || mode == domain.CacheAndExternal {
		if e.cache != nil {
			limit := q.Limit
			if limit <= 0 {
				limit = 200
			}
			cached, err := e.cache.Search(ctx, q.Text, limit)
			if err == nil {
				for _, c := range cached {
					cacheCandidates = append(cacheCandidates, domain.TorrentCandidate{
						Title:       c.Title,
						InfoHash:    c.InfoHash,
						SizeBytes:   c.SizeBytes,
						Category:    c.Category,
						PublishedAt: c.FirstSeenAt,
						Files:       c.Files,
						Sources:     cachedSourcesToCandidateSources(c.Sources),
						FromCache:   true,
					})
				}
			}
		}
	}

	var externalCandidates []domain.TorrentCandidate
	indexerErrors := map[string]string{}

	if mode == domain.ExternalOnly || mode == domain.CacheAndExternal {
		targets := e.targetIndexers(q)
		outcomes := make([]indexerOutcome, 0, len(targets))
		var outcomesMu sync.Mutex

		// Rate-limited skips are tracked apart from attempted-and-failed
		// backends: §7 requires RateLimited to never bubble up as
		// AllIndexersFailed, even when every target is currently throttled.
		rateLimited := map[string]string{}
		attempted := 0

		group, groupCtx := errgroup.WithContext(ctx)
		for _, name := range targets {
			name := name
			if err := e.limiter.TryAcquire(name); err != nil {
				rateLimited[name] = err.Error()
				continue
			}
			attempted++
			backend := e.backends[name]
			group.Go(func() error {
				candidates, err := backend.Query(groupCtx, name, q)
				outcomesMu.Lock()
				outcomes = append(outcomes, indexerOutcome{indexer: name, candidates: candidates, err: err})
				outcomesMu.Unlock()
				return nil // a single indexer's failure never aborts its siblings
			})
		}
		_ = group.Wait()

		succeeded := 0
		for _, outcome := range outcomes {
			if outcome.err != nil {
				indexerErrors[outcome.indexer] = outcome.err.Error()
				continue
			}
			succeeded++
			externalCandidates = append(externalCandidates, outcome.candidates...)
		}

		if attempted > 0 && succeeded == 0 {
			return domain.SearchResult{}, &domain.ErrAllIndexersFailed{Errors: indexerErrors}
		}

		for name, msg := range rateLimited {
			indexerErrors[name] = msg
		}

		if e.cache != nil && len(externalCandidates) > 0 {
			_ = e.cache.Store(ctx, externalCandidates)
		}
	}

	merged := Dedup(append(append([]domain.TorrentCandidate{}, cacheCandidates...), externalCandidates...))

	cacheHashes := map[string]bool{}
	for _, c := range cacheCandidates {
		cacheHashes[strings.ToLower(c.InfoHash)] = true
	}
	externalHashes := map[string]bool{}
	for _, c := range externalCandidates {
		externalHashes[strings.ToLower(c.InfoHash)] = true
	}
	for i := range merged {
		hash := strings.ToLower(merged[i].InfoHash)
		merged[i].FromCache = cacheHashes[hash] && !externalHashes[hash]
	}

	limit := q.Limit
	if limit > 0 && limit < len(merged) {
		merged = merged[:limit]
	}

	result := domain.SearchResult{
		Candidates:     merged,
		CacheHits:      len(cacheCandidates),
		ExternalHits:   len(externalCandidates),
		DurationMillis: time.Since(start).Milliseconds(),
	}
	if len(indexerErrors) > 0 {
		result.IndexerErrors = indexerErrors
	}
	return result, nil
}

func cachedSourcesToCandidateSources(in []domain.CachedTorrentSource) []domain.CandidateSource {
	out := make([]domain.CandidateSource, len(in))
	for i, s := range in {
		out[i] = domain.CandidateSource{
			Indexer:    s.Indexer,
			MagnetURI:  s.MagnetURI,
			TorrentURL: s.TorrentURL,
			Seeders:    s.Seeders,
			Leechers:   s.Leechers,
			DetailsURL: s.DetailsURL,
			UpdatedAt:  s.UpdatedAt,
		}
	}
	return out
}

// Dedup groups candidates by lowercase info-hash (results lacking one are
// kept as singleton groups), merges seeders/leechers/sources/files, keeps
// the first-seen title and the earliest publication date, then orders by
// seeders descending with statemachine.BreakTie settling ties.
func Dedup(candidates []domain.TorrentCandidate) []domain.TorrentCandidate {
	order := []string{}
	groups := map[string]*domain.TorrentCandidate{}
	anon := 0

	for _, c := range candidates {
		key := strings.ToLower(c.InfoHash)
		if key == "" {
			key = "__anon__" + strconv.Itoa(anon)
			anon++
		}

		existing, ok := groups[key]
		if !ok {
			cp := c
			cp.InfoHash = strings.ToLower(c.InfoHash)
			groups[key] = &cp
			order = append(order, key)
			continue
		}

		existing.Seeders += c.Seeders
		existing.Leechers += c.Leechers
		if !c.PublishedAt.IsZero() && (existing.PublishedAt.IsZero() || c.PublishedAt.Before(existing.PublishedAt)) {
			existing.PublishedAt = c.PublishedAt
		}
		if len(existing.Files) == 0 && len(c.Files) > 0 {
			existing.Files = c.Files
		}
		existing.Sources = append(existing.Sources, c.Sources...)
		existing.FromCache = existing.FromCache && c.FromCache
	}

	out := make([]domain.TorrentCandidate, 0, len(order))
	for _, key := range order {
		out = append(out, *groups[key])
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Seeders != out[j].Seeders {
			return out[i].Seeders > out[j].Seeders
		}
		return statemachine.BreakTie(domain.ScoredCandidate{TorrentCandidate: out[i]}, domain.ScoredCandidate{TorrentCandidate: out[j]})
	})
	return out
}
