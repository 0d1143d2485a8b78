// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package ratelimiter implements the per-indexer token bucket pool (§4.4):
// each configured indexer gets its own bucket, refilling at rpm/60 tokens
// per second up to a capacity of rpm. Acquisition never blocks; a caller
// either gets a token or is told how long to wait.
package ratelimiter

import (
	"sync"
	"time"

	"github.com/lelloman/quentin/internal/domain"
)

type bucket struct {
	capacity   float64
	tokens     float64
	refillRate float64 // tokens per second
	updatedAt  time.Time
}

func newBucket(rpm int, now time.Time) *bucket {
	cap := float64(rpm)
	if cap < 0 {
		cap = 0
	}
	return &bucket{
		capacity:   cap,
		tokens:     cap,
		refillRate: cap / 60.0,
		updatedAt:  now,
	}
}

// refill advances the bucket to now, clamping at capacity. Must be called
// with the pool's write lock held.
func (b *bucket) refill(now time.Time) {
	if now.Before(b.updatedAt) {
		return
	}
	elapsed := now.Sub(b.updatedAt).Seconds()
	b.tokens += elapsed * b.refillRate
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
	b.updatedAt = now
}

// setCapacity changes rpm at runtime. The current token level is preserved
// but clamped to the new capacity, per §4.4.
func (b *bucket) setCapacity(rpm int) {
	cap := float64(rpm)
	if cap < 0 {
		cap = 0
	}
	b.capacity = cap
	b.refillRate = cap / 60.0
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
}

// Pool holds one token bucket per indexer name, guarded by a single mutex.
// Each acquire/status call's critical section is a single arithmetic
// update, so contention across indexers stays cheap.
type Pool struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

func NewPool(indexers []domain.IndexerConfig) *Pool {
	p := &Pool{
		buckets: make(map[string]*bucket, len(indexers)),
		now:     time.Now,
	}
	now := p.now()
	for _, idx := range indexers {
		p.buckets[idx.Name] = newBucket(idx.RateLimitRPM, now)
	}
	return p
}

// Configure adds or updates the bucket for an indexer, e.g. after the
// searcher config is reloaded at runtime.
func (p *Pool) Configure(indexer string, rpm int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.buckets[indexer]
	if !ok {
		p.buckets[indexer] = newBucket(rpm, p.now())
		return
	}
	b.refill(p.now())
	b.setCapacity(rpm)
}

// TryAcquire attempts to take one token for indexer. On success it returns
// nil. On failure it returns *domain.ErrRateLimited carrying the number of
// milliseconds until a token will be available.
func (p *Pool) TryAcquire(indexer string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	b, ok := p.buckets[indexer]
	if !ok {
		// Unconfigured indexers are treated as unlimited: nothing to
		// refill or subtract from.
		return nil
	}

	now := p.now()
	b.refill(now)

	if b.tokens >= 1 {
		b.tokens--
		return nil
	}

	var retryAfterMs int64
	if b.refillRate > 0 {
		retryAfterMs = int64(((1 - b.tokens) / b.refillRate) * 1000)
	}
	return &domain.ErrRateLimited{Indexer: indexer, RetryAfterMs: retryAfterMs}
}

// Status returns a refilled snapshot of every known indexer's bucket.
func (p *Pool) Status() []domain.RateBucketStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	out := make([]domain.RateBucketStatus, 0, len(p.buckets))
	for name, b := range p.buckets {
		b.refill(now)
		out = append(out, domain.RateBucketStatus{
			Indexer:     name,
			CapacityRPM: int(b.capacity),
			Tokens:      b.tokens,
			RefillRate:  b.refillRate,
		})
	}
	return out
}
