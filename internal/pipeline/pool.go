// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package pipeline implements the bounded-concurrency, priority-ordered
// worker pools described in §4.9: conversion and placement.
package pipeline

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lelloman/quentin/internal/domain"
)

// Job is one unit of work submitted to a pool.
type Job struct {
	TicketID string
	Priority uint16
	Run      func(ctx context.Context)
}

type jobItem struct {
	job     Job
	created time.Time
	index   int
}

type jobHeap []*jobItem

func (h jobHeap) Len() int { return len(h) }
func (h jobHeap) Less(i, j int) bool {
	if h[i].job.Priority != h[j].job.Priority {
		return h[i].job.Priority > h[j].job.Priority
	}
	return h[i].created.Before(h[j].created)
}
func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i]; h[i].index = i; h[j].index = j }
func (h *jobHeap) Push(x any) {
	item := x.(*jobItem)
	item.index = len(*h)
	*h = append(*h, item)
}
func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[0 : n-1]
	return item
}

// Pool is a bounded-concurrency worker set draining a priority queue, per
// §4.9's shared pool contract. Conversion and placement each wrap one.
type Pool struct {
	name          string
	maxConcurrent int

	mu      sync.Mutex
	queue   jobHeap
	active  int
	wake    chan struct{}
	stopped bool

	totalProcessed prometheus.Counter
	totalFailed    prometheus.Counter
	activeGauge    prometheus.Gauge
	queuedGauge    prometheus.Gauge

	processedCount int
	failedCount    int
}

// NewPool starts maxConcurrent worker goroutines draining the priority
// queue. metrics may be nil in tests.
func NewPool(name string, maxConcurrent int, registerer prometheus.Registerer) *Pool {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	p := &Pool{
		name:          name,
		maxConcurrent: maxConcurrent,
		wake:          make(chan struct{}, 1),

		totalProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "quentin_pipeline_jobs_processed_total",
			Help:        "Total jobs processed by a pipeline pool.",
			ConstLabels: prometheus.Labels{"pool": name},
		}),
		totalFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "quentin_pipeline_jobs_failed_total",
			Help:        "Total jobs failed in a pipeline pool.",
			ConstLabels: prometheus.Labels{"pool": name},
		}),
		activeGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "quentin_pipeline_jobs_active",
			Help:        "Jobs currently being worked by a pipeline pool.",
			ConstLabels: prometheus.Labels{"pool": name},
		}),
		queuedGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "quentin_pipeline_jobs_queued",
			Help:        "Jobs waiting in a pipeline pool's queue.",
			ConstLabels: prometheus.Labels{"pool": name},
		}),
	}
	heap.Init(&p.queue)
	if registerer != nil {
		registerer.MustRegister(p.totalProcessed, p.totalFailed, p.activeGauge, p.queuedGauge)
	}
	for i := 0; i < maxConcurrent; i++ {
		go p.workerLoop()
	}
	return p
}

// Submit enqueues a job. Failed(ctx) is up to the caller's Run closure to
// record via MarkFailed/MarkProcessed.
func (p *Pool) Submit(job Job) {
	p.mu.Lock()
	heap.Push(&p.queue, &jobItem{job: job, created: time.Now()})
	p.queuedGauge.Set(float64(len(p.queue)))
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
}

func (p *Pool) workerLoop() {
	for {
		p.mu.Lock()
		if p.stopped {
			p.mu.Unlock()
			return
		}
		if len(p.queue) == 0 {
			p.mu.Unlock()
			<-p.wake
			continue
		}
		item := heap.Pop(&p.queue).(*jobItem)
		p.active++
		p.queuedGauge.Set(float64(len(p.queue)))
		p.activeGauge.Set(float64(p.active))
		p.mu.Unlock()

		item.job.Run(context.Background())

		p.mu.Lock()
		p.active--
		p.activeGauge.Set(float64(p.active))
		p.mu.Unlock()
	}
}

// MarkProcessed/MarkFailed are called by a job's Run closure to account for
// its outcome in the pool's metrics.
func (p *Pool) MarkProcessed() {
	p.mu.Lock()
	p.processedCount++
	p.mu.Unlock()
	p.totalProcessed.Inc()
}

func (p *Pool) MarkFailed() {
	p.mu.Lock()
	p.failedCount++
	p.mu.Unlock()
	p.totalFailed.Inc()
}

func (p *Pool) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	close(p.wake)
}

func (p *Pool) Metrics() domain.PoolMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	return domain.PoolMetrics{
		Active:         p.active,
		MaxConcurrent:  p.maxConcurrent,
		Queued:         len(p.queue),
		TotalProcessed: p.processedCount,
		TotalFailed:    p.failedCount,
	}
}
