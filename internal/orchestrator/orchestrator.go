// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package orchestrator runs the three long-lived workers described in
// §4.10: acquisition, download and pipeline. Each worker polls the ticket
// store for tickets in a fixed set of state types, processes them against
// the other components, and advances their state through the store (which
// enforces §4.1's transition table and writes the matching audit event
// atomically).
package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lelloman/quentin/internal/domain"
	"github.com/lelloman/quentin/internal/eventbus"
	"github.com/lelloman/quentin/internal/pipeline"
	"github.com/lelloman/quentin/internal/searcher"
	"github.com/lelloman/quentin/internal/textbrain"
	"github.com/lelloman/quentin/internal/torrentclient"
)

// TicketStore is the subset of store.TicketStore the orchestrator needs.
// Defined here (rather than depending on the concrete store package type)
// so tests can substitute an in-memory fake.
type TicketStore interface {
	Get(ctx context.Context, id string) (domain.Ticket, error)
	List(ctx context.Context, filter domain.TicketFilter) ([]domain.Ticket, int, error)
	UpdateState(ctx context.Context, id string, newState domain.TicketState, expectedUpdatedAt time.Time) (domain.Ticket, error)

	// UpdateProgress patches a ticket's in-place progress fields (the same
	// state Type, different Percent/Speed/ETA/CurrentIdx/FilesPlaced) without
	// writing an audit event, per §4.8/§4.9's carve-out for sub-state refresh.
	UpdateProgress(ctx context.Context, id string, newState domain.TicketState) (domain.Ticket, error)
}

// AuditLog is the subset of store.AuditLog the orchestrator needs.
type AuditLog interface {
	Append(ctx context.Context, kind domain.EventKind, ticketID, userID string, payload []byte) (int64, error)
}

// Orchestrator owns the three workers and their shared dependencies. It is
// created once at startup and stopped once at shutdown, per §9's ownership
// notes.
type Orchestrator struct {
	cfg domain.OrchestratorConfig

	tickets TicketStore
	audit   AuditLog
	search  *searcher.Engine
	brain   *textbrain.Brain
	adapter torrentclient.Adapter

	conversion *pipeline.ConversionPool
	placement  *pipeline.PlacementPool
	bus        *eventbus.Hub

	autoApproveThreshold float64

	pipelineMu       sync.Mutex
	pipelineInFlight map[string]bool

	stop     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

type Deps struct {
	Config               domain.OrchestratorConfig
	AutoApproveThreshold  float64
	Tickets               TicketStore
	Audit                 AuditLog
	Search                *searcher.Engine
	Brain                 *textbrain.Brain
	Adapter               torrentclient.Adapter
	Conversion             *pipeline.ConversionPool
	Placement              *pipeline.PlacementPool
	Bus                    *eventbus.Hub
}

func New(d Deps) *Orchestrator {
	cfg := d.Config
	if cfg.AcquisitionPollSecs <= 0 {
		cfg.AcquisitionPollSecs = 5
	}
	if cfg.DownloadPollSecs <= 0 {
		cfg.DownloadPollSecs = 3
	}
	if cfg.MaxConcurrentDownloads <= 0 {
		cfg.MaxConcurrentDownloads = 3
	}
	if cfg.MaxAcquisitionRetries <= 0 {
		cfg.MaxAcquisitionRetries = 8
	}
	if cfg.DownloadTimeoutSecs <= 0 {
		cfg.DownloadTimeoutSecs = 3600
	}

	return &Orchestrator{
		cfg:                  cfg,
		tickets:              d.Tickets,
		audit:                d.Audit,
		search:               d.Search,
		brain:                d.Brain,
		adapter:              d.Adapter,
		conversion:           d.Conversion,
		placement:            d.Placement,
		bus:                  d.Bus,
		autoApproveThreshold: d.AutoApproveThreshold,
		pipelineInFlight:     make(map[string]bool),
		stop:                 make(chan struct{}),
	}
}

// Start launches the three workers as background goroutines. It returns
// immediately; call Stop for a graceful shutdown.
func (o *Orchestrator) Start() {
	o.wg.Add(3)
	go o.runLoop("acquisition", time.Duration(o.cfg.AcquisitionPollSecs)*time.Second, o.acquisitionTick)
	go o.runLoop("download", time.Duration(o.cfg.DownloadPollSecs)*time.Second, o.downloadTick)
	go o.runLoop("pipeline", time.Duration(o.cfg.DownloadPollSecs)*time.Second, o.pipelineTick)
}

// Stop signals every worker to finish its in-flight tick and return; it
// blocks until all three have exited.
func (o *Orchestrator) Stop() {
	o.stopOnce.Do(func() { close(o.stop) })
	o.wg.Wait()
}

func (o *Orchestrator) runLoop(name string, interval time.Duration, tick func(ctx context.Context)) {
	defer o.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-o.stop:
			log.Info().Str("worker", name).Msg("orchestrator worker stopping")
			return
		case <-ticker.C:
			tick(context.Background())
		}
	}
}

// byPriority sorts tickets by descending priority, breaking ties by
// earlier creation time, implementing the "priority-ordered" poll order
// §4.10 names for the acquisition worker (and, by the same reasoning,
// the other two pollers).
func byPriority(tickets []domain.Ticket) {
	sort.SliceStable(tickets, func(i, j int) bool {
		if tickets[i].Priority != tickets[j].Priority {
			return tickets[i].Priority > tickets[j].Priority
		}
		return tickets[i].CreatedAt.Before(tickets[j].CreatedAt)
	})
}

func (o *Orchestrator) logEvent(ctx context.Context, kind domain.EventKind, ticketID string, payload []byte) {
	if o.audit == nil {
		return
	}
	if _, err := o.audit.Append(ctx, kind, ticketID, "", payload); err != nil {
		log.Error().Err(err).Str("ticket_id", ticketID).Str("kind", string(kind)).Msg("failed to append audit event")
	}
}

func (o *Orchestrator) publishUpdate(ticket domain.Ticket) {
	if o.bus == nil {
		return
	}
	o.bus.PublishTicketUpdate(ticket.ID, ticket.State)
}

// advance validates and persists a state transition, publishing the
// resulting ticket on the event bus. A ConflictingUpdate is treated per
// §7 as "another worker (or the API) advanced the ticket already" and is
// not itself an error worth logging loudly.
func (o *Orchestrator) advance(ctx context.Context, ticket domain.Ticket, newState domain.TicketState) (domain.Ticket, error) {
	updated, err := o.tickets.UpdateState(ctx, ticket.ID, newState, ticket.UpdatedAt)
	if err != nil {
		if _, ok := err.(*domain.ErrConflictingUpdate); ok {
			log.Debug().Str("ticket_id", ticket.ID).Msg("ticket advanced by another writer, skipping")
			return domain.Ticket{}, err
		}
		return domain.Ticket{}, err
	}
	o.publishUpdate(updated)
	return updated, nil
}

// classifyRetryable is the single discipline point for whether a Failed
// transition is retryable, resolving §9's open question by deriving the
// flag from the error kind rather than deciding it ad hoc per call site.
func classifyRetryable(err error) bool {
	switch err.(type) {
	case *domain.ErrAllIndexersFailed, *domain.ErrRateLimited, *domain.ErrStorage:
		return true
	case *domain.ErrLlmUnavailable:
		return true
	case *domain.ErrConflictingUpdate, *domain.ErrIllegalTransition, *domain.ErrNotFound:
		return false
	default:
		return true
	}
}
