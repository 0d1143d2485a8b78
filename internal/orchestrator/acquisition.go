// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orchestrator

import (
	"context"
	"encoding/json"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lelloman/quentin/internal/domain"
	"github.com/lelloman/quentin/internal/searcher"
	"github.com/lelloman/quentin/internal/statemachine"
	"github.com/lelloman/quentin/internal/textbrain"
)

func (o *Orchestrator) acquisitionTick(ctx context.Context) {
	tickets, _, err := o.tickets.List(ctx, domain.TicketFilter{
		HasStateType: true,
		StateType:    domain.StatePending,
		Limit:        100,
	})
	if err != nil {
		log.Error().Err(err).Msg("acquisition worker: list pending tickets")
		return
	}
	byPriority(tickets)

	for _, t := range tickets {
		select {
		case <-o.stop:
			return
		default:
		}
		o.runAcquisition(ctx, t)
	}
}

func categoriesFor(expected domain.ExpectedContent) []domain.Category {
	switch expected {
	case domain.ExpectedAlbum, domain.ExpectedTrack:
		return []domain.Category{domain.CategoryAudio, domain.CategoryMusic}
	case domain.ExpectedMovie:
		return []domain.Category{domain.CategoryMovies}
	case domain.ExpectedTvEpisode:
		return []domain.Category{domain.CategoryTv}
	default:
		return nil
	}
}

type acquisitionStartedPayload struct {
	StartedAt time.Time `json:"started_at"`
}

type queryBuildPayload struct {
	Queries []string `json:"queries"`
}

type llmCallPayload struct {
	textbrain.LlmCallRecord
	Ticket string `json:"ticket_id"`
}

type searchExecutedPayload struct {
	Query         string `json:"query"`
	ResultsCount  int    `json:"results_count"`
	IndexerErrors map[string]string `json:"indexer_errors,omitempty"`
}

type scoringRoundPayload struct {
	CandidatesScored int     `json:"candidates_scored"`
	BestScore        float64 `json:"best_score"`
	BestInfoHash     string  `json:"best_info_hash,omitempty"`
	AutoApproved     bool    `json:"auto_approved"`
}

// runAcquisition drives one ticket through §4.7's acquisition loop from
// Pending to AutoApproved, NeedsApproval or AcquisitionFailed.
func (o *Orchestrator) runAcquisition(ctx context.Context, ticket domain.Ticket) {
	started := time.Now().UTC()
	ticket, err := o.advance(ctx, ticket, domain.NewAcquiringState(domain.PhaseQueryBuilding, nil, 0, started))
	if err != nil {
		return
	}
	payload, _ := json.Marshal(acquisitionStartedPayload{StartedAt: started})
	o.logEvent(ctx, domain.EventAcquisitionStarted, ticket.ID, payload)

	o.logEvent(ctx, domain.EventQueryBuildStarted, ticket.ID, nil)
	queries, llmRecord, err := o.brain.BuildQueries(ctx, ticket.QueryCtx)
	if llmRecord != nil {
		kind := domain.EventLlmCallFinished
		if llmRecord.Err != "" {
			kind = domain.EventLlmCallFailed
		}
		p, _ := json.Marshal(llmCallPayload{LlmCallRecord: *llmRecord, Ticket: ticket.ID})
		o.logEvent(ctx, kind, ticket.ID, p)
	}
	if err != nil {
		o.failTicket(ctx, ticket, err)
		return
	}
	qp, _ := json.Marshal(queryBuildPayload{Queries: queries})
	o.logEvent(ctx, domain.EventQueryBuildFinished, ticket.ID, qp)

	budget := o.cfg.MaxAcquisitionRetries
	if budget <= 0 || budget > len(queries) {
		budget = len(queries)
	}

	var queriesTried []string
	var allCandidates []domain.TorrentCandidate
	categories := categoriesFor(ticket.QueryCtx.Expected)

	for i := 0; i < budget; i++ {
		select {
		case <-o.stop:
			return
		default:
		}

		q := queries[i]
		ticket, err = o.advance(ctx, ticket, domain.NewAcquiringState(domain.PhaseSearching, queriesTried, len(allCandidates), started))
		if err != nil {
			return
		}

		result, err := o.search.Search(ctx, domain.SearchQuery{Text: q, Categories: categories})
		queriesTried = append(queriesTried, q)

		sp, _ := json.Marshal(searchExecutedPayload{Query: q, ResultsCount: len(result.Candidates), IndexerErrors: result.IndexerErrors})
		o.logEvent(ctx, domain.EventSearchExecuted, ticket.ID, sp)

		if err != nil {
			// AllIndexersFailed and similar: this query's attempt failed,
			// but the loop continues with whatever queries remain.
			log.Warn().Err(err).Str("ticket_id", ticket.ID).Str("query", q).Msg("acquisition query failed")
			continue
		}
		allCandidates = append(allCandidates, result.Candidates...)
	}

	ticket, err = o.advance(ctx, ticket, domain.NewAcquiringState(domain.PhaseScoring, queriesTried, len(allCandidates), started))
	if err != nil {
		return
	}

	deduped := searcher.Dedup(allCandidates)
	scored := make([]domain.ScoredCandidate, 0, len(deduped))
	for _, c := range deduped {
		sc := textbrain.ScoreCandidate(ticket.QueryCtx, c)
		if len(c.Files) > 0 {
			sc.FileMap = textbrain.MapFiles(itemNames(ticket), c.Files)
		}
		scored = append(scored, sc)
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return statemachine.BreakTie(scored[i], scored[j])
	})

	if len(scored) == 0 {
		rp, _ := json.Marshal(scoringRoundPayload{})
		o.logEvent(ctx, domain.EventScoringRound, ticket.ID, rp)
		if _, err := o.advance(ctx, ticket, domain.NewAcquisitionFailedState("no candidates")); err != nil {
			log.Error().Err(err).Str("ticket_id", ticket.ID).Msg("failed to record acquisition failure")
		}
		return
	}

	best := scored[0]
	rp, _ := json.Marshal(scoringRoundPayload{
		CandidatesScored: len(scored),
		BestScore:        best.Score,
		BestInfoHash:     best.InfoHash,
		AutoApproved:     best.Score >= o.autoApproveThreshold,
	})
	o.logEvent(ctx, domain.EventScoringRound, ticket.ID, rp)

	if best.Score >= o.autoApproveThreshold {
		o.advance(ctx, ticket, domain.NewAutoApprovedState(best, best.Score))
		return
	}
	o.advance(ctx, ticket, domain.NewNeedsApprovalState(scored, 0, best.Score))
}

func (o *Orchestrator) failTicket(ctx context.Context, ticket domain.Ticket, err error) {
	retryable := classifyRetryable(err)
	if _, aerr := o.advance(ctx, ticket, domain.NewFailedState(err.Error(), retryable, 0)); aerr != nil {
		log.Error().Err(aerr).Str("ticket_id", ticket.ID).Msg("failed to record acquisition error")
	}
}

// itemNames returns the per-item names MapFiles should match torrent files
// against. Content modules (§4.7) own producing a real track/episode
// listing from an external catalog; that integration is out of scope
// here, so a ticket either names its items explicitly via the
// "track_names" hint (comma-separated) or is treated as a single item
// named after its destination's base path.
func itemNames(ticket domain.Ticket) []string {
	if raw, ok := ticket.QueryCtx.Hints["track_names"]; ok && raw != "" {
		parts := strings.Split(raw, ",")
		names := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				names = append(names, p)
			}
		}
		return names
	}
	return []string{filepath.Base(ticket.DestPath)}
}
