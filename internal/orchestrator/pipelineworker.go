// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orchestrator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/lelloman/quentin/internal/domain"
	"github.com/lelloman/quentin/internal/pipeline"
)

type conversionStartedPayload struct {
	Items int `json:"items"`
}

type conversionFailedPayload struct {
	Item  string `json:"item"`
	Error string `json:"error"`
}

type placementFailedPayload struct {
	Item  string `json:"item"`
	Error string `json:"error"`
}

// pipelineTick submits Converting tickets that have not yet been handed to
// the conversion pool. A ticket stays State.Type == Converting for as long
// as its conversion job runs, so pipelineInFlight guards against
// resubmitting it on every subsequent tick.
func (o *Orchestrator) pipelineTick(ctx context.Context) {
	tickets, _, err := o.tickets.List(ctx, domain.TicketFilter{HasStateType: true, StateType: domain.StateConverting, Limit: 100})
	if err != nil {
		log.Error().Err(err).Msg("pipeline worker: list converting tickets")
		return
	}
	byPriority(tickets)

	for _, t := range tickets {
		select {
		case <-o.stop:
			return
		default:
		}
		if o.markPipelineInFlight(t.ID) {
			o.submitConversion(ctx, t)
		}
	}
}

// markPipelineInFlight returns true (and records the ticket as in-flight)
// only the first time it is called for a given ticket ID; later calls
// return false until clearPipelineInFlight runs.
func (o *Orchestrator) markPipelineInFlight(ticketID string) bool {
	o.pipelineMu.Lock()
	defer o.pipelineMu.Unlock()
	if o.pipelineInFlight[ticketID] {
		return false
	}
	o.pipelineInFlight[ticketID] = true
	return true
}

func (o *Orchestrator) clearPipelineInFlight(ticketID string) {
	o.pipelineMu.Lock()
	delete(o.pipelineInFlight, ticketID)
	o.pipelineMu.Unlock()
}

func (o *Orchestrator) submitConversion(ctx context.Context, ticket domain.Ticket) {
	// A force-magnet ticket carries no Selected candidate; conversionItems
	// then falls back to the staged payload itself.
	var selected domain.ScoredCandidate
	if ticket.State.Selected != nil {
		selected = *ticket.State.Selected
	}

	var output domain.OutputConstraints
	if ticket.Output != nil {
		output = *ticket.Output
	}
	items := conversionItems(o.cfg.StagingDir, ticket, selected, output)
	destDir := filepath.Join(o.cfg.StagingDir, ticket.ID, "converted")
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		o.clearPipelineInFlight(ticket.ID)
		o.failTicket(ctx, ticket, &domain.ErrStorage{Op: "submit_conversion", Err: err})
		return
	}

	sp, _ := json.Marshal(conversionStartedPayload{Items: len(items)})
	o.logEvent(ctx, domain.EventConversionStarted, ticket.ID, sp)

	o.conversion.Submit(pipeline.ConversionJob{
		TicketID: ticket.ID,
		Priority: ticket.Priority,
		Items:    items,
		DestDir:  destDir,
		Output:   output,

		OnItemStarted: func(idx int, item domain.ConversionItem) {
			refreshed := ticket.State
			refreshed.CurrentIdx = idx
			refreshed.CurrentName = item.SourcePath
			if _, err := o.tickets.UpdateProgress(ctx, ticket.ID, refreshed); err != nil {
				log.Error().Err(err).Str("ticket_id", ticket.ID).Msg("pipeline worker: failed to refresh conversion progress")
			}
		},
		OnFailed: func(idx int, item domain.ConversionItem, err error) {
			o.clearPipelineInFlight(ticket.ID)
			fp, _ := json.Marshal(conversionFailedPayload{Item: item.SourcePath, Error: err.Error()})
			o.logEvent(ctx, domain.EventConversionFailed, ticket.ID, fp)
			o.failTicket(ctx, ticket, &domain.ErrStorage{Op: "conversion", Err: err})
		},
		OnCompleted: func(destPaths []string) {
			o.logEvent(ctx, domain.EventConversionFinished, ticket.ID, nil)
			updated, err := o.advance(ctx, ticket, domain.NewPlacingState(len(destPaths)))
			o.clearPipelineInFlight(ticket.ID)
			if err != nil {
				return
			}
			o.submitPlacement(ctx, updated, destPaths)
		},
	})
}

func (o *Orchestrator) submitPlacement(ctx context.Context, ticket domain.Ticket, convertedPaths []string) {
	o.logEvent(ctx, domain.EventPlacementStarted, ticket.ID, nil)

	o.placement.Submit(pipeline.PlacementJob{
		TicketID: ticket.ID,
		Priority: ticket.Priority,
		Items:    placementItems(ticket, convertedPaths),

		OnItemPlaced: func(idx int, item domain.PlacementItem) {
			refreshed := ticket.State
			refreshed.FilesPlaced = idx + 1
			if _, err := o.tickets.UpdateProgress(ctx, ticket.ID, refreshed); err != nil {
				log.Error().Err(err).Str("ticket_id", ticket.ID).Msg("pipeline worker: failed to refresh placement progress")
			}
		},
		OnFailed: func(idx int, item domain.PlacementItem, err error) {
			fp, _ := json.Marshal(placementFailedPayload{Item: item.DestPath, Error: err.Error()})
			o.logEvent(ctx, domain.EventPlacementFailed, ticket.ID, fp)
			o.logEvent(ctx, domain.EventPlacementRolledBack, ticket.ID, nil)
			o.failTicket(ctx, ticket, &domain.ErrStorage{Op: "placement", Err: err})
		},
		OnCompleted: func() {
			o.logEvent(ctx, domain.EventPlacementFinished, ticket.ID, nil)
			stats := domain.CompletionStats{FilesPlaced: len(convertedPaths)}
			if ticket.State.StartedAt != nil {
				stats.DurationMillis = 0
			}
			o.advance(ctx, ticket, domain.NewCompletedState(stats))
		},
	})
}

// conversionItems decides what the conversion pool should read and write
// for one ticket: a file map built by the scorer against this specific
// ticket's items if present, otherwise every file the candidate reports,
// otherwise (a single-file torrent) the staged payload itself.
func conversionItems(stagingDir string, ticket domain.Ticket, selected domain.ScoredCandidate, output domain.OutputConstraints) []domain.ConversionItem {
	base := filepath.Join(stagingDir, ticket.ID)

	if len(selected.FileMap) > 0 {
		items := make([]domain.ConversionItem, 0, len(selected.FileMap))
		for _, m := range selected.FileMap {
			name := filepath.Base(m.FilePath)
			items = append(items, domain.ConversionItem{
				SourcePath: filepath.Join(base, m.FilePath),
				DestName:   convertedName(name, output),
			})
		}
		return items
	}

	if len(selected.Files) > 0 {
		items := make([]domain.ConversionItem, 0, len(selected.Files))
		for _, f := range selected.Files {
			items = append(items, domain.ConversionItem{
				SourcePath: filepath.Join(base, f.Path),
				DestName:   convertedName(filepath.Base(f.Path), output),
			})
		}
		return items
	}

	return []domain.ConversionItem{{
		SourcePath: base,
		DestName:   convertedName(filepath.Base(ticket.DestPath), output),
	}}
}

func convertedName(name string, output domain.OutputConstraints) string {
	if output.Audio != nil && output.Audio.Format != "" {
		ext := filepath.Ext(name)
		return strings.TrimSuffix(name, ext) + "." + output.Audio.Format
	}
	return name
}

// placementItems decides each converted file's final resting place. A
// single converted file lands directly at the ticket's DestPath; multiple
// files land under DestPath as a directory, keeping their converted names.
func placementItems(ticket domain.Ticket, convertedPaths []string) []domain.PlacementItem {
	if len(convertedPaths) == 1 {
		return []domain.PlacementItem{{SourcePath: convertedPaths[0], DestPath: ticket.DestPath}}
	}
	items := make([]domain.PlacementItem, 0, len(convertedPaths))
	for _, p := range convertedPaths {
		items = append(items, domain.PlacementItem{SourcePath: p, DestPath: filepath.Join(ticket.DestPath, filepath.Base(p))})
	}
	return items
}
