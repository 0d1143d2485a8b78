// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orchestrator

import (
	"context"
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lelloman/quentin/internal/domain"
)

type torrentAddedPayload struct {
	InfoHash string `json:"info_hash"`
	Indexer  string `json:"indexer"`
}

// downloadTick admits newly-approved tickets to the torrent client (gated
// by MaxConcurrentDownloads) and refreshes progress on tickets already
// downloading.
func (o *Orchestrator) downloadTick(ctx context.Context) {
	downloading, _, err := o.tickets.List(ctx, domain.TicketFilter{HasStateType: true, StateType: domain.StateDownloading, Limit: 1000})
	if err != nil {
		log.Error().Err(err).Msg("download worker: list downloading tickets")
		return
	}
	for _, t := range downloading {
		select {
		case <-o.stop:
			return
		default:
		}
		o.pollDownload(ctx, t)
	}

	available := o.cfg.MaxConcurrentDownloads - len(downloading)
	if available <= 0 {
		return
	}

	var candidates []domain.Ticket
	for _, st := range []domain.StateType{domain.StateAutoApproved, domain.StateApproved} {
		tickets, _, err := o.tickets.List(ctx, domain.TicketFilter{HasStateType: true, StateType: st, Limit: 100})
		if err != nil {
			log.Error().Err(err).Str("state", string(st)).Msg("download worker: list approved tickets")
			continue
		}
		candidates = append(candidates, tickets...)
	}
	byPriority(candidates)

	for _, t := range candidates {
		if available <= 0 {
			return
		}
		select {
		case <-o.stop:
			return
		default:
		}
		if o.admitDownload(ctx, t) {
			available--
		}
	}
}

// admitDownload adds the ticket's selected candidate to the torrent client
// and transitions it to Downloading. It tries the candidate's sources in
// order, preferring a magnet URI over a bare torrent URL, since most
// candidates carry the former.
func (o *Orchestrator) admitDownload(ctx context.Context, ticket domain.Ticket) bool {
	if ticket.State.Selected == nil {
		log.Error().Str("ticket_id", ticket.ID).Msg("download worker: approved ticket has no selected candidate")
		o.failTicket(ctx, ticket, &domain.ErrStorage{Op: "admit_download", Err: errNoSelectedCandidate})
		return false
	}

	savePath := filepath.Join(o.cfg.StagingDir, ticket.ID)
	infoHash, indexer, err := o.addToTorrentClient(ctx, *ticket.State.Selected, savePath)
	if err != nil {
		log.Warn().Err(err).Str("ticket_id", ticket.ID).Msg("download worker: failed to admit to torrent client")
		o.failTicket(ctx, ticket, err)
		return false
	}

	next := domain.NewDownloadingState(infoHash)
	next.Selected = ticket.State.Selected
	updated, err := o.advance(ctx, ticket, next)
	if err != nil {
		return false
	}
	p, _ := json.Marshal(torrentAddedPayload{InfoHash: infoHash, Indexer: indexer})
	o.logEvent(ctx, domain.EventTorrentAdded, updated.ID, p)
	return true
}

func (o *Orchestrator) addToTorrentClient(ctx context.Context, candidate domain.ScoredCandidate, savePath string) (infoHash, indexer string, err error) {
	for _, src := range candidate.Sources {
		if src.MagnetURI != "" {
			hash, err := o.adapter.AddMagnet(ctx, src.MagnetURI, savePath)
			if err == nil {
				return hash, src.Indexer, nil
			}
			log.Warn().Err(err).Str("indexer", src.Indexer).Msg("download worker: add_magnet failed, trying next source")
			continue
		}
		if src.TorrentURL != "" {
			hash, err := o.adapter.AddURL(ctx, src.TorrentURL, savePath)
			if err == nil {
				return hash, src.Indexer, nil
			}
			log.Warn().Err(err).Str("indexer", src.Indexer).Msg("download worker: add_url failed, trying next source")
			continue
		}
	}
	return "", "", &domain.ErrStorage{Op: "admit_download", Err: errNoUsableSource}
}

// pollDownload refreshes a Downloading ticket's percent/speed/eta (no audit
// event, per §4.8) and reacts to completion, an error state or a timeout
// with zero progress by advancing the ticket's state (each of which is
// audited, being a state-type change).
func (o *Orchestrator) pollDownload(ctx context.Context, ticket domain.Ticket) {
	progress, err := o.adapter.Progress(ctx, ticket.State.InfoHash)
	if err != nil {
		log.Warn().Err(err).Str("ticket_id", ticket.ID).Msg("download worker: progress poll failed")
		return
	}

	if progress.State == domain.DownloadStateError {
		o.failTicket(ctx, ticket, &domain.ErrStorage{Op: "download", Err: errTorrentErrored})
		return
	}

	if progress.Percent >= 100 {
		selected := ticket.State.Selected
		total := 1
		if selected != nil && len(selected.Files) > 0 {
			total = len(selected.Files)
		}
		next := domain.NewConvertingState(total)
		next.Selected = selected
		o.advance(ctx, ticket, next)
		return
	}

	if progress.Percent == 0 && ticket.State.StartedAt != nil {
		timeout := time.Duration(o.cfg.DownloadTimeoutSecs) * time.Second
		if time.Since(*ticket.State.StartedAt) > timeout {
			o.failTicket(ctx, ticket, &domain.ErrStorage{Op: "download", Err: errDownloadTimedOut})
			return
		}
	}

	refreshed := ticket.State
	refreshed.Percent = progress.Percent
	refreshed.Speed = progress.DownSpeed
	refreshed.ETA = progress.ETASecs
	if _, err := o.tickets.UpdateProgress(ctx, ticket.ID, refreshed); err != nil {
		log.Error().Err(err).Str("ticket_id", ticket.ID).Msg("download worker: failed to refresh progress")
	}
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

const (
	errNoSelectedCandidate = simpleErr("approved ticket has no selected candidate")
	errNoUsableSource      = simpleErr("no usable magnet or torrent url among candidate sources")
	errTorrentErrored      = simpleErr("torrent client reported an error state")
	errDownloadTimedOut    = simpleErr("download timed out with no progress")
)
