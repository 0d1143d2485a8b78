// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/lelloman/quentin/internal/domain"
)

func approvedTicket(id string) domain.Ticket {
	now := time.Now().UTC()
	selected := domain.ScoredCandidate{
		TorrentCandidate: domain.TorrentCandidate{
			Title:    "Some Album",
			InfoHash: "cand-hash",
			Sources:  []domain.CandidateSource{{Indexer: "indexer-a", MagnetURI: "magnet:?xt=urn:btih:cand-hash"}},
		},
		Score: 0.9,
	}
	return domain.Ticket{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		DestPath:  "/library/album/track.flac",
		State:     domain.NewAutoApprovedState(selected, 0.9),
	}
}

func TestDownloadTickAdmitsApprovedTicketViaMagnet(t *testing.T) {
	ticket := approvedTicket("t1")
	store := newFakeTicketStore(ticket)
	audit := &fakeAuditLog{}
	adapter := &fakeAdapter{infoHash: "abc123"}

	o := New(Deps{
		Config:  domain.OrchestratorConfig{StagingDir: "/staging", MaxConcurrentDownloads: 3},
		Tickets: store,
		Audit:   audit,
		Adapter: adapter,
	})

	o.downloadTick(context.Background())

	updated := store.get("t1")
	if updated.State.Type != domain.StateDownloading {
		t.Fatalf("expected ticket to be Downloading, got %s", updated.State.Type)
	}
	if updated.State.InfoHash != "abc123" {
		t.Fatalf("expected info hash abc123, got %q", updated.State.InfoHash)
	}
	if !audit.has("t1", domain.EventTorrentAdded) {
		t.Fatal("expected a torrent_added audit event")
	}
}

func TestDownloadTickRespectsMaxConcurrentDownloads(t *testing.T) {
	already := approvedTicket("already-downloading")
	already.State = domain.NewDownloadingState("existing-hash")
	pending := approvedTicket("pending")

	store := newFakeTicketStore(already, pending)
	o := New(Deps{
		Config:  domain.OrchestratorConfig{StagingDir: "/staging", MaxConcurrentDownloads: 1},
		Tickets: store,
		Audit:   &fakeAuditLog{},
		Adapter: &fakeAdapter{infoHash: "new-hash", progress: domain.DownloadProgress{Percent: 10}},
	})

	o.downloadTick(context.Background())

	if got := store.get("pending").State.Type; got != domain.StateAutoApproved {
		t.Fatalf("expected pending ticket to remain AutoApproved with no free slot, got %s", got)
	}
}

func TestPollDownloadTransitionsToConvertingOnCompletion(t *testing.T) {
	ticket := approvedTicket("t1")
	ticket.State = domain.NewDownloadingState("hash1")
	store := newFakeTicketStore(ticket)

	o := New(Deps{
		Config:  domain.OrchestratorConfig{StagingDir: "/staging", MaxConcurrentDownloads: 3},
		Tickets: store,
		Audit:   &fakeAuditLog{},
		Adapter: &fakeAdapter{progress: domain.DownloadProgress{Percent: 100, State: domain.DownloadStateSeeding}},
	})

	o.downloadTick(context.Background())

	if got := store.get("t1").State.Type; got != domain.StateConverting {
		t.Fatalf("expected ticket to move to Converting on completion, got %s", got)
	}
}

func TestPollDownloadRefreshesProgressWithoutAuditEvent(t *testing.T) {
	ticket := approvedTicket("t1")
	ticket.State = domain.NewDownloadingState("hash1")
	store := newFakeTicketStore(ticket)
	audit := &fakeAuditLog{}

	o := New(Deps{
		Config:  domain.OrchestratorConfig{StagingDir: "/staging", MaxConcurrentDownloads: 3},
		Tickets: store,
		Audit:   audit,
		Adapter: &fakeAdapter{progress: domain.DownloadProgress{Percent: 42, DownSpeed: 1024}},
	})

	before := audit.count()
	o.downloadTick(context.Background())

	updated := store.get("t1")
	if updated.State.Percent != 42 {
		t.Fatalf("expected percent to be refreshed to 42, got %v", updated.State.Percent)
	}
	if audit.count() != before {
		t.Fatalf("expected no audit events from a progress-only refresh, went from %d to %d", before, audit.count())
	}
}

func TestPollDownloadFailsOnErrorState(t *testing.T) {
	ticket := approvedTicket("t1")
	ticket.State = domain.NewDownloadingState("hash1")
	store := newFakeTicketStore(ticket)

	o := New(Deps{
		Config:  domain.OrchestratorConfig{StagingDir: "/staging", MaxConcurrentDownloads: 3},
		Tickets: store,
		Audit:   &fakeAuditLog{},
		Adapter: &fakeAdapter{progress: domain.DownloadProgress{State: domain.DownloadStateError}},
	})

	o.downloadTick(context.Background())

	updated := store.get("t1")
	if updated.State.Type != domain.StateFailed {
		t.Fatalf("expected ticket to move to Failed, got %s", updated.State.Type)
	}
	if !updated.State.Retryable {
		t.Fatal("expected a torrent client error to be classified retryable")
	}
}
