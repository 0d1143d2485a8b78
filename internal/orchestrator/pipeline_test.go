// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/lelloman/quentin/internal/domain"
	"github.com/lelloman/quentin/internal/pipeline"
)

func waitForState(t *testing.T, store *fakeTicketStore, id string, want domain.StateType) domain.Ticket {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ticket := store.get(id)
		if ticket.State.Type == want {
			return ticket
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("ticket %q never reached state %s (last seen: %s)", id, want, store.get(id).State.Type)
	return domain.Ticket{}
}

func TestPipelineTickConvertsAndPlacesSingleFileTicket(t *testing.T) {
	dir := t.TempDir()
	stagingDir := filepath.Join(dir, "staging")
	srcDir := filepath.Join(stagingDir, "t1")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatalf("mkdir src: %v", err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "song.flac"), []byte("payload"), 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}
	destPath := filepath.Join(dir, "library", "song.flac")

	selected := domain.ScoredCandidate{
		TorrentCandidate: domain.TorrentCandidate{
			Files: []domain.TorrentFile{{Path: "song.flac", Size: 7}},
		},
	}
	ticket := domain.Ticket{
		ID:        "t1",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
		DestPath:  destPath,
	}
	ticket.State = domain.NewConvertingState(1)
	ticket.State.Selected = &selected

	store := newFakeTicketStore(ticket)
	audit := &fakeAuditLog{}
	conversion := pipeline.NewConversionPool(1, pipeline.PassthroughConverter{}, nil)
	placement := pipeline.NewPlacementPool(1, nil)

	o := New(Deps{
		Config:     domain.OrchestratorConfig{StagingDir: stagingDir},
		Tickets:    store,
		Audit:      audit,
		Conversion: conversion,
		Placement:  placement,
	})

	o.pipelineTick(context.Background())

	final := waitForState(t, store, "t1", domain.StateCompleted)
	if final.State.Stats == nil || final.State.Stats.FilesPlaced != 1 {
		t.Fatalf("expected completion stats to report 1 file placed, got %+v", final.State.Stats)
	}

	got, err := os.ReadFile(destPath)
	if err != nil {
		t.Fatalf("read placed file: %v", err)
	}
	if string(got) != "payload" {
		t.Fatalf("expected placed file to carry the original payload, got %q", got)
	}

	for _, kind := range []domain.EventKind{
		domain.EventConversionStarted, domain.EventConversionFinished,
		domain.EventPlacementStarted, domain.EventPlacementFinished,
	} {
		if !audit.has("t1", kind) {
			t.Fatalf("expected audit event %s", kind)
		}
	}
}

func TestPipelineTickDoesNotResubmitInFlightTicket(t *testing.T) {
	dir := t.TempDir()
	stagingDir := filepath.Join(dir, "staging")
	srcDir := filepath.Join(stagingDir, "t1")
	if err := os.MkdirAll(srcDir, 0o755); err != nil {
		t.Fatalf("mkdir src: %v", err)
	}
	if err := os.WriteFile(filepath.Join(srcDir, "song.flac"), []byte("payload"), 0o644); err != nil {
		t.Fatalf("write source file: %v", err)
	}

	selected := domain.ScoredCandidate{
		TorrentCandidate: domain.TorrentCandidate{Files: []domain.TorrentFile{{Path: "song.flac", Size: 7}}},
	}
	ticket := domain.Ticket{
		ID:       "t1",
		DestPath: filepath.Join(dir, "out", "song.flac"),
	}
	ticket.State = domain.NewConvertingState(1)
	ticket.State.Selected = &selected

	store := newFakeTicketStore(ticket)
	conversion := pipeline.NewConversionPool(1, pipeline.PassthroughConverter{}, nil)
	placement := pipeline.NewPlacementPool(1, nil)

	o := New(Deps{
		Config:     domain.OrchestratorConfig{StagingDir: stagingDir},
		Tickets:    store,
		Audit:      &fakeAuditLog{},
		Conversion: conversion,
		Placement:  placement,
	})

	if !o.markPipelineInFlight("t1") {
		t.Fatal("expected first mark to succeed")
	}
	if o.markPipelineInFlight("t1") {
		t.Fatal("expected second mark for the same ticket to be rejected while in flight")
	}

	o.pipelineTick(context.Background())
	if store.get("t1").State.Type != domain.StateConverting {
		t.Fatal("expected the ticket to remain untouched since it was already marked in-flight")
	}
}
