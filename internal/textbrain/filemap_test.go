// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package textbrain

import (
	"testing"

	"github.com/lelloman/quentin/internal/domain"
)

func TestMapFilesMatchesByTrackNumberAndName(t *testing.T) {
	items := []string{"Intro", "One More Time", "Aerodynamic"}
	files := []domain.TorrentFile{
		{Path: "02 - One More Time.flac"},
		{Path: "01 - Intro.flac"},
		{Path: "03 - Aerodynamic.flac"},
	}

	mappings := MapFiles(items, files)
	if len(mappings) != 3 {
		t.Fatalf("expected all 3 items mapped, got %d: %+v", len(mappings), mappings)
	}

	byItem := map[int]domain.TrackMapping{}
	for _, m := range mappings {
		byItem[m.ItemIndex] = m
	}
	if byItem[0].FilePath != "01 - Intro.flac" {
		t.Fatalf("expected item 0 mapped to the intro file, got %+v", byItem[0])
	}
	if byItem[1].FilePath != "02 - One More Time.flac" {
		t.Fatalf("expected item 1 mapped to One More Time, got %+v", byItem[1])
	}
}

func TestMapFilesLeavesUnmatchedBelowConfidence(t *testing.T) {
	items := []string{"Totally Unrelated Track Name"}
	files := []domain.TorrentFile{{Path: "99 - xyz.flac"}}

	mappings := MapFiles(items, files)
	if len(mappings) != 0 {
		t.Fatalf("expected no mapping below the confidence threshold, got %+v", mappings)
	}
}

func TestMapFilesDoesNotReuseAFile(t *testing.T) {
	items := []string{"Song", "Song"}
	files := []domain.TorrentFile{{Path: "01 - Song.flac"}}

	mappings := MapFiles(items, files)
	if len(mappings) != 1 {
		t.Fatalf("expected only one item to claim the single file, got %+v", mappings)
	}
}
