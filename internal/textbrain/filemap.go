// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package textbrain

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/lelloman/quentin/internal/domain"
)

const fileMapConfidenceThreshold = 0.5

var trackNumberPattern = regexp.MustCompile(`^\D*(\d{1,3})\D`)

// MapFiles implements §4.7 op 3: match each expected item (by its hint
// index, e.g. a track list position) against the files carried on a
// candidate. A file only gets a mapping once its confidence clears
// fileMapConfidenceThreshold; everything else is left unmapped.
func MapFiles(itemNames []string, files []domain.TorrentFile) []domain.TrackMapping {
	used := make(map[int]bool, len(files))
	var mappings []domain.TrackMapping

	for itemIdx, name := range itemNames {
		bestFile := -1
		bestConfidence := 0.0

		for fileIdx, f := range files {
			if used[fileIdx] {
				continue
			}
			confidence := fileMatchConfidence(itemIdx, name, f.Path)
			if confidence > bestConfidence {
				bestConfidence = confidence
				bestFile = fileIdx
			}
		}

		if bestFile >= 0 && bestConfidence >= fileMapConfidenceThreshold {
			used[bestFile] = true
			mappings = append(mappings, domain.TrackMapping{
				ItemIndex:  itemIdx,
				FilePath:   files[bestFile].Path,
				Confidence: bestConfidence,
			})
		}
	}
	return mappings
}

// fileMatchConfidence blends basename similarity to the expected item name
// with an explicit leading-track-number match, since torrent file names
// usually lead with a zero-padded index ("03 - Song Title.flac") that a
// pure string-similarity score would otherwise under-weight.
func fileMatchConfidence(itemIdx int, itemName, path string) float64 {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	nameSim := similarity(itemName, base)

	confidence := nameSim
	if n, ok := leadingNumber(base); ok && n == itemIdx+1 {
		confidence = confidence*0.6 + 0.4
	}
	return confidence
}

func leadingNumber(s string) (int, bool) {
	m := trackNumberPattern.FindStringSubmatch(s + " ")
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
