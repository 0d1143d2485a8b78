// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package textbrain

import (
	"fmt"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/moistari/rls"

	"github.com/lelloman/quentin/internal/domain"
)

const (
	titleSimilarityWeight = 0.45
	formatBonus           = 0.1
	languageRequiredBonus = 0.15
	languagePreferredBonus = 0.08
	redFlagPenalty        = 0.2
	countMatchBonus        = 0.1
	durationMatchBonus     = 0.1
)

// similarity returns a normalized [0,1] closeness between a and b, derived
// from the fuzzy package's ranked Levenshtein-style match distance: the
// library doesn't expose a raw edit distance, only a subsequence-aware
// rank, so the distance is normalized against the longer string's length.
func similarity(a, b string) float64 {
	a, b = strings.ToLower(a), strings.ToLower(b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	dist := fuzzy.RankMatchNormalizedFold(a, b)
	if dist < 0 {
		dist = fuzzy.RankMatchNormalizedFold(b, a)
	}
	if dist < 0 {
		return 0
	}
	sim := 1 - float64(dist)/float64(maxLen)
	if sim < 0 {
		sim = 0
	}
	return sim
}

// ScoreCandidate implements §4.7 op 2: a deterministic heuristic score in
// [0,1] with a human-readable explanation of every contribution.
func ScoreCandidate(qctx domain.QueryContext, candidate domain.TorrentCandidate) domain.ScoredCandidate {
	release := rls.ParseString(candidate.Title)

	var score float64
	var reasons []string

	identifier := identifierFor(qctx)
	sim := similarity(identifier, candidate.Title)
	score += sim * titleSimilarityWeight
	reasons = append(reasons, fmt.Sprintf("title similarity %.2f (+%.3f)", sim, sim*titleSimilarityWeight))

	if constraint := qctx.Constraint; constraint != nil {
		if constraint.Audio != nil {
			score, reasons = applyAudioConstraint(score, reasons, constraint.Audio, release, candidate)
		}
		if constraint.Video != nil {
			score, reasons = applyVideoConstraint(score, reasons, constraint.Video, release, candidate)
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return domain.ScoredCandidate{
		TorrentCandidate: candidate,
		Score:            score,
		Reasoning:        strings.Join(reasons, "; "),
	}
}

func identifierFor(qctx domain.QueryContext) string {
	if artist, album := qctx.Hints["artist"], qctx.Hints["album"]; artist != "" || album != "" {
		return strings.TrimSpace(artist + " " + album)
	}
	if title := qctx.Hints["title"]; title != "" {
		return title
	}
	return qctx.Description
}

// fileCount returns a candidate's reported track/episode count, preferring
// the indexer-supplied FileCount attr and falling back to len(Files) when
// the indexer didn't surface one directly.
func fileCount(candidate domain.TorrentCandidate) int {
	if candidate.FileCount > 0 {
		return candidate.FileCount
	}
	return len(candidate.Files)
}

func applyAudioConstraint(score float64, reasons []string, c *domain.AudioConstraint, release rls.Release, candidate domain.TorrentCandidate) (float64, []string) {
	if c.ExpectedTrackCount > 0 {
		if n := fileCount(candidate); n == c.ExpectedTrackCount {
			score += countMatchBonus
			reasons = append(reasons, fmt.Sprintf("track count %d matched (+%.2f)", n, countMatchBonus))
		}
	}
	if c.ExpectedTrackDurationSeconds > 0 && candidate.DurationSeconds > 0 {
		if diff := c.ExpectedTrackDurationSeconds - candidate.DurationSeconds; diff >= -5 && diff <= 5 {
			score += durationMatchBonus
			reasons = append(reasons, fmt.Sprintf("duration %ds within 5s of expected %ds (+%.2f)", candidate.DurationSeconds, c.ExpectedTrackDurationSeconds, durationMatchBonus))
		}
	}
	for _, f := range c.PreferredFormats {
		if strings.EqualFold(f, release.Codec) {
			score += formatBonus
			reasons = append(reasons, fmt.Sprintf("preferred format %s (+%.2f)", f, formatBonus))
			break
		}
	}
	for _, lang := range c.Languages {
		if containsAnyFold(release.Language, lang.Language) {
			bonus := languagePreferredBonus
			if lang.Priority == domain.LanguageRequired {
				bonus = languageRequiredBonus
			}
			score += bonus
			reasons = append(reasons, fmt.Sprintf("language %s matched (+%.2f)", lang.Language, bonus))
		}
	}

	lowerTitle := strings.ToLower(release.Title + " " + release.Group)
	flags := []struct {
		avoid bool
		word  string
	}{
		{c.AvoidKaraoke, "karaoke"},
		{c.AvoidCover, "cover"},
		{c.AvoidTribute, "tribute"},
		{c.AvoidCompilation, "compilation"},
		{c.AvoidLive, "live"},
	}
	for _, f := range flags {
		if f.avoid && strings.Contains(lowerTitle, f.word) {
			score -= redFlagPenalty
			reasons = append(reasons, fmt.Sprintf("red flag %q present (-%.2f)", f.word, redFlagPenalty))
		}
	}
	return score, reasons
}

func applyVideoConstraint(score float64, reasons []string, c *domain.VideoConstraint, release rls.Release, candidate domain.TorrentCandidate) (float64, []string) {
	if c.ExpectedEpisodeCount > 0 {
		if n := fileCount(candidate); n == c.ExpectedEpisodeCount {
			score += countMatchBonus
			reasons = append(reasons, fmt.Sprintf("episode count %d matched (+%.2f)", n, countMatchBonus))
		}
	}
	if c.Resolution != "" && strings.EqualFold(c.Resolution, release.Resolution) {
		score += formatBonus
		reasons = append(reasons, fmt.Sprintf("resolution %s matched (+%.2f)", c.Resolution, formatBonus))
	}
	if c.Codec != "" && strings.EqualFold(c.Codec, release.Codec) {
		score += formatBonus
		reasons = append(reasons, fmt.Sprintf("codec %s matched (+%.2f)", c.Codec, formatBonus))
	}
	for _, lang := range c.Languages {
		if containsAnyFold(release.Language, lang.Language) {
			bonus := languagePreferredBonus
			if lang.Priority == domain.LanguageRequired {
				bonus = languageRequiredBonus
			}
			score += bonus
			reasons = append(reasons, fmt.Sprintf("language %s matched (+%.2f)", lang.Language, bonus))
		}
	}
	if c.AvoidHardSubs && strings.Contains(strings.ToLower(release.Title), "hardsub") {
		score -= redFlagPenalty
		reasons = append(reasons, fmt.Sprintf("hardcoded subs present (-%.2f)", redFlagPenalty))
	}
	return score, reasons
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// containsAnyFold reports whether needle fold-matches any of the release's
// parsed language tags. rls reports Language as a slice since a release can
// be multi-language (e.g. "DUAL", "MULTi").
func containsAnyFold(languages []string, needle string) bool {
	for _, l := range languages {
		if containsFold(l, needle) {
			return true
		}
	}
	return false
}
