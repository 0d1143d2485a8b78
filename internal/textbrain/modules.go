// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package textbrain implements the scoring and file-mapping intelligence
// described in §4.7: query building per content module, deterministic
// candidate scoring, and file-to-ticket-item mapping.
package textbrain

import (
	"fmt"
	"strings"

	"github.com/lelloman/quentin/internal/domain"
)

// contentModule builds the deterministic base query set for one expected
// content type. Each module is a small template expansion over the
// ticket's hints, mirroring how a human would phrase the search by hand.
type contentModule interface {
	buildQueries(ctx domain.QueryContext) []string
}

func moduleFor(expected domain.ExpectedContent) contentModule {
	switch expected {
	case domain.ExpectedAlbum, domain.ExpectedTrack:
		return musicModule{}
	case domain.ExpectedMovie, domain.ExpectedTvEpisode:
		return videoModule{}
	default:
		return genericModule{}
	}
}

type musicModule struct{}

func (musicModule) buildQueries(ctx domain.QueryContext) []string {
	artist := ctx.Hints["artist"]
	album := ctx.Hints["album"]
	track := ctx.Hints["track"]

	var queries []string
	switch {
	case artist != "" && album != "":
		queries = append(queries,
			fmt.Sprintf("%s %s", artist, album),
			fmt.Sprintf("%s %s FLAC", artist, album),
		)
	case artist != "" && track != "":
		queries = append(queries, fmt.Sprintf("%s %s", artist, track))
	case artist != "":
		queries = append(queries, fmt.Sprintf("%s discography FLAC", artist))
	}
	if len(queries) == 0 {
		queries = append(queries, ctx.Description)
	}
	return queries
}

type videoModule struct{}

func (videoModule) buildQueries(ctx domain.QueryContext) []string {
	title := ctx.Hints["title"]
	year := ctx.Hints["year"]
	series := ctx.Hints["series"]
	season := ctx.Hints["season"]
	episode := ctx.Hints["episode"]

	var queries []string
	switch {
	case series != "" && season != "":
		q := fmt.Sprintf("%s S%s", series, pad2(season))
		if episode != "" {
			q = fmt.Sprintf("%sE%s", q, pad2(episode))
		}
		queries = append(queries, q)
	case title != "" && year != "":
		queries = append(queries, fmt.Sprintf("%s %s", title, year))
	case title != "":
		queries = append(queries, title)
	}
	if len(queries) == 0 {
		queries = append(queries, ctx.Description)
	}
	return queries
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

type genericModule struct{}

func (genericModule) buildQueries(ctx domain.QueryContext) []string {
	queries := []string{ctx.Description}
	if len(ctx.Tags) > 0 {
		queries = append(queries, strings.Join(append([]string{ctx.Description}, ctx.Tags...), " "))
	}
	return queries
}
