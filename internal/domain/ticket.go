// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package domain holds the core data model of the ticket orchestration
// engine: tickets, their tagged-variant state, audit events, cached
// torrents and the transient types that flow between the search and
// scoring stages.
package domain

import "time"

// ExpectedContent tags the strongly-typed content descriptor a ticket may
// carry. The zero value (ExpectedNone) means "free-form, no structured
// expectation".
type ExpectedContent string

const (
	ExpectedNone      ExpectedContent = ""
	ExpectedAlbum     ExpectedContent = "album"
	ExpectedTrack     ExpectedContent = "track"
	ExpectedMovie     ExpectedContent = "movie"
	ExpectedTvEpisode ExpectedContent = "tv_episode"
)

// LanguagePriority distinguishes a hard requirement from a soft preference.
type LanguagePriority string

const (
	LanguageRequired  LanguagePriority = "required"
	LanguagePreferred LanguagePriority = "preferred"
)

// LanguagePreference pairs a language tag with how strongly it is wanted.
type LanguagePreference struct {
	Language string           `json:"language"`
	Priority LanguagePriority `json:"priority"`
}

// AudioConstraint narrows acceptable audio torrents.
type AudioConstraint struct {
	PreferredFormats []string             `json:"preferred_formats,omitempty"`
	MinBitrateKbps   int                  `json:"min_bitrate_kbps,omitempty"`
	Languages        []LanguagePreference `json:"languages,omitempty"`
	AvoidKaraoke     bool                 `json:"avoid_karaoke,omitempty"`
	AvoidCover       bool                 `json:"avoid_cover,omitempty"`
	AvoidTribute     bool                 `json:"avoid_tribute,omitempty"`
	AvoidCompilation bool                 `json:"avoid_compilation,omitempty"`
	AvoidLive        bool                 `json:"avoid_live,omitempty"`
	// ExpectedTrackCount, when set (>0), scores a candidate whose reported
	// file/track count matches it a bonus (e.g. a 12-track album request).
	ExpectedTrackCount int `json:"expected_track_count,omitempty"`
	// ExpectedTrackDurationSeconds, when set (>0), scores a candidate a
	// bonus when its reported runtime falls within a ±5s window of it.
	ExpectedTrackDurationSeconds int `json:"expected_track_duration_seconds,omitempty"`
}

// VideoConstraint narrows acceptable video torrents.
type VideoConstraint struct {
	Resolution    string               `json:"resolution,omitempty"`
	Codec         string               `json:"codec,omitempty"`
	Languages     []LanguagePreference `json:"languages,omitempty"`
	AvoidHardSubs bool                 `json:"avoid_hardcoded_subs,omitempty"`
	// ExpectedEpisodeCount, when set (>0), scores a candidate whose
	// reported file count matches it a bonus (e.g. a 10-episode season
	// pack request).
	ExpectedEpisodeCount int `json:"expected_episode_count,omitempty"`
}

// SearchConstraint is the combined audio/video search constraint block
// attached to a ticket's query context.
type SearchConstraint struct {
	Audio *AudioConstraint `json:"audio,omitempty"`
	Video *VideoConstraint `json:"video,omitempty"`
}

// OutputAudioConstraint describes the desired conversion target for audio.
type OutputAudioConstraint struct {
	Format    string `json:"format"`
	BitrateKbps int  `json:"bitrate_kbps,omitempty"`
}

// OutputVideoConstraint describes the desired conversion target for video.
type OutputVideoConstraint struct {
	Target string `json:"target"`
}

// OutputConstraints is the optional post-download conversion target.
type OutputConstraints struct {
	Audio *OutputAudioConstraint `json:"audio,omitempty"`
	Video *OutputVideoConstraint `json:"video,omitempty"`
}

// QueryContext is the free-form intent attached to a ticket: a description,
// a set of tags and an optional strongly-typed expectation.
type QueryContext struct {
	Description string            `json:"description"`
	Tags        []string          `json:"tags"`
	Expected    ExpectedContent   `json:"expected,omitempty"`
	Constraint  *SearchConstraint `json:"constraint,omitempty"`

	// Structured hints used by the content modules when Expected is set.
	// These are free-form strings (artist, album, series, season, ...) so
	// that content modules can build their own template expansion without
	// the engine needing to know every content type's field set.
	Hints map[string]string `json:"hints,omitempty"`
}

// Ticket is the persistent record of a user's request for content.
type Ticket struct {
	ID          string            `json:"id"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	CreatedBy   string            `json:"created_by"`
	Priority    uint16            `json:"priority"`
	QueryCtx    QueryContext      `json:"query_context"`
	DestPath    string            `json:"dest_path"`
	Output      *OutputConstraints `json:"output_constraints,omitempty"`
	State       TicketState       `json:"state"`
}

// CreateTicketRequest is the input accepted by Store.Create.
type CreateTicketRequest struct {
	CreatedBy string
	Priority  uint16
	QueryCtx  QueryContext
	DestPath  string
	Output    *OutputConstraints
}

// TicketFilter narrows Store.List / Store.Count results.
type TicketFilter struct {
	StateType           StateType
	HasStateType        bool
	CreatedBy           string
	DescriptionContains string
	Limit               int
	Offset              int
	Reverse             bool
}

// Clamp enforces the §4.2 pagination bounds (limit <= 1000, offset >= 0).
// A negative Limit means "unset" and gets the default of 50; an explicit
// Limit of 0 is honored as-is per §8 ("limit=0 returns an empty list with
// the correct total").
func (f *TicketFilter) Clamp() {
	if f.Limit < 0 {
		f.Limit = 50
	}
	if f.Limit > 1000 {
		f.Limit = 1000
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}
