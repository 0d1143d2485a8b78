// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

// CacheMode selects how the search fan-out combines the torrent metadata
// cache with live external indexer queries.
type CacheMode string

const (
	CacheOnly     CacheMode = "cache_only"
	ExternalOnly  CacheMode = "external_only"
	CacheAndExternal CacheMode = "both"
)

// SearchQuery is the input to the search fan-out (§4.5).
type SearchQuery struct {
	Text       string     `json:"text"`
	Indexers   []string   `json:"indexers,omitempty"`
	Categories []Category `json:"categories,omitempty"`
	Limit      int        `json:"limit,omitempty"`
	Mode       CacheMode  `json:"mode,omitempty"`
}

// SearchResult is the aggregated, deduplicated output of the fan-out.
type SearchResult struct {
	Candidates     []TorrentCandidate `json:"candidates"`
	IndexerErrors  map[string]string  `json:"indexer_errors,omitempty"`
	CacheHits      int                `json:"cache_hits"`
	ExternalHits   int                `json:"external_hits"`
	DurationMillis int64              `json:"duration_millis"`
}
