// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "time"

// Category is a content category, mapped per-backend by the search fan-out.
type Category string

const (
	CategoryAudio    Category = "audio"
	CategoryMusic    Category = "music"
	CategoryMovies   Category = "movies"
	CategoryTv       Category = "tv"
	CategoryBooks    Category = "books"
	CategorySoftware Category = "software"
	CategoryOther    Category = "other"
)

// TorrentFile is a single file within a torrent's payload.
type TorrentFile struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// CandidateSource is one indexer's view of a torrent candidate: its own
// magnet/URL and seeder/leecher counts.
type CandidateSource struct {
	Indexer     string    `json:"indexer"`
	MagnetURI   string    `json:"magnet_uri,omitempty"`
	TorrentURL  string    `json:"torrent_url,omitempty"`
	Seeders     int       `json:"seeders"`
	Leechers    int       `json:"leechers"`
	DetailsURL  string    `json:"details_url,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TorrentCandidate is a transient (never persisted as-is) search result,
// possibly aggregated across multiple indexer sources that share an
// info-hash.
type TorrentCandidate struct {
	Title       string        `json:"title"`
	InfoHash    string        `json:"info_hash"`
	SizeBytes   int64         `json:"size_bytes"`
	Seeders     int           `json:"seeders"`
	Leechers    int           `json:"leechers"`
	Category    Category      `json:"category"`
	PublishedAt time.Time     `json:"published_at"`
	Files       []TorrentFile `json:"files,omitempty"`
	// FileCount is the release's reported track/episode count, when an
	// indexer surfaces one directly (e.g. a torznab "files" attr on a
	// season pack or album). Falls back to len(Files) when zero.
	FileCount int `json:"file_count,omitempty"`
	// DurationSeconds is the release's reported runtime, when an indexer
	// surfaces one (e.g. a torznab "duration" attr on a single track).
	DurationSeconds int               `json:"duration_seconds,omitempty"`
	Sources         []CandidateSource `json:"sources"`
	FromCache       bool              `json:"from_cache,omitempty"`
}

// TrackMapping maps one ticket item (by index into whatever per-item list
// the ticket carries) to a file within the candidate torrent.
type TrackMapping struct {
	ItemIndex  int     `json:"item_index"`
	FilePath   string  `json:"file_path"`
	Confidence float64 `json:"confidence"`
}

// ScoredCandidate is a TorrentCandidate plus TextBrain's verdict on it.
type ScoredCandidate struct {
	TorrentCandidate
	Score     float64        `json:"score"`
	Reasoning string         `json:"reasoning"`
	FileMap   []TrackMapping `json:"file_map,omitempty"`
}

// CachedTorrentSource is the persisted form of CandidateSource, keyed by
// (info_hash, indexer).
type CachedTorrentSource struct {
	Indexer    string    `json:"indexer"`
	MagnetURI  string    `json:"magnet_uri,omitempty"`
	TorrentURL string    `json:"torrent_url,omitempty"`
	Seeders    int       `json:"seeders"`
	Leechers   int       `json:"leechers"`
	DetailsURL string    `json:"details_url,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// CachedTorrent is a row in the torrent metadata cache, keyed by lowercase
// hex info-hash.
type CachedTorrent struct {
	InfoHash    string                `json:"info_hash"`
	Title       string                `json:"title"`
	SizeBytes   int64                 `json:"size_bytes"`
	Category    Category              `json:"category"`
	FirstSeenAt time.Time             `json:"first_seen_at"`
	LastSeenAt  time.Time             `json:"last_seen_at"`
	SeenCount   int                   `json:"seen_count"`
	Sources     []CachedTorrentSource `json:"sources"`
	Files       []TorrentFile         `json:"files,omitempty"`
}

// CacheStats summarizes the torrent metadata cache for GET /catalog/stats.
type CacheStats struct {
	TotalTorrents  int       `json:"total_torrents"`
	TotalFiles     int       `json:"total_files"`
	TotalSizeBytes int64     `json:"total_size_bytes"`
	UniqueIndexers int       `json:"unique_indexers"`
	OldestEntry    time.Time `json:"oldest_entry"`
	NewestEntry    time.Time `json:"newest_entry"`
}
