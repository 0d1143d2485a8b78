// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/lelloman/quentin/internal/database"
	"github.com/lelloman/quentin/internal/domain"
)

// TorrentCache implements §4.6's upsert/search contract over the
// cached_torrents / cached_torrent_sources tables.
type TorrentCache struct {
	db *database.DB
}

func NewTorrentCache(db *database.DB) *TorrentCache {
	return &TorrentCache{db: db}
}

// Store upserts every candidate: existing hashes bump last_seen_at and
// seen_count and replace their per-indexer source rows; new hashes get a
// fresh row. Everything commits in one transaction per call.
func (c *TorrentCache) Store(ctx context.Context, candidates []domain.TorrentCandidate) error {
	if len(candidates) == 0 {
		return nil
	}
	return c.db.WithWriteTx(ctx, func(tx *sql.Tx) error {
		for _, cand := range candidates {
			hash := strings.ToLower(cand.InfoHash)
			now := nowUTC()

			var exists bool
			if err := tx.QueryRowContext(ctx, "SELECT 1 FROM cached_torrents WHERE info_hash = ?", hash).Scan(new(int)); err == nil {
				exists = true
			} else if err != sql.ErrNoRows {
				return err
			}

			filesJSON, err := json.Marshal(cand.Files)
			if err != nil {
				return err
			}

			if exists {
				if len(cand.Files) > 0 {
					// Only touch files_json when this hit actually reports a
					// file list: an indexer with none (the common Torznab
					// case) must never clobber a previously-known list.
					if _, err := tx.ExecContext(ctx, `
						UPDATE cached_torrents SET last_seen_at = ?, seen_count = seen_count + 1, files_json = ?
						WHERE info_hash = ?
					`, now, string(filesJSON), hash); err != nil {
						return err
					}
				} else {
					if _, err := tx.ExecContext(ctx, `
						UPDATE cached_torrents SET last_seen_at = ?, seen_count = seen_count + 1
						WHERE info_hash = ?
					`, now, hash); err != nil {
						return err
					}
				}
			} else {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO cached_torrents (info_hash, title, size_bytes, category, first_seen_at, last_seen_at, seen_count, files_json)
					VALUES (?, ?, ?, ?, ?, ?, 1, ?)
				`, hash, cand.Title, cand.SizeBytes, string(cand.Category), now, now, string(filesJSON)); err != nil {
					return err
				}
			}

			for _, src := range cand.Sources {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO cached_torrent_sources (info_hash, indexer, magnet_uri, torrent_url, seeders, leechers, details_url, updated_at)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?)
					ON CONFLICT(info_hash, indexer) DO UPDATE SET
						magnet_uri = excluded.magnet_uri,
						torrent_url = excluded.torrent_url,
						seeders = excluded.seeders,
						leechers = excluded.leechers,
						details_url = excluded.details_url,
						updated_at = excluded.updated_at
				`, hash, src.Indexer, nullIfEmpty(src.MagnetURI), nullIfEmpty(src.TorrentURL), src.Seeders, src.Leechers, nullIfEmpty(src.DetailsURL), now); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (c *TorrentCache) Get(ctx context.Context, hash string) (domain.CachedTorrent, error) {
	hash = strings.ToLower(hash)
	row := c.db.Conn().QueryRowContext(ctx, `
		SELECT info_hash, title, size_bytes, category, first_seen_at, last_seen_at, seen_count, files_json
		FROM cached_torrents WHERE info_hash = ?
	`, hash)

	var ct domain.CachedTorrent
	var filesJSON sql.NullString
	if err := row.Scan(&ct.InfoHash, &ct.Title, &ct.SizeBytes, &ct.Category, &ct.FirstSeenAt, &ct.LastSeenAt, &ct.SeenCount, &filesJSON); err != nil {
		if err == sql.ErrNoRows {
			return domain.CachedTorrent{}, &domain.ErrNotFound{Kind: "cached_torrent", ID: hash}
		}
		return domain.CachedTorrent{}, &domain.ErrStorage{Op: "cache.get", Err: err}
	}
	if filesJSON.Valid {
		if err := json.Unmarshal([]byte(filesJSON.String), &ct.Files); err != nil {
			return domain.CachedTorrent{}, &domain.ErrStorage{Op: "cache.get.files", Err: err}
		}
	}

	sources, err := c.sourcesFor(ctx, hash)
	if err != nil {
		return domain.CachedTorrent{}, err
	}
	ct.Sources = sources
	return ct, nil
}

func (c *TorrentCache) sourcesFor(ctx context.Context, hash string) ([]domain.CachedTorrentSource, error) {
	rows, err := c.db.Conn().QueryContext(ctx, `
		SELECT indexer, magnet_uri, torrent_url, seeders, leechers, details_url, updated_at
		FROM cached_torrent_sources WHERE info_hash = ?
	`, hash)
	if err != nil {
		return nil, &domain.ErrStorage{Op: "cache.sources", Err: err}
	}
	defer rows.Close()

	var out []domain.CachedTorrentSource
	for rows.Next() {
		var s domain.CachedTorrentSource
		var magnet, torrentURL, detailsURL sql.NullString
		if err := rows.Scan(&s.Indexer, &magnet, &torrentURL, &s.Seeders, &s.Leechers, &detailsURL, &s.UpdatedAt); err != nil {
			return nil, &domain.ErrStorage{Op: "cache.sources.scan", Err: err}
		}
		s.MagnetURI = magnet.String
		s.TorrentURL = torrentURL.String
		s.DetailsURL = detailsURL.String
		out = append(out, s)
	}
	return out, rows.Err()
}

func (c *TorrentCache) Exists(ctx context.Context, hash string) (bool, error) {
	var one int
	err := c.db.Conn().QueryRowContext(ctx, "SELECT 1 FROM cached_torrents WHERE info_hash = ?", strings.ToLower(hash)).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, &domain.ErrStorage{Op: "cache.exists", Err: err}
	}
	return true, nil
}

func (c *TorrentCache) Remove(ctx context.Context, hash string) error {
	return c.db.WithWriteTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM cached_torrents WHERE info_hash = ?", strings.ToLower(hash))
		return err
	})
}

func (c *TorrentCache) Clear(ctx context.Context) error {
	return c.db.WithWriteTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM cached_torrent_sources"); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM cached_torrents")
		return err
	})
}

// Search matches query against title and, where present, any file path,
// case-insensitively, returning distinct torrents ordered by last_seen_at
// descending, up to limit.
func (c *TorrentCache) Search(ctx context.Context, query string, limit int) ([]domain.CachedTorrent, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	like := "%" + escapeLike(strings.ToLower(query)) + "%"

	rows, err := c.db.Conn().QueryContext(ctx, `
		SELECT info_hash, title, size_bytes, category, first_seen_at, last_seen_at, seen_count, files_json
		FROM cached_torrents
		WHERE LOWER(title) LIKE ? ESCAPE '\' OR LOWER(files_json) LIKE ? ESCAPE '\'
		ORDER BY last_seen_at DESC
		LIMIT ?
	`, like, like, limit)
	if err != nil {
		return nil, &domain.ErrStorage{Op: "cache.search", Err: err}
	}
	defer rows.Close()

	var out []domain.CachedTorrent
	for rows.Next() {
		var ct domain.CachedTorrent
		var filesJSON sql.NullString
		if err := rows.Scan(&ct.InfoHash, &ct.Title, &ct.SizeBytes, &ct.Category, &ct.FirstSeenAt, &ct.LastSeenAt, &ct.SeenCount, &filesJSON); err != nil {
			return nil, &domain.ErrStorage{Op: "cache.search.scan", Err: err}
		}
		if filesJSON.Valid {
			if err := json.Unmarshal([]byte(filesJSON.String), &ct.Files); err != nil {
				return nil, &domain.ErrStorage{Op: "cache.search.files", Err: err}
			}
		}
		sources, err := c.sourcesFor(ctx, ct.InfoHash)
		if err != nil {
			return nil, err
		}
		ct.Sources = sources
		out = append(out, ct)
	}
	return out, rows.Err()
}

func (c *TorrentCache) Stats(ctx context.Context) (domain.CacheStats, error) {
	var stats domain.CacheStats
	row := c.db.Conn().QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(size_bytes), 0),
			COALESCE(MIN(first_seen_at), ?),
			COALESCE(MAX(last_seen_at), ?)
		FROM cached_torrents
	`, nowUTC(), nowUTC())
	if err := row.Scan(&stats.TotalTorrents, &stats.TotalSizeBytes, &stats.OldestEntry, &stats.NewestEntry); err != nil {
		return domain.CacheStats{}, &domain.ErrStorage{Op: "cache.stats", Err: err}
	}

	if err := c.db.Conn().QueryRowContext(ctx, "SELECT COUNT(DISTINCT indexer) FROM cached_torrent_sources").Scan(&stats.UniqueIndexers); err != nil {
		return domain.CacheStats{}, &domain.ErrStorage{Op: "cache.stats.indexers", Err: err}
	}

	rows, err := c.db.Conn().QueryContext(ctx, "SELECT files_json FROM cached_torrents WHERE files_json IS NOT NULL")
	if err != nil {
		return domain.CacheStats{}, &domain.ErrStorage{Op: "cache.stats.files", Err: err}
	}
	defer rows.Close()
	for rows.Next() {
		var filesJSON string
		if err := rows.Scan(&filesJSON); err != nil {
			return domain.CacheStats{}, &domain.ErrStorage{Op: "cache.stats.files.scan", Err: err}
		}
		var files []domain.TorrentFile
		if err := json.Unmarshal([]byte(filesJSON), &files); err == nil {
			stats.TotalFiles += len(files)
		}
	}

	return stats, nil
}
