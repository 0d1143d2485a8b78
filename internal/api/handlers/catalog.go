// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"

	"github.com/lelloman/quentin/internal/domain"
)

// TorrentCache is the subset of *store.TorrentCache the catalog handler
// needs.
type TorrentCache interface {
	Get(ctx context.Context, hash string) (domain.CachedTorrent, error)
	Remove(ctx context.Context, hash string) error
	Clear(ctx context.Context) error
	Search(ctx context.Context, query string, limit int) ([]domain.CachedTorrent, error)
	Stats(ctx context.Context) (domain.CacheStats, error)
}

// CatalogHandler implements the `/catalog` routes (§6): a read/administer
// surface over the persisted torrent metadata cache (§4.6).
type CatalogHandler struct {
	cache TorrentCache
}

func NewCatalogHandler(cache TorrentCache) *CatalogHandler {
	return &CatalogHandler{cache: cache}
}

type catalogListResponse struct {
	Torrents []domain.CachedTorrent `json:"torrents"`
}

// List handles `GET /catalog?query=&limit=`.
func (h *CatalogHandler) List(w http.ResponseWriter, r *http.Request) {
	page := ParsePagination(r, 50, 1000)
	query := r.URL.Query().Get("query")

	torrents, err := h.cache.Search(r.Context(), query, page.Limit)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, catalogListResponse{Torrents: torrents})
}

// Stats handles `GET /catalog/stats`.
func (h *CatalogHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.cache.Stats(r.Context())
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, stats)
}

// Get handles `GET /catalog/{hash}`.
func (h *CatalogHandler) Get(w http.ResponseWriter, r *http.Request) {
	hash, ok := ParseTorrentHash(w, r)
	if !ok {
		return
	}
	torrent, err := h.cache.Get(r.Context(), hash)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, torrent)
}

// Delete handles `DELETE /catalog/{hash}`.
func (h *CatalogHandler) Delete(w http.ResponseWriter, r *http.Request) {
	hash, ok := ParseTorrentHash(w, r)
	if !ok {
		return
	}
	if err := h.cache.Remove(r.Context(), hash); err != nil {
		RespondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Clear handles `DELETE /catalog`: empties the entire cache.
func (h *CatalogHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.cache.Clear(r.Context()); err != nil {
		RespondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
