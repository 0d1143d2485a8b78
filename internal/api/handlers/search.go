// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"
	"sort"

	"github.com/lelloman/quentin/internal/domain"
	"github.com/lelloman/quentin/internal/ratelimiter"
	"github.com/lelloman/quentin/internal/searcher"
)

type searchBody struct {
	Text       string            `json:"text"`
	Indexers   []string          `json:"indexers,omitempty"`
	Categories []domain.Category `json:"categories,omitempty"`
	Limit      int               `json:"limit,omitempty"`
	Mode       domain.CacheMode  `json:"mode,omitempty"`
}

// SearcherHandler implements `POST /search`, `GET /searcher/status`,
// `GET /searcher/indexers` and `PATCH /searcher/indexers/{name}` (§6, §4.5).
type SearcherHandler struct {
	engine  *searcher.Engine
	limiter *ratelimiter.Pool
}

func NewSearcherHandler(engine *searcher.Engine, limiter *ratelimiter.Pool) *SearcherHandler {
	return &SearcherHandler{engine: engine, limiter: limiter}
}

// Search handles `POST /search`.
func (h *SearcherHandler) Search(w http.ResponseWriter, r *http.Request) {
	var body searchBody
	if !DecodeJSON(w, r, &body) {
		return
	}
	if body.Text == "" {
		RespondError(w, http.StatusBadRequest, "text is required")
		return
	}

	result, err := h.engine.Search(r.Context(), domain.SearchQuery{
		Text:       body.Text,
		Indexers:   body.Indexers,
		Categories: body.Categories,
		Limit:      body.Limit,
		Mode:       body.Mode,
	})
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}

type indexerStatusResponse struct {
	Indexers []domain.RateBucketStatus `json:"indexers"`
}

// Status handles `GET /searcher/status`: a refilled snapshot of every
// indexer's rate bucket.
func (h *SearcherHandler) Status(w http.ResponseWriter, r *http.Request) {
	statuses := h.limiter.Status()
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Indexer < statuses[j].Indexer })
	RespondJSON(w, http.StatusOK, indexerStatusResponse{Indexers: statuses})
}

type indexerSummary struct {
	Name string `json:"name"`
}

type indexerListResponse struct {
	Indexers []indexerSummary `json:"indexers"`
}

// Indexers handles `GET /searcher/indexers`: the set of backends the
// search engine currently knows about.
func (h *SearcherHandler) Indexers(w http.ResponseWriter, r *http.Request) {
	names := h.engine.IndexerNames()
	summaries := make([]indexerSummary, len(names))
	for i, name := range names {
		summaries[i] = indexerSummary{Name: name}
	}
	RespondJSON(w, http.StatusOK, indexerListResponse{Indexers: summaries})
}

type patchIndexerBody struct {
	RateLimitRPM *int  `json:"rate_limit_rpm,omitempty"`
	Enabled      *bool `json:"enabled,omitempty"`
}

// PatchIndexer handles `PATCH /searcher/indexers/{name}`: live-adjusts an
// indexer's rate limit and/or enabled flag without a config reload.
func (h *SearcherHandler) PatchIndexer(w http.ResponseWriter, r *http.Request) {
	name, ok := ParseStringParam(w, r, "name", "indexer name")
	if !ok {
		return
	}
	var body patchIndexerBody
	if !DecodeJSON(w, r, &body) {
		return
	}
	if body.RateLimitRPM == nil && body.Enabled == nil {
		RespondError(w, http.StatusBadRequest, "rate_limit_rpm or enabled is required")
		return
	}

	if body.RateLimitRPM != nil {
		h.limiter.Configure(name, *body.RateLimitRPM)
	}
	if body.Enabled != nil {
		h.engine.SetEnabled(name, *body.Enabled)
	}
	RespondJSON(w, http.StatusOK, nil)
}
