// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package searcher implements the concurrent multi-indexer fan-out search
// (§4.5): querying one or more Torznab backends in parallel, gated by the
// rate-limiter pool, then deduplicating and ranking the results.
package searcher

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lelloman/quentin/internal/domain"
)

// Backend queries a single configured indexer for candidates matching
// query. Implementations own their own wire protocol; the fan-out engine
// only needs a slice of TorrentCandidate per indexer.
type Backend interface {
	Query(ctx context.Context, indexer string, query domain.SearchQuery) ([]domain.TorrentCandidate, error)
}

// torznabCategoryIDs maps a content Category to the Torznab numeric
// category range it corresponds to, per the standard Torznab category
// table. Every indexer is queried with this one table; per-indexer caps
// are not consulted.
var torznabCategoryIDs = map[domain.Category][]int{
	domain.CategoryMusic:    {3000},
	domain.CategoryAudio:    {3000},
	domain.CategoryMovies:   {2000},
	domain.CategoryTv:       {5000},
	domain.CategoryBooks:    {7000},
	domain.CategorySoftware: {4000},
}

// JackettBackend queries a Jackett (or Jackett-compatible Torznab proxy)
// instance's aggregate search endpoint and parses the returned RSS/Torznab
// feed.
type JackettBackend struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewJackettBackend(baseURL, apiKey string, timeout time.Duration) *JackettBackend {
	return &JackettBackend{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (b *JackettBackend) Query(ctx context.Context, indexer string, query domain.SearchQuery) ([]domain.TorrentCandidate, error) {
	endpoint := fmt.Sprintf("%s/api/v2.0/indexers/%s/results/torznab/api", b.BaseURL, url.PathEscape(indexer))

	values := url.Values{}
	values.Set("apikey", b.APIKey)
	values.Set("t", "search")
	values.Set("q", query.Text)
	for _, cat := range query.Categories {
		for _, id := range torznabCategoryIDs[cat] {
			values.Add("cat", strconv.Itoa(id))
		}
	}
	if query.Limit > 0 {
		values.Set("limit", strconv.Itoa(query.Limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+values.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", indexer, err)
	}

	resp, err := b.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", indexer, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", indexer, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", indexer, err)
	}

	var feed torznabRSS
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parse torznab feed from %s: %w", indexer, err)
	}

	candidates := make([]domain.TorrentCandidate, 0, len(feed.Channel.Items))
	for _, item := range feed.Channel.Items {
		candidates = append(candidates, item.toCandidate(indexer))
	}
	return candidates, nil
}

// torznabRSS mirrors the subset of the standard Torznab RSS response this
// client needs: item title/link/size plus the torznab:attr name/value
// extension pairs that carry seeders, peers, and infohash.
type torznabRSS struct {
	XMLName xml.Name        `xml:"rss"`
	Channel torznabChannel  `xml:"channel"`
}

type torznabChannel struct {
	Items []torznabItem `xml:"item"`
}

type torznabItem struct {
	Title       string          `xml:"title"`
	Link        string          `xml:"link"`
	GUID        string          `xml:"guid"`
	PubDate     string          `xml:"pubDate"`
	Size        int64           `xml:"size"`
	Attrs       []torznabAttr   `xml:"attr"`
}

type torznabAttr struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

func (it torznabItem) attr(name string) string {
	for _, a := range it.Attrs {
		if a.Name == name {
			return a.Value
		}
	}
	return ""
}

func (it torznabItem) toCandidate(indexer string) domain.TorrentCandidate {
	seeders, _ := strconv.Atoi(it.attr("seeders"))
	leechers, _ := strconv.Atoi(it.attr("peers"))
	infoHash := strings.ToLower(it.attr("infohash"))
	published, _ := time.Parse(time.RFC1123Z, it.PubDate)

	size := it.Size
	if size == 0 {
		if sz, err := strconv.ParseInt(it.attr("size"), 10, 64); err == nil {
			size = sz
		}
	}

	fileCount, _ := strconv.Atoi(it.attr("files"))
	durationSeconds, _ := strconv.Atoi(it.attr("duration"))

	return domain.TorrentCandidate{
		Title:           it.Title,
		InfoHash:        infoHash,
		SizeBytes:       size,
		Seeders:         seeders,
		Leechers:        leechers,
		PublishedAt:     published,
		FileCount:       fileCount,
		DurationSeconds: durationSeconds,
		Sources: []domain.CandidateSource{{
			Indexer:    indexer,
			MagnetURI:  magnetFromHash(infoHash, it.Title),
			TorrentURL: it.Link,
			Seeders:    seeders,
			Leechers:   leechers,
			DetailsURL: it.GUID,
			UpdatedAt:  time.Now().UTC(),
		}},
	}
}

func magnetFromHash(hash, title string) string {
	if hash == "" {
		return ""
	}
	return fmt.Sprintf("magnet:?xt=urn:btih:%s&dn=%s", hash, url.QueryEscape(title))
}
