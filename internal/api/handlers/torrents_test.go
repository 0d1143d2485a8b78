// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lelloman/quentin/internal/domain"
)

func downloadingTicket(id, infoHash string) domain.Ticket {
	now := time.Now().UTC()
	return domain.Ticket{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		State:     domain.NewDownloadingState(infoHash),
	}
}

func TestTorrentsHandler_List(t *testing.T) {
	t.Parallel()

	tickets := newFakeTicketStore(downloadingTicket("t1", "aaa"))
	adapter := &fakeAdapter{progress: domain.DownloadProgress{Percent: 42, State: domain.DownloadStateDownloading}}
	handler := NewTorrentsHandler(adapter, tickets, "/staging")

	req := httptest.NewRequest(http.MethodGet, "/torrents", nil)
	resp := httptest.NewRecorder()

	handler.List(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var body torrentListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Torrents, 1)
	assert.Equal(t, "aaa", body.Torrents[0].InfoHash)
	assert.Equal(t, float64(42), body.Torrents[0].Progress.Percent)
}

func TestTorrentsHandler_Get(t *testing.T) {
	t.Parallel()

	t.Run("found", func(t *testing.T) {
		t.Parallel()
		adapter := &fakeAdapter{progress: domain.DownloadProgress{Percent: 10}}
		handler := NewTorrentsHandler(adapter, newFakeTicketStore(), "/staging")

		req := httptest.NewRequest(http.MethodGet, "/torrents/aaa", nil)
		req = withURLParams(req, map[string]string{"hash": "aaa"})
		resp := httptest.NewRecorder()

		handler.Get(resp, req)

		require.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("not found reports 404", func(t *testing.T) {
		t.Parallel()
		adapter := &fakeAdapter{opErr: assertAnError{}}
		handler := NewTorrentsHandler(adapter, newFakeTicketStore(), "/staging")

		req := httptest.NewRequest(http.MethodGet, "/torrents/missing", nil)
		req = withURLParams(req, map[string]string{"hash": "missing"})
		resp := httptest.NewRecorder()

		handler.Get(resp, req)

		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

func TestTorrentsHandler_AddMagnet(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		adapter := &fakeAdapter{infoHash: "aaa"}
		handler := NewTorrentsHandler(adapter, newFakeTicketStore(), "/staging")

		req := httptest.NewRequest(http.MethodPost, "/torrents/add/magnet", strings.NewReader(`{"magnet_uri":"magnet:?xt=urn:btih:aaa"}`))
		resp := httptest.NewRecorder()

		handler.AddMagnet(resp, req)

		require.Equal(t, http.StatusCreated, resp.Code)
		var body addTorrentResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "aaa", body.InfoHash)
	})

	t.Run("missing magnet_uri", func(t *testing.T) {
		t.Parallel()
		handler := NewTorrentsHandler(&fakeAdapter{}, newFakeTicketStore(), "/staging")

		req := httptest.NewRequest(http.MethodPost, "/torrents/add/magnet", strings.NewReader(`{}`))
		resp := httptest.NewRecorder()

		handler.AddMagnet(resp, req)

		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})

	t.Run("adapter failure maps to bad gateway", func(t *testing.T) {
		t.Parallel()
		handler := NewTorrentsHandler(&fakeAdapter{addErr: assertAnError{}}, newFakeTicketStore(), "/staging")

		req := httptest.NewRequest(http.MethodPost, "/torrents/add/magnet", strings.NewReader(`{"magnet_uri":"magnet:?xt=urn:btih:aaa"}`))
		resp := httptest.NewRecorder()

		handler.AddMagnet(resp, req)

		assert.Equal(t, http.StatusBadGateway, resp.Code)
	})
}

func TestTorrentsHandler_Pause(t *testing.T) {
	t.Parallel()

	adapter := &fakeAdapter{}
	handler := NewTorrentsHandler(adapter, newFakeTicketStore(), "/staging")

	req := httptest.NewRequest(http.MethodPost, "/torrents/aaa/pause", nil)
	req = withURLParams(req, map[string]string{"hash": "aaa"})
	resp := httptest.NewRecorder()

	handler.Pause(resp, req)

	assert.Equal(t, http.StatusNoContent, resp.Code)
}

// assertAnError is a minimal error used by tests that only care that an
// error was returned, not its message.
type assertAnError struct{}

func (assertAnError) Error() string { return "boom" }
