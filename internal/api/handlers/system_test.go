// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lelloman/quentin/internal/domain"
)

func TestSystemHandler_Health(t *testing.T) {
	t.Parallel()

	handler := NewSystemHandler(&domain.Config{})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp := httptest.NewRecorder()

	handler.Health(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var body healthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
}

func TestSystemHandler_Config_RedactsSecrets(t *testing.T) {
	t.Parallel()

	cfg := &domain.Config{
		Auth: domain.AuthConfig{Method: domain.AuthAPIKey, APIKey: "super-secret"},
		Searcher: domain.SearcherConfig{
			Jackett: domain.JackettConfig{APIKey: "jackett-secret"},
		},
		TorrentClient: domain.TorrentClientConfig{Password: "qbit-secret"},
	}
	handler := NewSystemHandler(cfg)
	req := httptest.NewRequest(http.MethodGet, "/config", nil)
	resp := httptest.NewRecorder()

	handler.Config(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var sanitized domain.Config
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&sanitized))
	assert.Empty(t, sanitized.Auth.APIKey)
	assert.Empty(t, sanitized.Searcher.Jackett.APIKey)
	assert.Empty(t, sanitized.TorrentClient.Password)
}
