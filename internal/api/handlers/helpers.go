// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/lelloman/quentin/internal/domain"
)

// ErrorResponse is the fixed §6 error body shape.
type ErrorResponse struct {
	Error string `json:"error"`
}

// RespondJSON sends a JSON response.
func RespondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			log.Error().Err(err).Msg("failed to encode JSON response")
		}
	}
}

// RespondError sends an error response.
func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, ErrorResponse{Error: message})
}

// RespondDomainError maps the engine's tagged error types to the §6 HTTP
// status each one implies, falling back to 500 for anything unrecognized.
func RespondDomainError(w http.ResponseWriter, err error) {
	var notFound *domain.ErrNotFound
	var illegal *domain.ErrIllegalTransition
	var conflict *domain.ErrConflictingUpdate
	var rateLimited *domain.ErrRateLimited
	var allFailed *domain.ErrAllIndexersFailed
	var llmUnavailable *domain.ErrLlmUnavailable
	var configInvalid *domain.ErrConfigInvalid

	switch {
	case errors.As(err, &notFound):
		RespondError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &illegal):
		RespondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &conflict):
		RespondError(w, http.StatusConflict, err.Error())
	case errors.As(err, &rateLimited):
		RespondError(w, http.StatusTooManyRequests, err.Error())
	case errors.As(err, &allFailed):
		RespondError(w, http.StatusBadGateway, err.Error())
	case errors.As(err, &llmUnavailable):
		RespondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &configInvalid):
		RespondError(w, http.StatusBadRequest, err.Error())
	default:
		log.Error().Err(err).Msg("unhandled domain error")
		RespondError(w, http.StatusInternalServerError, "internal error")
	}
}

// DecodeJSON decodes the request body into dest. Returns false if decoding
// fails (error already sent to client).
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, dest *T) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		RespondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// DecodeJSONOptional decodes the request body into dest, tolerating an
// empty body. Returns false only on an actual decode error (error already
// sent to client).
func DecodeJSONOptional[T any](w http.ResponseWriter, r *http.Request, dest *T) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil && err != io.EOF {
		RespondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// ParseStringParam extracts and validates a generic string URL parameter.
func ParseStringParam(w http.ResponseWriter, r *http.Request, paramName, displayName string) (string, bool) {
	value := strings.TrimSpace(chi.URLParam(r, paramName))
	if value == "" {
		RespondError(w, http.StatusBadRequest, displayName+" is required")
		return "", false
	}
	return value, true
}

// ParseTicketID extracts and validates the ticket id from URL parameters.
func ParseTicketID(w http.ResponseWriter, r *http.Request) (string, bool) {
	return ParseStringParam(w, r, "id", "ticket id")
}

// ParseTorrentHash extracts and validates the torrent hash from URL parameters.
func ParseTorrentHash(w http.ResponseWriter, r *http.Request) (string, bool) {
	return ParseStringParam(w, r, "hash", "torrent hash")
}

// PaginationParams holds parsed pagination parameters.
type PaginationParams struct {
	Limit  int
	Offset int
}

// ParsePagination extracts and validates §4.2's pagination bounds from the
// query string. A missing "limit" param falls back to defaultLimit;
// non-numeric or negative values are ignored in favor of it too. An
// explicit "limit=0" is honored as a literal zero rather than being
// treated as unset, per §8's boundary behavior.
func ParsePagination(r *http.Request, defaultLimit, maxLimit int) PaginationParams {
	p := PaginationParams{Limit: defaultLimit, Offset: 0}

	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			if parsed > maxLimit {
				parsed = maxLimit
			}
			p.Limit = parsed
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed >= 0 {
			p.Offset = parsed
		}
	}
	return p
}
