// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"

	"github.com/lelloman/quentin/internal/domain"
)

// SystemHandler implements `GET /health` and `GET /config` (§6).
type SystemHandler struct {
	cfg *domain.Config
}

func NewSystemHandler(cfg *domain.Config) *SystemHandler {
	return &SystemHandler{cfg: cfg}
}

type healthResponse struct {
	Status string `json:"status"`
}

// Health handles `GET /health`.
func (h *SystemHandler) Health(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// Config handles `GET /config`: the running configuration with every
// secret redacted, per §6.
func (h *SystemHandler) Config(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, h.cfg.Sanitized())
}
