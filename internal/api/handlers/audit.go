// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"
	"time"

	"github.com/lelloman/quentin/internal/domain"
)

// AuditHandler implements `GET /audit` (§6): a filtered view over the
// whole append-only audit trail, not scoped to one ticket.
type AuditHandler struct {
	audit AuditLog
}

func NewAuditHandler(audit AuditLog) *AuditHandler {
	return &AuditHandler{audit: audit}
}

func parseAuditTime(r *http.Request, param string) (time.Time, bool) {
	v := r.URL.Query().Get(param)
	if v == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// List handles `GET /audit?ticket_id=&event_type=&user_id=&from=&to=&limit=&offset=`.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	page := ParsePagination(r, 50, 1000)
	q := r.URL.Query()

	filter := domain.AuditFilter{
		TicketID: q.Get("ticket_id"),
		UserID:   q.Get("user_id"),
		Limit:    page.Limit,
		Offset:   page.Offset,
		Reverse:  true,
	}
	if kind := q.Get("event_type"); kind != "" {
		filter.HasKind = true
		filter.Kind = domain.EventKind(kind)
	}
	from, hasFrom := parseAuditTime(r, "from")
	to, hasTo := parseAuditTime(r, "to")
	if hasFrom || hasTo {
		filter.HasRange = true
		filter.From = from
		if hasTo {
			filter.To = to
		} else {
			filter.To = time.Now().UTC()
		}
	}

	events, total, err := h.audit.Query(r.Context(), filter)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, auditEventsResponse{Events: events, Total: total})
}
