// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"
	"path/filepath"
	"time"

	"github.com/lelloman/quentin/internal/api/middleware"
	"github.com/lelloman/quentin/internal/domain"
	"github.com/lelloman/quentin/internal/torrentclient"
)

// TicketStore is the subset of *store.TicketStore the tickets handler
// needs. UpdateState persists the new state and appends its own
// TicketStateChanged audit event atomically, so callers never log that
// event themselves.
type TicketStore interface {
	Create(ctx context.Context, req domain.CreateTicketRequest) (domain.Ticket, error)
	Get(ctx context.Context, id string) (domain.Ticket, error)
	List(ctx context.Context, filter domain.TicketFilter) ([]domain.Ticket, int, error)
	UpdateState(ctx context.Context, id string, newState domain.TicketState, expectedUpdatedAt time.Time) (domain.Ticket, error)
}

// AuditLog is the subset of *store.AuditLog the tickets handler needs for
// querying the audit trail; the handler itself never appends to it.
type AuditLog interface {
	Query(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, int, error)
}

// Bus is the subset of *eventbus.Hub the tickets handler needs.
type Bus interface {
	PublishTicketUpdate(id string, state domain.TicketState)
	PublishTicketDeleted(id string)
}

// TicketsHandler implements every `/tickets` and `/tickets/{id}/...` route
// of §6: creation, listing, lookup, cancellation and the admin actions
// (approve/reject/retry/force-search/force-magnet) that the orchestrator
// itself never initiates.
type TicketsHandler struct {
	tickets    TicketStore
	audit      AuditLog
	bus        Bus
	adapter    torrentclient.Adapter
	stagingDir string
}

func NewTicketsHandler(tickets TicketStore, audit AuditLog, bus Bus, adapter torrentclient.Adapter, stagingDir string) *TicketsHandler {
	return &TicketsHandler{tickets: tickets, audit: audit, bus: bus, adapter: adapter, stagingDir: stagingDir}
}

// advance validates and persists a requested transition and publishes the
// result, mirroring the orchestrator's own advance helper so that
// admin-initiated transitions are indistinguishable from worker-initiated
// ones in the audit trail (written by UpdateState itself) and on the event
// bus.
func (h *TicketsHandler) advance(ctx context.Context, ticket domain.Ticket, newState domain.TicketState) (domain.Ticket, error) {
	updated, err := h.tickets.UpdateState(ctx, ticket.ID, newState, ticket.UpdatedAt)
	if err != nil {
		return domain.Ticket{}, err
	}
	if h.bus != nil {
		h.bus.PublishTicketUpdate(updated.ID, updated.State)
	}
	return updated, nil
}

type createTicketBody struct {
	Priority         uint16                    `json:"priority"`
	QueryContext     domain.QueryContext       `json:"query_context"`
	DestPath         string                    `json:"dest_path"`
	OutputConstraint *domain.OutputConstraints `json:"output_constraints,omitempty"`
}

// Create handles `POST /tickets`.
func (h *TicketsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body createTicketBody
	if !DecodeJSON(w, r, &body) {
		return
	}
	if body.DestPath == "" {
		RespondError(w, http.StatusBadRequest, "dest_path is required")
		return
	}

	created, err := h.tickets.Create(r.Context(), domain.CreateTicketRequest{
		CreatedBy: middleware.IdentityFrom(r.Context()),
		Priority:  body.Priority,
		QueryCtx:  body.QueryContext,
		DestPath:  body.DestPath,
		Output:    body.OutputConstraint,
	})
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	if h.bus != nil {
		h.bus.PublishTicketUpdate(created.ID, created.State)
	}
	RespondJSON(w, http.StatusCreated, created)
}

type ticketListResponse struct {
	Tickets []domain.Ticket `json:"tickets"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// List handles `GET /tickets?state=&created_by=&limit=&offset=`.
func (h *TicketsHandler) List(w http.ResponseWriter, r *http.Request) {
	page := ParsePagination(r, 50, 1000)
	filter := domain.TicketFilter{
		CreatedBy: r.URL.Query().Get("created_by"),
		Limit:     page.Limit,
		Offset:    page.Offset,
	}
	if state := r.URL.Query().Get("state"); state != "" {
		filter.HasStateType = true
		filter.StateType = domain.StateType(state)
	}

	tickets, total, err := h.tickets.List(r.Context(), filter)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, ticketListResponse{Tickets: tickets, Total: total, Limit: page.Limit, Offset: page.Offset})
}

// Get handles `GET /tickets/{id}`.
func (h *TicketsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseTicketID(w, r)
	if !ok {
		return
	}
	ticket, err := h.tickets.Get(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, ticket)
}

type auditEventsResponse struct {
	Events []domain.AuditEvent `json:"events"`
	Total  int                 `json:"total"`
}

// Audit handles `GET /tickets/{id}/audit`: the slice of the audit trail
// belonging to a single ticket, newest first.
func (h *TicketsHandler) Audit(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseTicketID(w, r)
	if !ok {
		return
	}
	page := ParsePagination(r, 50, 1000)

	events, total, err := h.audit.Query(r.Context(), domain.AuditFilter{
		TicketID: id,
		Limit:    page.Limit,
		Offset:   page.Offset,
		Reverse:  true,
	})
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, auditEventsResponse{Events: events, Total: total})
}

type reasonBody struct {
	Reason string `json:"reason"`
}

// Cancel handles `DELETE /tickets/{id}`.
func (h *TicketsHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseTicketID(w, r)
	if !ok {
		return
	}
	var body reasonBody
	if !DecodeJSONOptional(w, r, &body) {
		return
	}

	ticket, err := h.tickets.Get(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	if ticket.State.IsTerminal() {
		RespondError(w, http.StatusConflict, "ticket is already in a terminal state")
		return
	}

	who := middleware.IdentityFrom(r.Context())
	updated, err := h.advance(r.Context(), ticket, domain.NewCancelledState(who, body.Reason))
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, updated)
}

type approveBody struct {
	CandidateIdx *int `json:"candidate_idx,omitempty"`
}

// Approve handles `POST /tickets/{id}/approve`.
func (h *TicketsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseTicketID(w, r)
	if !ok {
		return
	}
	var body approveBody
	if !DecodeJSONOptional(w, r, &body) {
		return
	}

	ticket, err := h.tickets.Get(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	if ticket.State.Type != domain.StateNeedsApproval {
		RespondError(w, http.StatusConflict, "ticket is not awaiting approval")
		return
	}

	idx := ticket.State.RecommendedIdx
	if body.CandidateIdx != nil {
		idx = *body.CandidateIdx
	}
	if idx < 0 || idx >= len(ticket.State.Candidates) {
		RespondError(w, http.StatusBadRequest, "candidate_idx out of range")
		return
	}

	who := middleware.IdentityFrom(r.Context())
	updated, err := h.advance(r.Context(), ticket, domain.NewApprovedState(ticket.State.Candidates[idx], who))
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, updated)
}

// Reject handles `POST /tickets/{id}/reject`.
func (h *TicketsHandler) Reject(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseTicketID(w, r)
	if !ok {
		return
	}
	var body reasonBody
	if !DecodeJSONOptional(w, r, &body) {
		return
	}

	ticket, err := h.tickets.Get(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	if ticket.State.Type != domain.StateNeedsApproval {
		RespondError(w, http.StatusConflict, "ticket is not awaiting approval")
		return
	}

	who := middleware.IdentityFrom(r.Context())
	updated, err := h.advance(r.Context(), ticket, domain.NewRejectedState(who, body.Reason))
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, updated)
}

// Retry handles `POST /tickets/{id}/retry`: re-queues a retryable Failed
// ticket back to Pending for the acquisition worker to pick up fresh, per
// §4.1's Failed->Pending admin-retry row.
func (h *TicketsHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseTicketID(w, r)
	if !ok {
		return
	}

	ticket, err := h.tickets.Get(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	if ticket.State.Type != domain.StateFailed || !ticket.State.Retryable {
		RespondError(w, http.StatusConflict, "ticket is not in a retryable failed state")
		return
	}

	updated, err := h.advance(r.Context(), ticket, domain.NewPendingState())
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, updated)
}

type forceSearchBody struct {
	Query string `json:"query"`
}

// ForceSearch handles `POST /tickets/{id}/force-search`: an admin override
// that re-enters Acquiring from AcquisitionFailed with a caller-supplied
// query, unlimited by the ordinary acquisition query budget.
func (h *TicketsHandler) ForceSearch(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseTicketID(w, r)
	if !ok {
		return
	}
	var body forceSearchBody
	if !DecodeJSON(w, r, &body) || body.Query == "" {
		RespondError(w, http.StatusBadRequest, "query is required")
		return
	}

	ticket, err := h.tickets.Get(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	if ticket.State.Type != domain.StateAcquisitionFailed {
		RespondError(w, http.StatusConflict, "ticket is not in acquisition_failed")
		return
	}

	newState := domain.NewAcquiringState(domain.PhaseQueryBuilding, []string{body.Query}, 0, time.Now().UTC())
	updated, err := h.advance(r.Context(), ticket, newState)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, updated)
}

type forceMagnetBody struct {
	MagnetURI string `json:"magnet_uri"`
}

// ForceMagnet handles `POST /tickets/{id}/force-magnet`: an admin override
// that skips acquisition entirely, adding the caller-supplied magnet to the
// torrent client directly and moving AcquisitionFailed straight to
// Downloading, per §4.1's table (unlike the ordinary download-worker path,
// there is no candidate to record as Selected).
func (h *TicketsHandler) ForceMagnet(w http.ResponseWriter, r *http.Request) {
	id, ok := ParseTicketID(w, r)
	if !ok {
		return
	}
	var body forceMagnetBody
	if !DecodeJSON(w, r, &body) || body.MagnetURI == "" {
		RespondError(w, http.StatusBadRequest, "magnet_uri is required")
		return
	}

	ticket, err := h.tickets.Get(r.Context(), id)
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	if ticket.State.Type != domain.StateAcquisitionFailed {
		RespondError(w, http.StatusConflict, "ticket is not in acquisition_failed")
		return
	}
	if h.adapter == nil {
		RespondError(w, http.StatusServiceUnavailable, "no torrent client configured")
		return
	}

	savePath := filepath.Join(h.stagingDir, ticket.ID)
	infoHash, err := h.adapter.AddMagnet(r.Context(), body.MagnetURI, savePath)
	if err != nil {
		RespondError(w, http.StatusBadGateway, "failed to add magnet to torrent client: "+err.Error())
		return
	}

	updated, err := h.advance(r.Context(), ticket, domain.NewDownloadingState(infoHash))
	if err != nil {
		RespondDomainError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, updated)
}
