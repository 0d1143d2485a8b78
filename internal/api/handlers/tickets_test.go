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

func newTicket(id string, state domain.TicketState) domain.Ticket {
	now := time.Now().UTC()
	return domain.Ticket{
		ID:        id,
		CreatedAt: now,
		UpdatedAt: now,
		DestPath:  "/dest/" + id,
		State:     state,
	}
}

func TestTicketsHandler_Create(t *testing.T) {
	t.Parallel()

	tickets := newFakeTicketStore()
	bus := &fakeBus{}
	handler := NewTicketsHandler(tickets, newFakeAuditLog(), bus, &fakeAdapter{}, "/staging")

	body := strings.NewReader(`{"dest_path":"/music/one","query_context":{"description":"some album"}}`)
	req := httptest.NewRequest(http.MethodPost, "/tickets", body)
	resp := httptest.NewRecorder()

	handler.Create(resp, req)

	require.Equal(t, http.StatusCreated, resp.Code)
	var created domain.Ticket
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	assert.Equal(t, domain.StatePending, created.State.Type)
	assert.Len(t, bus.updates, 1)
}

func TestTicketsHandler_Create_RequiresDestPath(t *testing.T) {
	t.Parallel()

	handler := NewTicketsHandler(newFakeTicketStore(), newFakeAuditLog(), &fakeBus{}, &fakeAdapter{}, "/staging")

	req := httptest.NewRequest(http.MethodPost, "/tickets", strings.NewReader(`{}`))
	resp := httptest.NewRecorder()

	handler.Create(resp, req)

	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestTicketsHandler_Get(t *testing.T) {
	t.Parallel()

	t.Run("found", func(t *testing.T) {
		t.Parallel()
		tickets := newFakeTicketStore(newTicket("t1", domain.NewPendingState()))
		handler := NewTicketsHandler(tickets, newFakeAuditLog(), &fakeBus{}, &fakeAdapter{}, "/staging")

		req := httptest.NewRequest(http.MethodGet, "/tickets/t1", nil)
		req = withURLParams(req, map[string]string{"id": "t1"})
		resp := httptest.NewRecorder()

		handler.Get(resp, req)

		assert.Equal(t, http.StatusOK, resp.Code)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		handler := NewTicketsHandler(newFakeTicketStore(), newFakeAuditLog(), &fakeBus{}, &fakeAdapter{}, "/staging")

		req := httptest.NewRequest(http.MethodGet, "/tickets/missing", nil)
		req = withURLParams(req, map[string]string{"id": "missing"})
		resp := httptest.NewRecorder()

		handler.Get(resp, req)

		assert.Equal(t, http.StatusNotFound, resp.Code)
	})
}

func TestTicketsHandler_List(t *testing.T) {
	t.Parallel()

	tickets := newFakeTicketStore(
		newTicket("t1", domain.NewPendingState()),
		newTicket("t2", domain.NewPendingState()),
	)
	handler := NewTicketsHandler(tickets, newFakeAuditLog(), &fakeBus{}, &fakeAdapter{}, "/staging")

	req := httptest.NewRequest(http.MethodGet, "/tickets?state=pending", nil)
	resp := httptest.NewRecorder()

	handler.List(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	var body ticketListResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 2, body.Total)
}

func TestTicketsHandler_Cancel(t *testing.T) {
	t.Parallel()

	t.Run("cancels a pending ticket", func(t *testing.T) {
		t.Parallel()
		tickets := newFakeTicketStore(newTicket("t1", domain.NewPendingState()))
		bus := &fakeBus{}
		handler := NewTicketsHandler(tickets, newFakeAuditLog(), bus, &fakeAdapter{}, "/staging")

		req := httptest.NewRequest(http.MethodDelete, "/tickets/t1", strings.NewReader(`{"reason":"no longer needed"}`))
		req = withURLParams(req, map[string]string{"id": "t1"})
		resp := httptest.NewRecorder()

		handler.Cancel(resp, req)

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, domain.StateCancelled, tickets.get("t1").State.Type)
	})

	t.Run("rejects cancelling an already terminal ticket", func(t *testing.T) {
		t.Parallel()
		tickets := newFakeTicketStore(newTicket("t1", domain.NewCompletedState(domain.CompletionStats{})))
		handler := NewTicketsHandler(tickets, newFakeAuditLog(), &fakeBus{}, &fakeAdapter{}, "/staging")

		req := httptest.NewRequest(http.MethodDelete, "/tickets/t1", nil)
		req = withURLParams(req, map[string]string{"id": "t1"})
		resp := httptest.NewRecorder()

		handler.Cancel(resp, req)

		assert.Equal(t, http.StatusConflict, resp.Code)
	})
}

func TestTicketsHandler_Approve(t *testing.T) {
	t.Parallel()

	candidate := domain.ScoredCandidate{TorrentCandidate: domain.TorrentCandidate{Title: "best match", InfoHash: "aaa"}, Score: 0.9}

	t.Run("approves the recommended candidate by default", func(t *testing.T) {
		t.Parallel()
		state := domain.NewNeedsApprovalState([]domain.ScoredCandidate{candidate}, 0, 0.9)
		tickets := newFakeTicketStore(newTicket("t1", state))
		handler := NewTicketsHandler(tickets, newFakeAuditLog(), &fakeBus{}, &fakeAdapter{}, "/staging")

		req := httptest.NewRequest(http.MethodPost, "/tickets/t1/approve", strings.NewReader(`{}`))
		req = withURLParams(req, map[string]string{"id": "t1"})
		resp := httptest.NewRecorder()

		handler.Approve(resp, req)

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, domain.StateApproved, tickets.get("t1").State.Type)
	})

	t.Run("rejects approving a ticket not awaiting approval", func(t *testing.T) {
		t.Parallel()
		tickets := newFakeTicketStore(newTicket("t1", domain.NewPendingState()))
		handler := NewTicketsHandler(tickets, newFakeAuditLog(), &fakeBus{}, &fakeAdapter{}, "/staging")

		req := httptest.NewRequest(http.MethodPost, "/tickets/t1/approve", strings.NewReader(`{}`))
		req = withURLParams(req, map[string]string{"id": "t1"})
		resp := httptest.NewRecorder()

		handler.Approve(resp, req)

		assert.Equal(t, http.StatusConflict, resp.Code)
	})

	t.Run("rejects an out of range candidate index", func(t *testing.T) {
		t.Parallel()
		state := domain.NewNeedsApprovalState([]domain.ScoredCandidate{candidate}, 0, 0.9)
		tickets := newFakeTicketStore(newTicket("t1", state))
		handler := NewTicketsHandler(tickets, newFakeAuditLog(), &fakeBus{}, &fakeAdapter{}, "/staging")

		idx := 5
		body, err := json.Marshal(approveBody{CandidateIdx: &idx})
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/tickets/t1/approve", strings.NewReader(string(body)))
		req = withURLParams(req, map[string]string{"id": "t1"})
		resp := httptest.NewRecorder()

		handler.Approve(resp, req)

		assert.Equal(t, http.StatusBadRequest, resp.Code)
	})
}

func TestTicketsHandler_Retry(t *testing.T) {
	t.Parallel()

	t.Run("re-queues a retryable failed ticket", func(t *testing.T) {
		t.Parallel()
		tickets := newFakeTicketStore(newTicket("t1", domain.NewFailedState("timed out", true, 2)))
		handler := NewTicketsHandler(tickets, newFakeAuditLog(), &fakeBus{}, &fakeAdapter{}, "/staging")

		req := httptest.NewRequest(http.MethodPost, "/tickets/t1/retry", nil)
		req = withURLParams(req, map[string]string{"id": "t1"})
		resp := httptest.NewRecorder()

		handler.Retry(resp, req)

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, domain.StatePending, tickets.get("t1").State.Type)
	})

	t.Run("rejects a non-retryable failed ticket", func(t *testing.T) {
		t.Parallel()
		tickets := newFakeTicketStore(newTicket("t1", domain.NewFailedState("fatal", false, 8)))
		handler := NewTicketsHandler(tickets, newFakeAuditLog(), &fakeBus{}, &fakeAdapter{}, "/staging")

		req := httptest.NewRequest(http.MethodPost, "/tickets/t1/retry", nil)
		req = withURLParams(req, map[string]string{"id": "t1"})
		resp := httptest.NewRecorder()

		handler.Retry(resp, req)

		assert.Equal(t, http.StatusConflict, resp.Code)
	})
}

func TestTicketsHandler_ForceSearch(t *testing.T) {
	t.Parallel()

	tickets := newFakeTicketStore(newTicket("t1", domain.NewAcquisitionFailedState("no candidates found")))
	handler := NewTicketsHandler(tickets, newFakeAuditLog(), &fakeBus{}, &fakeAdapter{}, "/staging")

	req := httptest.NewRequest(http.MethodPost, "/tickets/t1/force-search", strings.NewReader(`{"query":"a better query"}`))
	req = withURLParams(req, map[string]string{"id": "t1"})
	resp := httptest.NewRecorder()

	handler.ForceSearch(resp, req)

	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, domain.StateAcquiring, tickets.get("t1").State.Type)
}

func TestTicketsHandler_ForceMagnet(t *testing.T) {
	t.Parallel()

	t.Run("moves straight to downloading", func(t *testing.T) {
		t.Parallel()
		tickets := newFakeTicketStore(newTicket("t1", domain.NewAcquisitionFailedState("no candidates found")))
		adapter := &fakeAdapter{infoHash: "aaa"}
		handler := NewTicketsHandler(tickets, newFakeAuditLog(), &fakeBus{}, adapter, "/staging")

		req := httptest.NewRequest(http.MethodPost, "/tickets/t1/force-magnet", strings.NewReader(`{"magnet_uri":"magnet:?xt=urn:btih:aaa"}`))
		req = withURLParams(req, map[string]string{"id": "t1"})
		resp := httptest.NewRecorder()

		handler.ForceMagnet(resp, req)

		require.Equal(t, http.StatusOK, resp.Code)
		assert.Equal(t, domain.StateDownloading, tickets.get("t1").State.Type)
		assert.Equal(t, "aaa", tickets.get("t1").State.InfoHash)
	})

	t.Run("surfaces adapter failure as bad gateway", func(t *testing.T) {
		t.Parallel()
		tickets := newFakeTicketStore(newTicket("t1", domain.NewAcquisitionFailedState("no candidates found")))
		adapter := &fakeAdapter{addErr: assertAnError{}}
		handler := NewTicketsHandler(tickets, newFakeAuditLog(), &fakeBus{}, adapter, "/staging")

		req := httptest.NewRequest(http.MethodPost, "/tickets/t1/force-magnet", strings.NewReader(`{"magnet_uri":"magnet:?xt=urn:btih:aaa"}`))
		req = withURLParams(req, map[string]string{"id": "t1"})
		resp := httptest.NewRecorder()

		handler.ForceMagnet(resp, req)

		assert.Equal(t, http.StatusBadGateway, resp.Code)
	})
}
