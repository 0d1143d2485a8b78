// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package eventbus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lelloman/quentin/internal/domain"
)

func dialTestServer(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("dial websocket: %v", err)
	}
	return conn
}

func TestServeWSSendsSnapshotThenLiveUpdates(t *testing.T) {
	hub := NewHub()
	snapshot := func(includeTerminal bool) []domain.Ticket {
		return []domain.Ticket{{ID: "t1"}}
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, snapshot, w, r)
	}))
	defer server.Close()

	conn := dialTestServer(t, server, "")
	defer conn.Close()

	var first Message
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if first.Type != MessageTypeSnapshot || len(first.Tickets) != 1 {
		t.Fatalf("expected a snapshot with 1 ticket, got %+v", first)
	}

	// Wait for the subscriber to actually register before publishing,
	// since the upgrade and Subscribe happen in ServeWS's goroutine.
	deadline := time.Now().Add(time.Second)
	for hub.SubscriberCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	hub.PublishTicketUpdate("t1", domain.NewPendingState())

	var update Message
	if err := conn.ReadJSON(&update); err != nil {
		t.Fatalf("read ticket_update: %v", err)
	}
	if update.Type != MessageTypeTicketUpdate || update.ID != "t1" {
		t.Fatalf("unexpected message: %+v", update)
	}
}

func TestServeWSUnsubscribesOnClientClose(t *testing.T) {
	hub := NewHub()
	snapshot := func(includeTerminal bool) []domain.Ticket { return nil }

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, snapshot, w, r)
	}))
	defer server.Close()

	conn := dialTestServer(t, server, "")

	var snap Message
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}

	conn.Close()

	deadline := time.Now().Add(time.Second)
	for hub.SubscriberCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if hub.SubscriberCount() != 0 {
		t.Fatalf("expected subscriber to be removed after client close, count=%d", hub.SubscriberCount())
	}
}
