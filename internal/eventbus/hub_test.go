// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package eventbus

import (
	"testing"
	"time"

	"github.com/lelloman/quentin/internal/domain"
)

func TestSubscribeDeliversSnapshotFirst(t *testing.T) {
	hub := NewHub()
	tickets := []domain.Ticket{{ID: "t1"}, {ID: "t2"}}

	sub := hub.Subscribe(tickets)
	defer hub.Unsubscribe(sub)

	select {
	case msg := <-sub.Messages():
		if msg.Type != MessageTypeSnapshot {
			t.Fatalf("expected snapshot as first message, got %q", msg.Type)
		}
		if len(msg.Tickets) != 2 {
			t.Fatalf("expected 2 tickets in snapshot, got %d", len(msg.Tickets))
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
}

func TestPublishAssignsIncreasingSequenceNumbers(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(nil)
	defer hub.Unsubscribe(sub)

	snapshot := <-sub.Messages()

	hub.PublishTicketUpdate("t1", domain.NewPendingState())
	hub.PublishTorrentProgress("t1", 0.5, 100, 0)

	first := <-sub.Messages()
	second := <-sub.Messages()

	if first.Seq <= snapshot.Seq || second.Seq <= first.Seq {
		t.Fatalf("expected strictly increasing seq, got %d, %d, %d", snapshot.Seq, first.Seq, second.Seq)
	}
	if first.Type != MessageTypeTicketUpdate || first.ID != "t1" {
		t.Fatalf("unexpected first message: %+v", first)
	}
	if second.Type != MessageTypeTorrentProgress || second.TicketID != "t1" || second.Percent != 0.5 {
		t.Fatalf("unexpected second message: %+v", second)
	}
}

func TestSlowSubscriberObservesSequenceGap(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(nil)
	defer hub.Unsubscribe(sub)

	<-sub.Messages() // drain the snapshot

	// Flood well past the subscriber's buffer without draining it, so some
	// publishes are dropped for this subscriber while still consuming a
	// sequence number.
	for i := 0; i < subscriberBuffer*2; i++ {
		hub.PublishTicketDeleted("t1")
	}

	if sub.Dropped() == 0 {
		t.Fatal("expected the flooded subscriber to have dropped messages")
	}

	var last Message
	for i := 0; i < subscriberBuffer; i++ {
		last = <-sub.Messages()
	}

	hub.PublishTicketDeleted("t1")
	next := <-sub.Messages()

	// The dropped publishes in between still consumed sequence numbers
	// that were never delivered, so the next delivered frame jumps well
	// past last.Seq+1 — that jump is the client's signal to re-fetch.
	if next.Seq == last.Seq+1 {
		t.Fatalf("expected a sequence gap after the flood, got contiguous seq %d -> %d", last.Seq, next.Seq)
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe(nil)
	<-sub.Messages()

	hub.Unsubscribe(sub)

	_, ok := <-sub.Messages()
	if ok {
		t.Fatal("expected channel to be closed after unsubscribe")
	}

	// Unsubscribing twice must not panic.
	hub.Unsubscribe(sub)
}

func TestSubscriberCount(t *testing.T) {
	hub := NewHub()
	if hub.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers, got %d", hub.SubscriberCount())
	}
	sub := hub.Subscribe(nil)
	if hub.SubscriberCount() != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.SubscriberCount())
	}
	hub.Unsubscribe(sub)
	if hub.SubscriberCount() != 0 {
		t.Fatalf("expected 0 subscribers after unsubscribe, got %d", hub.SubscriberCount())
	}
}
