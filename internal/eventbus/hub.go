// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package eventbus

import (
	"sync"
	"sync/atomic"

	"github.com/lelloman/quentin/internal/domain"
)

// subscriberBuffer is how many frames a slow subscriber may fall behind
// before the Hub starts dropping messages destined for it. A dropped
// message still consumes a sequence number, so the subscriber sees the
// gap on its next delivered frame and knows to re-fetch.
const subscriberBuffer = 256

// Subscriber is one consumer's view of the bus: a buffered channel of
// Message plus a count of how many frames were dropped because the
// consumer fell behind.
type Subscriber struct {
	id      uint64
	send    chan Message
	dropped atomic.Uint64
}

func (s *Subscriber) ID() uint64               { return s.id }
func (s *Subscriber) Messages() <-chan Message { return s.send }
func (s *Subscriber) Dropped() uint64           { return s.dropped.Load() }

// Hub is the broadcast channel. Every publish assigns the next sequence
// number regardless of how many subscribers actually receive it, so a
// subscriber that misses a send still observes a gap in Seq.
type Hub struct {
	mu     sync.Mutex
	subs   map[uint64]*Subscriber
	nextID uint64
	seq    uint64
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*Subscriber)}
}

// Subscribe registers a new subscriber and enqueues a snapshot frame as
// its first message. tickets is whatever the caller already fetched from
// the ticket store (filtered for include_terminal per §6); registration
// and the snapshot's sequence number are assigned under the same lock so
// no live event can be missed between the two.
func (h *Hub) Subscribe(tickets []domain.Ticket) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscriber{id: h.nextID, send: make(chan Message, subscriberBuffer)}
	h.subs[sub.id] = sub

	h.seq++
	sub.send <- Message{Type: MessageTypeSnapshot, Seq: h.seq, Tickets: tickets}
	return sub
}

// Unsubscribe removes a subscriber and closes its channel. Safe to call
// more than once for the same subscriber.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub.id]; ok {
		delete(h.subs, sub.id)
		close(sub.send)
	}
}

func (h *Hub) publish(msg Message) {
	h.mu.Lock()
	h.seq++
	msg.Seq = h.seq
	subs := make([]*Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	for _, s := range subs {
		select {
		case s.send <- msg:
		default:
			s.dropped.Add(1)
		}
	}
}

func (h *Hub) PublishTicketUpdate(id string, state domain.TicketState) {
	h.publish(Message{Type: MessageTypeTicketUpdate, ID: id, State: &state})
}

func (h *Hub) PublishTicketDeleted(id string) {
	h.publish(Message{Type: MessageTypeTicketDeleted, ID: id})
}

func (h *Hub) PublishTorrentProgress(ticketID string, percent float64, down, up int64) {
	h.publish(Message{Type: MessageTypeTorrentProgress, TicketID: ticketID, Percent: percent, Down: down, Up: up})
}

func (h *Hub) PublishPipelineProgress(ticketID, phase string, current, total int) {
	h.publish(Message{Type: MessageTypePipelineProgress, TicketID: ticketID, Phase: phase, Current: current, Total: total})
}

// SubscriberCount reports the number of currently connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
