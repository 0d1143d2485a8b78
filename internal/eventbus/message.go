// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package eventbus is the single-process multi-producer multi-consumer
// broadcast channel described by §4.11: the engine is the sole producer,
// the HTTP boundary (the /ws endpoint) is the sole consumer contract.
package eventbus

import "github.com/lelloman/quentin/internal/domain"

// MessageType tags the variant of a Message the same way domain.StateType
// tags a domain.TicketState: the fields relevant to Type are populated,
// the rest are left zero and omitted from JSON.
type MessageType string

const (
	MessageTypeSnapshot         MessageType = "snapshot"
	MessageTypeTicketUpdate     MessageType = "ticket_update"
	MessageTypeTicketDeleted    MessageType = "ticket_deleted"
	MessageTypeTorrentProgress  MessageType = "torrent_progress"
	MessageTypePipelineProgress MessageType = "pipeline_progress"
)

// Message is one event-bus frame. Seq is assigned by the Hub at publish
// time; a subscriber that observes a gap between consecutive Seq values
// has lost messages and should re-fetch the affected tickets.
type Message struct {
	Type MessageType `json:"type"`
	Seq  uint64      `json:"seq"`

	// snapshot
	Tickets []domain.Ticket `json:"tickets,omitempty"`

	// ticket_update / ticket_deleted
	ID    string              `json:"id,omitempty"`
	State *domain.TicketState `json:"state,omitempty"`

	// torrent_progress / pipeline_progress
	TicketID string  `json:"ticket_id,omitempty"`
	Percent  float64 `json:"percent,omitempty"`
	Down     int64   `json:"down,omitempty"`
	Up       int64   `json:"up,omitempty"`
	Phase    string  `json:"phase,omitempty"`
	Current  int     `json:"current,omitempty"`
	Total    int     `json:"total,omitempty"`
}
