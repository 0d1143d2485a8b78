// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "time"

// EventKind enumerates the fixed set of audit event kinds. Each kind has a
// fixed payload schema, documented next to the call site that emits it.
type EventKind string

const (
	// Service lifecycle
	EventServiceStarted EventKind = "service_started"
	EventServiceStopped EventKind = "service_stopped"

	// Ticket lifecycle
	EventTicketCreated      EventKind = "ticket_created"
	EventTicketStateChanged EventKind = "ticket_state_changed"
	EventTicketDeleted      EventKind = "ticket_deleted"

	// Search
	EventSearchExecuted EventKind = "search_executed"
	EventIndexerQueried EventKind = "indexer_queried"

	// Torrent operations
	EventTorrentAdded    EventKind = "torrent_added"
	EventTorrentProgress EventKind = "torrent_progress"
	EventTorrentRemoved  EventKind = "torrent_removed"

	// Acquisition phases
	EventAcquisitionStarted EventKind = "acquisition_started"
	EventQueryBuildStarted  EventKind = "query_build_started"
	EventQueryBuildFinished EventKind = "query_build_finished"
	EventAcquisitionPhase   EventKind = "acquisition_phase"

	// Scoring
	EventScoringRound EventKind = "scoring_round"

	// LLM calls
	EventLlmCallStarted   EventKind = "llm_call_started"
	EventLlmCallFinished  EventKind = "llm_call_finished"
	EventLlmCallFailed    EventKind = "llm_call_failed"

	// Conversion
	EventConversionStarted  EventKind = "conversion_started"
	EventConversionProgress EventKind = "conversion_progress"
	EventConversionFinished EventKind = "conversion_finished"
	EventConversionFailed   EventKind = "conversion_failed"

	// Placement
	EventPlacementStarted     EventKind = "placement_started"
	EventPlacementFinished    EventKind = "placement_finished"
	EventPlacementFailed      EventKind = "placement_failed"
	EventPlacementRolledBack  EventKind = "placement_rolled_back"

	// Training-data capture
	EventTrainingDataCaptured EventKind = "training_data_captured"
)

// AuditEvent is one append-only audit log row.
type AuditEvent struct {
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Kind      EventKind `json:"event_type"`
	TicketID  string    `json:"ticket_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	Payload   []byte    `json:"data"`
}

// AuditFilter narrows AuditLog.Query results.
type AuditFilter struct {
	TicketID string
	Kind     EventKind
	HasKind  bool
	UserID   string
	From     time.Time
	To       time.Time
	HasRange bool
	Limit    int
	Offset   int
	Reverse  bool
}

// Clamp enforces the §4.2 pagination bounds. A negative Limit means
// "unset" and gets the default of 50; an explicit Limit of 0 is honored
// as-is per §8 ("limit=0 returns an empty list with the correct total").
func (f *AuditFilter) Clamp() {
	if f.Limit < 0 {
		f.Limit = 50
	}
	if f.Limit > 1000 {
		f.Limit = 1000
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// StateChangedPayload is the fixed payload shape for EventTicketStateChanged.
type StateChangedPayload struct {
	FromState StateType `json:"from_state"`
	ToState   StateType `json:"to_state"`
}
