// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "time"

// StateType tags the variant of a TicketState. Serialization embeds this
// tag (snake_case) next to the variant's own fields rather than nesting
// them under a separate payload key, mirroring how the engine's other
// tagged unions (auth method, torrent client backend, content module) are
// represented on the wire.
type StateType string

const (
	StatePending           StateType = "pending"
	StateAcquiring         StateType = "acquiring"
	StateAcquisitionFailed StateType = "acquisition_failed"
	StateNeedsApproval     StateType = "needs_approval"
	StateAutoApproved      StateType = "auto_approved"
	StateApproved          StateType = "approved"
	StateDownloading       StateType = "downloading"
	StateConverting        StateType = "converting"
	StatePlacing           StateType = "placing"
	StateCompleted         StateType = "completed"
	StateRejected          StateType = "rejected"
	StateFailed            StateType = "failed"
	StateCancelled         StateType = "cancelled"
)

// AcquisitionPhase is the sub-state of StateAcquiring.
type AcquisitionPhase string

const (
	PhaseQueryBuilding AcquisitionPhase = "query_building"
	PhaseSearching     AcquisitionPhase = "searching"
	PhaseScoring       AcquisitionPhase = "scoring"
)

// CompletionStats summarizes a finished ticket for the Completed state.
type CompletionStats struct {
	TotalBytes     int64 `json:"total_bytes"`
	FilesPlaced    int   `json:"files_placed"`
	DurationMillis int64 `json:"duration_millis"`
}

// TicketState is the tagged variant describing where a ticket stands in
// its lifecycle. Only the fields relevant to Type are populated; the rest
// are left at their zero value and omitted from JSON.
type TicketState struct {
	Type StateType `json:"type"`

	// Acquiring
	QueriesTried   []string         `json:"queries_tried,omitempty"`
	CandidatesSeen int              `json:"candidates_seen,omitempty"`
	Phase          AcquisitionPhase `json:"phase,omitempty"`
	CurrentQuery   string           `json:"current_query,omitempty"`
	StartedAt      *time.Time       `json:"started_at,omitempty"`

	// Shared by AcquisitionFailed / Rejected / Cancelled / Failed
	Reason string `json:"reason,omitempty"`

	// AcquisitionFailed / Failed
	FailedAt *time.Time `json:"failed_at,omitempty"`

	// NeedsApproval
	Candidates     []ScoredCandidate `json:"candidates,omitempty"`
	RecommendedIdx int               `json:"recommended_idx,omitempty"`
	Confidence     float64           `json:"confidence,omitempty"`
	WaitingSince   *time.Time        `json:"waiting_since,omitempty"`

	// AutoApproved / Approved
	Selected   *ScoredCandidate `json:"selected,omitempty"`
	ApprovedBy string           `json:"approved_by,omitempty"`
	ApprovedAt *time.Time       `json:"approved_at,omitempty"`

	// Downloading
	InfoHash string  `json:"info_hash,omitempty"`
	Percent  float64 `json:"percent,omitempty"`
	Speed    int64   `json:"speed,omitempty"`
	ETA      int64   `json:"eta,omitempty"`

	// Converting
	CurrentIdx  int    `json:"current_idx,omitempty"`
	Total       int    `json:"total,omitempty"`
	CurrentName string `json:"current_name,omitempty"`

	// Placing
	FilesPlaced int `json:"files_placed,omitempty"`
	TotalFiles  int `json:"total_files,omitempty"`

	// Completed
	Stats       *CompletionStats `json:"stats,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`

	// Rejected
	RejectedBy string     `json:"rejected_by,omitempty"`
	RejectedAt *time.Time `json:"rejected_at,omitempty"`

	// Failed
	Retryable  bool `json:"retryable,omitempty"`
	RetryCount int  `json:"retry_count,omitempty"`

	// Cancelled
	CancelledBy string     `json:"cancelled_by,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

// Terminal states from which no further legal transition exists, per §4.1.
// Failed is terminal only when it is not retryable. AcquisitionFailed is
// never terminal: the force-search/force-magnet admin actions stay legal
// against it through the state machine's ordinary transition table.
func (s TicketState) IsTerminal() bool {
	switch s.Type {
	case StateCompleted, StateRejected, StateCancelled:
		return true
	case StateFailed:
		return !s.Retryable
	default:
		return false
	}
}

func now() time.Time { return time.Now().UTC() }

func NewPendingState() TicketState {
	return TicketState{Type: StatePending}
}

func NewAcquiringState(phase AcquisitionPhase, queriesTried []string, candidatesSeen int, startedAt time.Time) TicketState {
	t := startedAt
	return TicketState{
		Type:           StateAcquiring,
		Phase:          phase,
		QueriesTried:   queriesTried,
		CandidatesSeen: candidatesSeen,
		StartedAt:      &t,
	}
}

func NewAcquisitionFailedState(reason string) TicketState {
	t := now()
	return TicketState{Type: StateAcquisitionFailed, Reason: reason, FailedAt: &t}
}

func NewNeedsApprovalState(candidates []ScoredCandidate, recommendedIdx int, confidence float64) TicketState {
	t := now()
	return TicketState{
		Type:           StateNeedsApproval,
		Candidates:     candidates,
		RecommendedIdx: recommendedIdx,
		Confidence:     confidence,
		WaitingSince:   &t,
	}
}

func NewAutoApprovedState(selected ScoredCandidate, confidence float64) TicketState {
	t := now()
	return TicketState{Type: StateAutoApproved, Selected: &selected, Confidence: confidence, ApprovedAt: &t}
}

func NewApprovedState(selected ScoredCandidate, approvedBy string) TicketState {
	t := now()
	return TicketState{Type: StateApproved, Selected: &selected, ApprovedBy: approvedBy, ApprovedAt: &t}
}

func NewDownloadingState(infoHash string) TicketState {
	t := now()
	return TicketState{Type: StateDownloading, InfoHash: infoHash, StartedAt: &t}
}

func NewConvertingState(total int) TicketState {
	t := now()
	return TicketState{Type: StateConverting, Total: total, StartedAt: &t}
}

func NewPlacingState(totalFiles int) TicketState {
	t := now()
	return TicketState{Type: StatePlacing, TotalFiles: totalFiles, StartedAt: &t}
}

func NewCompletedState(stats CompletionStats) TicketState {
	t := now()
	return TicketState{Type: StateCompleted, Stats: &stats, CompletedAt: &t}
}

func NewRejectedState(rejectedBy, reason string) TicketState {
	t := now()
	return TicketState{Type: StateRejected, RejectedBy: rejectedBy, Reason: reason, RejectedAt: &t}
}

func NewFailedState(errMsg string, retryable bool, retryCount int) TicketState {
	t := now()
	return TicketState{Type: StateFailed, Reason: errMsg, Retryable: retryable, RetryCount: retryCount, FailedAt: &t}
}

func NewCancelledState(cancelledBy, reason string) TicketState {
	t := now()
	return TicketState{Type: StateCancelled, CancelledBy: cancelledBy, Reason: reason, CancelledAt: &t}
}
