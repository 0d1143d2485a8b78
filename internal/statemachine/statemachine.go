// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package statemachine implements the ticket state machine's legality
// table (§4.1): given a current state and a requested next state, it
// answers whether the transition is legal and, if so, what audit event
// must accompany it.
package statemachine

import (
	"github.com/lelloman/quentin/internal/domain"
)

// legalTransitions maps a from-state-type to the set of to-state-types
// reachable from it directly. StateAcquiring is additionally legal to
// itself (phase progression) and is handled explicitly in Validate.
var legalTransitions = map[domain.StateType]map[domain.StateType]bool{
	domain.StatePending: {
		domain.StateAcquiring: true,
	},
	domain.StateAcquiring: {
		domain.StateNeedsApproval:     true,
		domain.StateAutoApproved:      true,
		domain.StateAcquisitionFailed: true,
	},
	domain.StateAcquisitionFailed: {
		domain.StateAcquiring:   true, // admin force-search
		domain.StateDownloading: true, // admin force-magnet
	},
	domain.StateNeedsApproval: {
		domain.StateApproved: true,
		domain.StateRejected: true,
	},
	domain.StateAutoApproved: {
		domain.StateDownloading: true,
	},
	domain.StateApproved: {
		domain.StateDownloading: true,
	},
	domain.StateDownloading: {
		domain.StateConverting: true,
	},
	domain.StateConverting: {
		domain.StatePlacing: true,
	},
	domain.StatePlacing: {
		domain.StateCompleted: true,
	},
	domain.StateFailed: {
		domain.StatePending: true, // admin retry of a retryable failure
	},
}

// nonTerminalTypes is every state type a ticket can be in while still
// eligible for Failed/Cancelled from "any non-terminal state".
var nonTerminalTypes = []domain.StateType{
	domain.StatePending,
	domain.StateAcquiring,
	domain.StateAcquisitionFailed,
	domain.StateNeedsApproval,
	domain.StateAutoApproved,
	domain.StateApproved,
	domain.StateDownloading,
	domain.StateConverting,
	domain.StatePlacing,
	domain.StateFailed, // retryable only: Validate rejects terminal states first
}

func isNonTerminalType(t domain.StateType) bool {
	for _, nt := range nonTerminalTypes {
		if nt == t {
			return true
		}
	}
	return false
}

// Validate reports whether moving a ticket currently in `from` to `to` is
// legal per §4.1. Phase progression within Acquiring (QueryBuilding ->
// Searching -> Scoring) is legal and is recognized as a same-type update
// rather than a table lookup.
func Validate(from, to domain.TicketState) error {
	if from.IsTerminal() {
		return &domain.ErrIllegalTransition{From: from.Type, To: to.Type}
	}

	if from.Type == domain.StateAcquiring && to.Type == domain.StateAcquiring {
		return nil
	}

	if to.Type == domain.StateFailed || to.Type == domain.StateCancelled {
		if isNonTerminalType(from.Type) {
			return nil
		}
		return &domain.ErrIllegalTransition{From: from.Type, To: to.Type}
	}

	if allowed, ok := legalTransitions[from.Type]; ok && allowed[to.Type] {
		return nil
	}

	return &domain.ErrIllegalTransition{From: from.Type, To: to.Type}
}

// BreakTie implements §4.1's tie-break order for scoring: higher score,
// then more total seeders, then earlier publication date, then
// lexicographically smaller info-hash. It returns true if a should sort
// before b.
func BreakTie(a, b domain.ScoredCandidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	aSeeders := a.Seeders
	bSeeders := b.Seeders
	if aSeeders != bSeeders {
		return aSeeders > bSeeders
	}
	if !a.PublishedAt.Equal(b.PublishedAt) {
		return a.PublishedAt.Before(b.PublishedAt)
	}
	return a.InfoHash < b.InfoHash
}
