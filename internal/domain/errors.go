// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "fmt"

// ErrNotFound is returned when a ticket, cached torrent or audit row does not exist.
type ErrNotFound struct {
	Kind string
	ID   string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// ErrIllegalTransition is returned when a requested ticket state transition
// is not present in the legal transition table.
type ErrIllegalTransition struct {
	From StateType
	To   StateType
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("illegal transition from %s to %s", e.From, e.To)
}

// ErrConflictingUpdate is returned by Store.UpdateState when the caller's
// expected_updated_at no longer matches the persisted row.
type ErrConflictingUpdate struct {
	ID string
}

func (e *ErrConflictingUpdate) Error() string {
	return fmt.Sprintf("ticket %q was concurrently updated", e.ID)
}

// ErrStorage wraps an underlying storage failure.
type ErrStorage struct {
	Op  string
	Err error
}

func (e *ErrStorage) Error() string {
	return fmt.Sprintf("storage error during %s: %v", e.Op, e.Err)
}

func (e *ErrStorage) Unwrap() error { return e.Err }

// ErrRateLimited is returned when an indexer's token bucket has no tokens
// available. It is never surfaced directly to a user; it is recorded as a
// per-indexer search error.
type ErrRateLimited struct {
	Indexer      string
	RetryAfterMs int64
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("indexer %q rate limited, retry after %dms", e.Indexer, e.RetryAfterMs)
}

// ErrAllIndexersFailed is returned by the search fan-out when every target
// indexer failed or was skipped.
type ErrAllIndexersFailed struct {
	Errors map[string]string
}

func (e *ErrAllIndexersFailed) Error() string {
	return fmt.Sprintf("all %d indexers failed", len(e.Errors))
}

// ErrLlmUnavailable indicates the configured LLM client could not be reached
// or is not configured, while the TextBrain mode required it.
type ErrLlmUnavailable struct {
	Reason string
}

func (e *ErrLlmUnavailable) Error() string {
	return fmt.Sprintf("llm unavailable: %s", e.Reason)
}

// ErrConfigInvalid is a fatal startup error.
type ErrConfigInvalid struct {
	Reason string
}

func (e *ErrConfigInvalid) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Reason)
}
