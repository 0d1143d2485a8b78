// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lelloman/quentin/internal/domain"
)

type fakeTicketStore struct {
	mu      sync.Mutex
	tickets map[string]domain.Ticket
}

func newFakeTicketStore(tickets ...domain.Ticket) *fakeTicketStore {
	m := make(map[string]domain.Ticket, len(tickets))
	for _, t := range tickets {
		m[t.ID] = t
	}
	return &fakeTicketStore{tickets: m}
}

func (f *fakeTicketStore) Get(ctx context.Context, id string) (domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return domain.Ticket{}, &domain.ErrNotFound{Kind: "ticket", ID: id}
	}
	return t, nil
}

func (f *fakeTicketStore) List(ctx context.Context, filter domain.TicketFilter) ([]domain.Ticket, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Ticket
	for _, t := range f.tickets {
		if filter.HasStateType && t.State.Type != filter.StateType {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, len(out), nil
}

func (f *fakeTicketStore) UpdateState(ctx context.Context, id string, newState domain.TicketState, expectedUpdatedAt time.Time) (domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return domain.Ticket{}, &domain.ErrNotFound{Kind: "ticket", ID: id}
	}
	if !t.UpdatedAt.Equal(expectedUpdatedAt) {
		return domain.Ticket{}, &domain.ErrConflictingUpdate{ID: id}
	}
	t.State = newState
	t.UpdatedAt = t.UpdatedAt.Add(time.Millisecond)
	f.tickets[id] = t
	return t, nil
}

func (f *fakeTicketStore) UpdateProgress(ctx context.Context, id string, newState domain.TicketState) (domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tickets[id]
	if !ok {
		return domain.Ticket{}, &domain.ErrNotFound{Kind: "ticket", ID: id}
	}
	t.State = newState
	f.tickets[id] = t
	return t, nil
}

func (f *fakeTicketStore) get(id string) domain.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tickets[id]
}

type fakeAuditLog struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (f *fakeAuditLog) Append(ctx context.Context, kind domain.EventKind, ticketID, userID string, payload []byte) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, domain.AuditEvent{Kind: kind, TicketID: ticketID, UserID: userID, Payload: payload})
	return int64(len(f.events)), nil
}

func (f *fakeAuditLog) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func (f *fakeAuditLog) kinds(ticketID string) []domain.EventKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.EventKind
	for _, e := range f.events {
		if e.TicketID == ticketID {
			out = append(out, e.Kind)
		}
	}
	return out
}

func (f *fakeAuditLog) has(ticketID string, kind domain.EventKind) bool {
	for _, k := range f.kinds(ticketID) {
		if k == kind {
			return true
		}
	}
	return false
}

type fakeAdapter struct {
	mu          sync.Mutex
	infoHash    string
	addErr      error
	progress    domain.DownloadProgress
	progressErr error
}

func (f *fakeAdapter) AddMagnet(ctx context.Context, uri, savePath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.infoHash, f.addErr
}

func (f *fakeAdapter) AddFile(ctx context.Context, data []byte, savePath string) (string, error) {
	return f.infoHash, f.addErr
}

func (f *fakeAdapter) AddURL(ctx context.Context, url, savePath string) (string, error) {
	return f.infoHash, f.addErr
}

func (f *fakeAdapter) Progress(ctx context.Context, infoHash string) (domain.DownloadProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.progress, f.progressErr
}

func (f *fakeAdapter) Files(ctx context.Context, infoHash string) ([]domain.TorrentFile, error) {
	return nil, nil
}

func (f *fakeAdapter) Pause(ctx context.Context, infoHash string) error  { return nil }
func (f *fakeAdapter) Resume(ctx context.Context, infoHash string) error { return nil }
func (f *fakeAdapter) Recheck(ctx context.Context, infoHash string) error { return nil }
func (f *fakeAdapter) SetUploadLimit(ctx context.Context, infoHash string, bytesPerSec int64) error {
	return nil
}
func (f *fakeAdapter) SetDownloadLimit(ctx context.Context, infoHash string, bytesPerSec int64) error {
	return nil
}
func (f *fakeAdapter) Remove(ctx context.Context, infoHash string, deleteFiles bool) error {
	return nil
}
