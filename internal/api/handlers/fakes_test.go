// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lelloman/quentin/internal/domain"
)

// fakeTicketStore is a tiny in-memory TicketStore used by every handler
// test that needs one, mirroring the orchestrator package's own fake.
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

func (f *fakeTicketStore) Create(ctx context.Context, req domain.CreateTicketRequest) (domain.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now().UTC()
	t := domain.Ticket{
		ID:        "generated-id",
		CreatedAt: now,
		UpdatedAt: now,
		CreatedBy: req.CreatedBy,
		Priority:  req.Priority,
		QueryCtx:  req.QueryCtx,
		DestPath:  req.DestPath,
		Output:    req.Output,
		State:     domain.NewPendingState(),
	}
	f.tickets[t.ID] = t
	return t, nil
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

func (f *fakeTicketStore) get(id string) domain.Ticket {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tickets[id]
}

func (f *fakeTicketStore) List(ctx context.Context, filter domain.TicketFilter) ([]domain.Ticket, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Ticket
	for _, t := range f.tickets {
		if filter.HasStateType && t.State.Type != filter.StateType {
			continue
		}
		if filter.CreatedBy != "" && t.CreatedBy != filter.CreatedBy {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
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

// fakeAuditLog is a tiny in-memory AuditLog.
type fakeAuditLog struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func newFakeAuditLog(events ...domain.AuditEvent) *fakeAuditLog {
	return &fakeAuditLog{events: events}
}

func (f *fakeAuditLog) Query(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.AuditEvent
	for _, e := range f.events {
		if filter.TicketID != "" && e.TicketID != filter.TicketID {
			continue
		}
		if filter.HasKind && e.Kind != filter.Kind {
			continue
		}
		out = append(out, e)
	}
	return out, len(out), nil
}

// fakeBus records every publish the handlers under test make, so tests can
// assert the event bus was told about a ticket's new state without wiring
// a real *eventbus.Hub.
type fakeBus struct {
	mu       sync.Mutex
	updates  []domain.TicketState
	deletes  []string
}

func (f *fakeBus) PublishTicketUpdate(id string, state domain.TicketState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, state)
}

func (f *fakeBus) PublishTicketDeleted(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, id)
}

// fakeAdapter is a tiny torrentclient.Adapter double.
type fakeAdapter struct {
	mu       sync.Mutex
	infoHash string
	addErr   error
	progress domain.DownloadProgress
	opErr    error
}

func (f *fakeAdapter) AddMagnet(ctx context.Context, uri, savePath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.infoHash, f.addErr
}

func (f *fakeAdapter) AddFile(ctx context.Context, data []byte, savePath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.infoHash, f.addErr
}

func (f *fakeAdapter) AddURL(ctx context.Context, url, savePath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.infoHash, f.addErr
}

func (f *fakeAdapter) Progress(ctx context.Context, infoHash string) (domain.DownloadProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.progress, f.opErr
}

func (f *fakeAdapter) Files(ctx context.Context, infoHash string) ([]domain.TorrentFile, error) {
	return nil, f.opErr
}

func (f *fakeAdapter) Pause(ctx context.Context, infoHash string) error  { return f.opErr }
func (f *fakeAdapter) Resume(ctx context.Context, infoHash string) error { return f.opErr }
func (f *fakeAdapter) Recheck(ctx context.Context, infoHash string) error {
	return f.opErr
}
func (f *fakeAdapter) SetUploadLimit(ctx context.Context, infoHash string, bytesPerSec int64) error {
	return f.opErr
}
func (f *fakeAdapter) SetDownloadLimit(ctx context.Context, infoHash string, bytesPerSec int64) error {
	return f.opErr
}
func (f *fakeAdapter) Remove(ctx context.Context, infoHash string, deleteFiles bool) error {
	return f.opErr
}

// fakeCache is a tiny TorrentCache double.
type fakeCache struct {
	mu       sync.Mutex
	torrents map[string]domain.CachedTorrent
	stats    domain.CacheStats
	err      error
}

func newFakeCache(torrents ...domain.CachedTorrent) *fakeCache {
	m := make(map[string]domain.CachedTorrent, len(torrents))
	for _, t := range torrents {
		m[t.InfoHash] = t
	}
	return &fakeCache{torrents: m}
}

func (f *fakeCache) Get(ctx context.Context, hash string) (domain.CachedTorrent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.torrents[hash]
	if !ok {
		return domain.CachedTorrent{}, &domain.ErrNotFound{Kind: "cached torrent", ID: hash}
	}
	return t, nil
}

func (f *fakeCache) Remove(ctx context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.torrents, hash)
	return f.err
}

func (f *fakeCache) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.torrents = map[string]domain.CachedTorrent{}
	return f.err
}

func (f *fakeCache) Search(ctx context.Context, query string, limit int) ([]domain.CachedTorrent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]domain.CachedTorrent, 0, len(f.torrents))
	for _, t := range f.torrents {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InfoHash < out[j].InfoHash })
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeCache) Stats(ctx context.Context) (domain.CacheStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stats, f.err
}
