// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lelloman/quentin/internal/domain"
)

// PlacementJob is one ticket's worth of final file moves.
type PlacementJob struct {
	TicketID string
	Priority uint16
	Items    []domain.PlacementItem

	OnItemPlaced func(idx int, item domain.PlacementItem)
	OnFailed     func(idx int, item domain.PlacementItem, err error)
	OnCompleted  func()
}

// PlacementPool moves converted files to their destinations, preferring an
// atomic rename and falling back to copy-then-remove across filesystems.
// Per §4.9's rollback discipline, any failure removes everything already
// placed for that ticket plus any directories the pool created.
type PlacementPool struct {
	pool *Pool
}

func NewPlacementPool(maxConcurrent int, registerer prometheus.Registerer) *PlacementPool {
	return &PlacementPool{pool: NewPool("placement", maxConcurrent, registerer)}
}

func (p *PlacementPool) Metrics() domain.PoolMetrics { return p.pool.Metrics() }

func (p *PlacementPool) Submit(job PlacementJob) {
	p.pool.Submit(Job{
		TicketID: job.TicketID,
		Priority: job.Priority,
		Run: func(ctx context.Context) {
			placed := make([]string, 0, len(job.Items))
			createdDirs := make([]string, 0)

			rollback := func() {
				for _, path := range placed {
					_ = os.Remove(path)
				}
				for i := len(createdDirs) - 1; i >= 0; i-- {
					_ = os.Remove(createdDirs[i])
				}
			}

			for idx, item := range job.Items {
				dir := filepath.Dir(item.DestPath)
				if created, err := ensureDir(dir); err != nil {
					p.pool.MarkFailed()
					rollback()
					if job.OnFailed != nil {
						job.OnFailed(idx, item, err)
					}
					return
				} else {
					createdDirs = append(createdDirs, created...)
				}

				if err := placeFile(item.SourcePath, item.DestPath); err != nil {
					p.pool.MarkFailed()
					rollback()
					if job.OnFailed != nil {
						job.OnFailed(idx, item, err)
					}
					return
				}
				placed = append(placed, item.DestPath)
				if job.OnItemPlaced != nil {
					job.OnItemPlaced(idx, item)
				}
			}

			p.pool.MarkProcessed()
			if job.OnCompleted != nil {
				job.OnCompleted()
			}
		},
	})
}

// ensureDir creates dir and any missing parents, returning the list of
// directories it actually created (innermost last) so a rollback can
// remove exactly what this placement added and nothing pre-existing.
func ensureDir(dir string) ([]string, error) {
	var missing []string
	for d := dir; ; d = filepath.Dir(d) {
		if _, err := os.Stat(d); err == nil {
			break
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		missing = append(missing, d)
		if d == filepath.Dir(d) {
			break
		}
	}
	for i := len(missing) - 1; i >= 0; i-- {
		if err := os.Mkdir(missing[i], 0o755); err != nil && !os.IsExist(err) {
			return nil, err
		}
	}
	created := make([]string, len(missing))
	copy(created, missing)
	for i, j := 0, len(created)-1; i < j; i, j = i+1, j-1 {
		created[i], created[j] = created[j], created[i]
	}
	return created, nil
}

// placeFile prefers an atomic same-filesystem rename, falling back to
// copy-then-remove when the rename fails across filesystems.
func placeFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}
	// Rename fails across filesystems (EXDEV); copy-then-remove covers
	// that case as well as any other rename failure worth retrying this way.

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		_ = os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dest)
		return err
	}
	return os.Remove(src)
}
