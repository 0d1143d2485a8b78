// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package torrentclient implements §4.8's torrent client adapter contract
// against a backing torrent daemon. The only shipped backend talks to
// qBittorrent's Web API via go-qbittorrent; the interface exists so the
// orchestrator never depends on a concrete backend.
package torrentclient

import (
	"context"

	"github.com/lelloman/quentin/internal/domain"
)

// Adapter is the full §4.8 contract.
type Adapter interface {
	AddMagnet(ctx context.Context, uri, savePath string) (infoHash string, err error)
	AddFile(ctx context.Context, data []byte, savePath string) (infoHash string, err error)
	AddURL(ctx context.Context, url, savePath string) (infoHash string, err error)

	Progress(ctx context.Context, infoHash string) (domain.DownloadProgress, error)
	Files(ctx context.Context, infoHash string) ([]domain.TorrentFile, error)

	Pause(ctx context.Context, infoHash string) error
	Resume(ctx context.Context, infoHash string) error
	Recheck(ctx context.Context, infoHash string) error
	SetUploadLimit(ctx context.Context, infoHash string, bytesPerSec int64) error
	SetDownloadLimit(ctx context.Context, infoHash string, bytesPerSec int64) error
	Remove(ctx context.Context, infoHash string, deleteFiles bool) error
}
