// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package torrentclient

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"

	qbt "github.com/autobrr/go-qbittorrent"
	"github.com/rs/zerolog/log"
	"github.com/zeebo/bencode"

	"github.com/lelloman/quentin/internal/domain"
)

// QbittorrentAdapter implements Adapter against a single qBittorrent Web
// API instance via go-qbittorrent.
type QbittorrentAdapter struct {
	client *qbt.Client
}

func NewQbittorrentAdapter(ctx context.Context, host, username, password string, timeoutSecs int) (*QbittorrentAdapter, error) {
	if timeoutSecs <= 0 {
		timeoutSecs = 30
	}
	client := qbt.NewClient(qbt.Config{
		Host:     host,
		Username: username,
		Password: password,
		Timeout:  timeoutSecs,
	})
	if err := client.LoginCtx(ctx); err != nil {
		return nil, fmt.Errorf("connect to qbittorrent at %s: %w", host, err)
	}
	log.Debug().Str("host", host).Msg("qbittorrent adapter connected")
	return &QbittorrentAdapter{client: client}, nil
}

func (a *QbittorrentAdapter) AddMagnet(ctx context.Context, uri, savePath string) (string, error) {
	hash, err := magnetInfoHash(uri)
	if err != nil {
		return "", err
	}
	opts := map[string]string{"savepath": savePath}
	if err := a.client.AddTorrentFromUrlCtx(ctx, uri, opts); err != nil {
		return "", fmt.Errorf("add magnet: %w", err)
	}
	return hash, nil
}

func (a *QbittorrentAdapter) AddFile(ctx context.Context, data []byte, savePath string) (string, error) {
	hash, err := torrentFileInfoHash(data)
	if err != nil {
		return "", fmt.Errorf("add torrent file: %w", err)
	}
	opts := map[string]string{"savepath": savePath}
	if err := a.client.AddTorrentFromMemoryCtx(ctx, data, opts); err != nil {
		return "", fmt.Errorf("add torrent file: %w", err)
	}
	return hash, nil
}

// torrentFileInfoHash computes a .torrent file's info-hash the standard
// way: bencode-decode just far enough to isolate the raw "info" dict, then
// SHA-1 it. Isolating the raw bytes (rather than re-marshaling a decoded
// struct) is required because the hash is only stable over the info dict's
// exact original byte encoding.
func torrentFileInfoHash(data []byte) (string, error) {
	var file struct {
		Info bencode.RawMessage `bencode:"info"`
	}
	if err := bencode.Unmarshal(data, &file); err != nil {
		return "", fmt.Errorf("decode torrent file: %w", err)
	}
	if len(file.Info) == 0 {
		return "", fmt.Errorf("torrent file has no info dict")
	}
	sum := sha1.Sum(file.Info)
	return hex.EncodeToString(sum[:]), nil
}

func (a *QbittorrentAdapter) AddURL(ctx context.Context, url, savePath string) (string, error) {
	opts := map[string]string{"savepath": savePath}
	if err := a.client.AddTorrentFromUrlCtx(ctx, url, opts); err != nil {
		return "", fmt.Errorf("add torrent url: %w", err)
	}
	torrents, err := a.client.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{})
	if err != nil {
		return "", fmt.Errorf("locate torrent added from url: %w", err)
	}
	for _, t := range torrents {
		if t.SavePath == savePath {
			return t.Hash, nil
		}
	}
	return "", fmt.Errorf("torrent added from %s not found among instance torrents", url)
}

func (a *QbittorrentAdapter) Progress(ctx context.Context, infoHash string) (domain.DownloadProgress, error) {
	torrents, err := a.client.GetTorrentsCtx(ctx, qbt.TorrentFilterOptions{Hashes: []string{infoHash}})
	if err != nil {
		return domain.DownloadProgress{}, fmt.Errorf("get torrent progress: %w", err)
	}
	if len(torrents) == 0 {
		return domain.DownloadProgress{}, fmt.Errorf("torrent %s not found", infoHash)
	}
	t := torrents[0]
	return domain.DownloadProgress{
		Percent:   t.Progress * 100,
		DownSpeed: t.DlSpeed,
		UpSpeed:   t.UpSpeed,
		ETASecs:   t.ETA,
		State:     mapTorrentState(t.State),
	}, nil
}

func (a *QbittorrentAdapter) Files(ctx context.Context, infoHash string) ([]domain.TorrentFile, error) {
	files, err := a.client.GetFilesInformationCtx(ctx, infoHash)
	if err != nil {
		return nil, fmt.Errorf("get torrent files: %w", err)
	}
	out := make([]domain.TorrentFile, 0, len(*files))
	for _, f := range *files {
		out = append(out, domain.TorrentFile{Path: f.Name, Size: f.Size})
	}
	return out, nil
}

func (a *QbittorrentAdapter) Pause(ctx context.Context, infoHash string) error {
	return a.client.PauseCtx(ctx, []string{infoHash})
}

func (a *QbittorrentAdapter) Resume(ctx context.Context, infoHash string) error {
	return a.client.ResumeCtx(ctx, []string{infoHash})
}

func (a *QbittorrentAdapter) Recheck(ctx context.Context, infoHash string) error {
	return a.client.RecheckCtx(ctx, []string{infoHash})
}

func (a *QbittorrentAdapter) SetUploadLimit(ctx context.Context, infoHash string, bytesPerSec int64) error {
	return a.client.SetTorrentUploadLimitCtx(ctx, []string{infoHash}, bytesPerSec)
}

func (a *QbittorrentAdapter) SetDownloadLimit(ctx context.Context, infoHash string, bytesPerSec int64) error {
	return a.client.SetTorrentDownloadLimitCtx(ctx, []string{infoHash}, bytesPerSec)
}

func (a *QbittorrentAdapter) Remove(ctx context.Context, infoHash string, deleteFiles bool) error {
	return a.client.DeleteTorrentsCtx(ctx, []string{infoHash}, deleteFiles)
}

func mapTorrentState(s qbt.TorrentState) domain.DownloadState {
	switch s {
	case qbt.TorrentStatePausedDl, qbt.TorrentStatePausedUp:
		return domain.DownloadStatePaused
	case qbt.TorrentStateUploading, qbt.TorrentStateStalledUp, qbt.TorrentStateQueuedUp, qbt.TorrentStateForcedUp:
		return domain.DownloadStateSeeding
	case qbt.TorrentStateError, qbt.TorrentStateMissingFiles:
		return domain.DownloadStateError
	default:
		return domain.DownloadStateDownloading
	}
}

// magnetInfoHash extracts the BTIH info-hash from a magnet URI's xt
// parameter without pulling in a full URI parser for one query param.
func magnetInfoHash(uri string) (string, error) {
	const marker = "xt=urn:btih:"
	idx := strings.Index(uri, marker)
	if idx < 0 {
		return "", fmt.Errorf("magnet uri missing xt=urn:btih: parameter")
	}
	rest := uri[idx+len(marker):]
	if amp := strings.IndexByte(rest, '&'); amp >= 0 {
		rest = rest[:amp]
	}
	return strings.ToLower(rest), nil
}
