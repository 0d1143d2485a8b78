// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"io"
	"net/http"
	"path/filepath"

	"github.com/lelloman/quentin/internal/domain"
	"github.com/lelloman/quentin/internal/torrentclient"
)

// TorrentsHandler implements the `/torrents` routes (§6): a thin
// administrative surface over the §4.8 torrent client adapter. Only List
// is scoped to tickets: it covers the info-hashes that tickets currently
// in Downloading hold; the other routes act on whatever info-hash the
// request names.
type TorrentsHandler struct {
	adapter    torrentclient.Adapter
	tickets    TicketStore
	stagingDir string
}

func NewTorrentsHandler(adapter torrentclient.Adapter, tickets TicketStore, stagingDir string) *TorrentsHandler {
	return &TorrentsHandler{adapter: adapter, tickets: tickets, stagingDir: stagingDir}
}

type torrentView struct {
	InfoHash string                 `json:"info_hash"`
	TicketID string                 `json:"ticket_id"`
	Progress domain.DownloadProgress `json:"progress"`
}

type torrentListResponse struct {
	Torrents []torrentView `json:"torrents"`
}

// List handles `GET /torrents`: progress for every ticket currently in
// Downloading.
func (h *TorrentsHandler) List(w http.ResponseWriter, r *http.Request) {
	downloading, _, err := h.tickets.List(r.Context(), domain.TicketFilter{
		HasStateType: true,
		StateType:    domain.StateDownloading,
		Limit:        1000,
	})
	if err != nil {
		RespondDomainError(w, err)
		return
	}

	views := make([]torrentView, 0, len(downloading))
	for _, t := range downloading {
		progress, err := h.adapter.Progress(r.Context(), t.State.InfoHash)
		if err != nil {
			continue
		}
		views = append(views, torrentView{InfoHash: t.State.InfoHash, TicketID: t.ID, Progress: progress})
	}
	RespondJSON(w, http.StatusOK, torrentListResponse{Torrents: views})
}

type torrentDetailResponse struct {
	InfoHash string                `json:"info_hash"`
	Progress domain.DownloadProgress `json:"progress"`
	Files    []domain.TorrentFile  `json:"files"`
}

// Get handles `GET /torrents/{hash}`.
func (h *TorrentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	hash, ok := ParseTorrentHash(w, r)
	if !ok {
		return
	}
	progress, err := h.adapter.Progress(r.Context(), hash)
	if err != nil {
		RespondError(w, http.StatusNotFound, "torrent not found")
		return
	}
	files, err := h.adapter.Files(r.Context(), hash)
	if err != nil {
		files = nil
	}
	RespondJSON(w, http.StatusOK, torrentDetailResponse{InfoHash: hash, Progress: progress, Files: files})
}

// Delete handles `DELETE /torrents/{hash}?delete_files=`.
func (h *TorrentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	hash, ok := ParseTorrentHash(w, r)
	if !ok {
		return
	}
	deleteFiles := r.URL.Query().Get("delete_files") == "true"
	if err := h.adapter.Remove(r.Context(), hash, deleteFiles); err != nil {
		RespondError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type addMagnetBody struct {
	MagnetURI string `json:"magnet_uri"`
	SaveDir   string `json:"save_dir,omitempty"`
}

type addURLBody struct {
	URL     string `json:"url"`
	SaveDir string `json:"save_dir,omitempty"`
}

type addTorrentResponse struct {
	InfoHash string `json:"info_hash"`
}

func (h *TorrentsHandler) savePath(subdir string) string {
	if subdir == "" {
		return h.stagingDir
	}
	return filepath.Join(h.stagingDir, subdir)
}

// AddMagnet handles `POST /torrents/add/magnet`.
func (h *TorrentsHandler) AddMagnet(w http.ResponseWriter, r *http.Request) {
	var body addMagnetBody
	if !DecodeJSON(w, r, &body) || body.MagnetURI == "" {
		RespondError(w, http.StatusBadRequest, "magnet_uri is required")
		return
	}
	infoHash, err := h.adapter.AddMagnet(r.Context(), body.MagnetURI, h.savePath(body.SaveDir))
	if err != nil {
		RespondError(w, http.StatusBadGateway, err.Error())
		return
	}
	RespondJSON(w, http.StatusCreated, addTorrentResponse{InfoHash: infoHash})
}

// AddFile handles `POST /torrents/add/file`: a raw .torrent file upload.
func (h *TorrentsHandler) AddFile(w http.ResponseWriter, r *http.Request) {
	saveDir := r.URL.Query().Get("save_dir")
	data, err := io.ReadAll(io.LimitReader(r.Body, 16<<20))
	if err != nil || len(data) == 0 {
		RespondError(w, http.StatusBadRequest, "request body must be a .torrent file")
		return
	}
	infoHash, err := h.adapter.AddFile(r.Context(), data, h.savePath(saveDir))
	if err != nil {
		RespondError(w, http.StatusBadGateway, err.Error())
		return
	}
	RespondJSON(w, http.StatusCreated, addTorrentResponse{InfoHash: infoHash})
}

// AddURL handles `POST /torrents/add/url`: a .torrent file fetched by URL.
func (h *TorrentsHandler) AddURL(w http.ResponseWriter, r *http.Request) {
	var body addURLBody
	if !DecodeJSON(w, r, &body) || body.URL == "" {
		RespondError(w, http.StatusBadRequest, "url is required")
		return
	}
	infoHash, err := h.adapter.AddURL(r.Context(), body.URL, h.savePath(body.SaveDir))
	if err != nil {
		RespondError(w, http.StatusBadGateway, err.Error())
		return
	}
	RespondJSON(w, http.StatusCreated, addTorrentResponse{InfoHash: infoHash})
}

// Pause handles `POST /torrents/{hash}/pause`.
func (h *TorrentsHandler) Pause(w http.ResponseWriter, r *http.Request) {
	hash, ok := ParseTorrentHash(w, r)
	if !ok {
		return
	}
	if err := h.adapter.Pause(r.Context(), hash); err != nil {
		RespondError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Resume handles `POST /torrents/{hash}/resume`.
func (h *TorrentsHandler) Resume(w http.ResponseWriter, r *http.Request) {
	hash, ok := ParseTorrentHash(w, r)
	if !ok {
		return
	}
	if err := h.adapter.Resume(r.Context(), hash); err != nil {
		RespondError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Recheck handles `POST /torrents/{hash}/recheck`.
func (h *TorrentsHandler) Recheck(w http.ResponseWriter, r *http.Request) {
	hash, ok := ParseTorrentHash(w, r)
	if !ok {
		return
	}
	if err := h.adapter.Recheck(r.Context(), hash); err != nil {
		RespondError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type limitBody struct {
	BytesPerSec int64 `json:"bytes_per_sec"`
}

// UploadLimit handles `POST /torrents/{hash}/upload-limit`.
func (h *TorrentsHandler) UploadLimit(w http.ResponseWriter, r *http.Request) {
	hash, ok := ParseTorrentHash(w, r)
	if !ok {
		return
	}
	var body limitBody
	if !DecodeJSON(w, r, &body) {
		return
	}
	if err := h.adapter.SetUploadLimit(r.Context(), hash, body.BytesPerSec); err != nil {
		RespondError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DownloadLimit handles `POST /torrents/{hash}/download-limit`.
func (h *TorrentsHandler) DownloadLimit(w http.ResponseWriter, r *http.Request) {
	hash, ok := ParseTorrentHash(w, r)
	if !ok {
		return
	}
	var body limitBody
	if !DecodeJSON(w, r, &body) {
		return
	}
	if err := h.adapter.SetDownloadLimit(r.Context(), hash, body.BytesPerSec); err != nil {
		RespondError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
