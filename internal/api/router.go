// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/lelloman/quentin/internal/api/handlers"
	apimiddleware "github.com/lelloman/quentin/internal/api/middleware"
	"github.com/lelloman/quentin/internal/domain"
	"github.com/lelloman/quentin/internal/eventbus"
	"github.com/lelloman/quentin/internal/ratelimiter"
	"github.com/lelloman/quentin/internal/searcher"
	"github.com/lelloman/quentin/internal/store"
	"github.com/lelloman/quentin/internal/torrentclient"
)

// Dependencies holds every collaborator the HTTP surface needs. Each is
// constructed once at startup and handed to NewRouter; none of them is
// owned by the router itself.
type Dependencies struct {
	Config       *domain.Config
	Tickets      *store.TicketStore
	Audit        *store.AuditLog
	Cache        *store.TorrentCache
	RateLimiter  *ratelimiter.Pool
	Searcher     *searcher.Engine
	TorrentAdapter torrentclient.Adapter
	Bus          *eventbus.Hub
	Snapshot     eventbus.SnapshotFunc
	StagingDir   string
}

// NewRouter builds the full `/api/v1` surface (§6) plus `/health` and
// `/ws`, wired with the ambient middleware chain: request id, structured
// logging, panic recovery, real client IP, CORS, then identity resolution.
func NewRouter(deps *Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(apimiddleware.HTTPLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(apimiddleware.CORS(corsOrigins()))

	ticketsHandler := handlers.NewTicketsHandler(deps.Tickets, deps.Audit, deps.Bus, deps.TorrentAdapter, deps.StagingDir)
	searcherHandler := handlers.NewSearcherHandler(deps.Searcher, deps.RateLimiter)
	catalogHandler := handlers.NewCatalogHandler(deps.Cache)
	torrentsHandler := handlers.NewTorrentsHandler(deps.TorrentAdapter, deps.Tickets, deps.StagingDir)
	auditHandler := handlers.NewAuditHandler(deps.Audit)
	systemHandler := handlers.NewSystemHandler(deps.Config)

	r.Get("/health", systemHandler.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apimiddleware.Identity(&deps.Config.Auth))

		r.Get("/config", systemHandler.Config)

		r.Route("/tickets", func(r chi.Router) {
			r.Post("/", ticketsHandler.Create)
			r.Get("/", ticketsHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", ticketsHandler.Get)
				r.Delete("/", ticketsHandler.Cancel)
				r.Get("/audit", ticketsHandler.Audit)
				r.Post("/approve", ticketsHandler.Approve)
				r.Post("/reject", ticketsHandler.Reject)
				r.Post("/retry", ticketsHandler.Retry)
				r.Post("/force-search", ticketsHandler.ForceSearch)
				r.Post("/force-magnet", ticketsHandler.ForceMagnet)
			})
		})

		r.Post("/search", searcherHandler.Search)
		r.Route("/searcher", func(r chi.Router) {
			r.Get("/status", searcherHandler.Status)
			r.Get("/indexers", searcherHandler.Indexers)
			r.Patch("/indexers/{name}", searcherHandler.PatchIndexer)
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/", catalogHandler.List)
			r.Delete("/", catalogHandler.Clear)
			r.Get("/stats", catalogHandler.Stats)
			r.Get("/{hash}", catalogHandler.Get)
			r.Delete("/{hash}", catalogHandler.Delete)
		})

		r.Route("/torrents", func(r chi.Router) {
			r.Get("/", torrentsHandler.List)
			r.Route("/add", func(r chi.Router) {
				r.Post("/magnet", torrentsHandler.AddMagnet)
				r.Post("/file", torrentsHandler.AddFile)
				r.Post("/url", torrentsHandler.AddURL)
			})
			r.Route("/{hash}", func(r chi.Router) {
				r.Get("/", torrentsHandler.Get)
				r.Delete("/", torrentsHandler.Delete)
				r.Post("/pause", torrentsHandler.Pause)
				r.Post("/resume", torrentsHandler.Resume)
				r.Post("/recheck", torrentsHandler.Recheck)
				r.Post("/upload-limit", torrentsHandler.UploadLimit)
				r.Post("/download-limit", torrentsHandler.DownloadLimit)
			})
		})

		r.Get("/audit", auditHandler.List)

		r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
			eventbus.ServeWS(deps.Bus, deps.Snapshot, w, r)
		})
	})

	return r
}

// corsOrigins allows the dashboard's dev-server ports. Unlike the teacher,
// quentin's [server] section carries no base_url to append here; a
// single-page dashboard proxied through the same origin as the API needs
// no additional entry.
func corsOrigins() []string {
	return []string{"http://localhost:3000", "http://localhost:5173"}
}
