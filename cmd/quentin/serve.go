// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/lelloman/quentin/internal/api"
	"github.com/lelloman/quentin/internal/config"
	"github.com/lelloman/quentin/internal/database"
	"github.com/lelloman/quentin/internal/domain"
	"github.com/lelloman/quentin/internal/eventbus"
	"github.com/lelloman/quentin/internal/orchestrator"
	"github.com/lelloman/quentin/internal/pipeline"
	"github.com/lelloman/quentin/internal/ratelimiter"
	"github.com/lelloman/quentin/internal/searcher"
	"github.com/lelloman/quentin/internal/store"
	"github.com/lelloman/quentin/internal/textbrain"
	"github.com/lelloman/quentin/internal/torrentclient"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server and the three background workers",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := configureLogging(cfg.LogLevel, cfg.LogPath); err != nil {
		return err
	}
	log.Info().Str("addr", cfg.Server.Host).Int("port", cfg.Server.Port).Msg("quentin starting")

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	tickets := store.NewTicketStore(db)
	audit := store.NewAuditLog(db)
	cache := store.NewTorrentCache(db)

	limiter := ratelimiter.NewPool(cfg.Searcher.Jackett.Indexers)

	backends := make(map[string]searcher.Backend, len(cfg.Searcher.Jackett.Indexers))
	enabled := make(map[string]bool, len(cfg.Searcher.Jackett.Indexers))
	timeout := time.Duration(cfg.Searcher.Jackett.TimeoutSecs) * time.Second
	for _, idx := range cfg.Searcher.Jackett.Indexers {
		backends[idx.Name] = searcher.NewJackettBackend(cfg.Searcher.Jackett.URL, cfg.Searcher.Jackett.APIKey, timeout)
		enabled[idx.Name] = idx.Enabled
	}
	engine := searcher.NewEngine(backends, enabled, limiter, cache)

	ctx, cancelConnect := context.WithTimeout(context.Background(), 30*time.Second)
	adapter, err := torrentclient.NewQbittorrentAdapter(ctx, cfg.TorrentClient.Host, cfg.TorrentClient.Username, cfg.TorrentClient.Password, 30)
	cancelConnect()
	if err != nil {
		return err
	}

	brain := textbrain.New(llmClientFor(cfg.TextBrain), cfg.TextBrain.Mode)

	registerer := prometheus.DefaultRegisterer
	conversion := pipeline.NewConversionPool(cfg.Orchestrator.ConversionWorkers, pipeline.NewFFmpegConverter(), registerer)
	placement := pipeline.NewPlacementPool(cfg.Orchestrator.PlacementWorkers, registerer)

	bus := eventbus.NewHub()

	orch := orchestrator.New(orchestrator.Deps{
		Config:               cfg.Orchestrator,
		AutoApproveThreshold: cfg.TextBrain.AutoApproveThreshold,
		Tickets:              tickets,
		Audit:                audit,
		Search:               engine,
		Brain:                brain,
		Adapter:              adapter,
		Conversion:           conversion,
		Placement:            placement,
		Bus:                  bus,
	})
	orch.Start()
	defer orch.Stop()

	snapshot := func(includeTerminal bool) []domain.Ticket {
		all, _, err := tickets.List(context.Background(), domain.TicketFilter{Limit: 1000})
		if err != nil {
			log.Warn().Err(err).Msg("failed to build websocket snapshot")
			return nil
		}
		if includeTerminal {
			return all
		}
		active := make([]domain.Ticket, 0, len(all))
		for _, t := range all {
			if !t.State.IsTerminal() {
				active = append(active, t)
			}
		}
		return active
	}

	router := api.NewRouter(&api.Dependencies{
		Config:         cfg,
		Tickets:        tickets,
		Audit:          audit,
		Cache:          cache,
		RateLimiter:    limiter,
		Searcher:       engine,
		TorrentAdapter: adapter,
		Bus:            bus,
		Snapshot:       snapshot,
		StagingDir:     cfg.Orchestrator.StagingDir,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Host + ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0, // long-lived WebSocket connections
		IdleTimeout:       60 * time.Second,
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Info().Str("addr", srv.Addr).Msg("http server listening")

	select {
	case <-rootCtx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown error")
	}
	return nil
}

// llmClientFor returns nil when no [textbrain.llm] table is configured;
// Brain already tolerates a nil client for every mode except llm_only,
// which config.Load's Validate rejects at startup.
func llmClientFor(cfg domain.TextBrainConfig) textbrain.LlmClient {
	if cfg.Llm == nil {
		return nil
	}
	return textbrain.NewHTTPLlmClient(
		cfg.Llm.Provider,
		cfg.Llm.Model,
		cfg.Llm.APIKey,
		cfg.Llm.APIBase,
		time.Duration(cfg.Llm.TimeoutSecs)*time.Second,
	)
}

