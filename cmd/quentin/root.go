// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "quentin",
	Short: "quentin runs the ticket acquisition engine",
	Long: `quentin turns a ticket describing wanted content into a placed,
verified file on disk: it searches configured indexers, scores the
candidates, drives the torrent client through download, converts and
places the result, and exposes the whole lifecycle over HTTP and a
WebSocket event feed.`,
	RunE: runServe,
}

// Execute adds every subcommand and runs the root command. Called once
// from main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("quentin exited with an error")
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", os.Getenv("QUENTIN_CONFIG"), "path to the quentin TOML configuration file")
	rootCmd.AddCommand(serveCmd)
}

func configureLogging(level, path string) error {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)

	if path == "" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		return nil
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	log.Logger = zerolog.New(f).With().Timestamp().Logger()
	return nil
}
