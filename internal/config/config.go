// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package config loads §6's configuration from a TOML file, applying
// QUENTIN_* environment overrides on top, via viper.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/lelloman/quentin/internal/domain"
)

const envPrefix = "QUENTIN"

// defaults mirrors the zero-value behavior domain.OrchestratorConfig's
// callers already apply, set here too so a config file that omits the
// [orchestrator] section entirely still produces a valid binding.
var defaults = map[string]any{
	"auth.method": "",

	"server.host": "0.0.0.0",
	"server.port": 8090,

	"database.path": "quentin.db",

	"log_level": "info",

	"orchestrator.acquisition_poll_secs":    5,
	"orchestrator.download_poll_secs":       3,
	"orchestrator.max_concurrent_downloads": 3,
	"orchestrator.conversion_workers":       2,
	"orchestrator.placement_workers":        2,
	"orchestrator.download_timeout_secs":    3600,
	"orchestrator.max_acquisition_retries":  8,
	"orchestrator.staging_dir":              "staging",

	"textbrain.mode":                   string(domain.ModeDumbOnly),
	"textbrain.auto_approve_threshold": 0.75,
}

// Load reads the TOML file at path (if it exists), layers QUENTIN_*
// environment overrides on top, and returns the validated configuration.
// A missing file is not itself an error: a deployment may configure the
// engine entirely through the environment.
func Load(path string) (*domain.Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, &domain.ErrConfigInvalid{Reason: "reading " + path + ": " + err.Error()}
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg domain.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &domain.ErrConfigInvalid{Reason: "decoding configuration: " + err.Error()}
	}

	if cfg.Orchestrator.StagingDir != "" && !filepath.IsAbs(cfg.Orchestrator.StagingDir) && path != "" {
		cfg.Orchestrator.StagingDir = filepath.Join(filepath.Dir(path), cfg.Orchestrator.StagingDir)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
