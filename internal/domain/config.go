// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import "time"

// AuthMethod is the tagged variant of the required [auth] config section.
type AuthMethod string

const (
	AuthNone   AuthMethod = "none"
	AuthAPIKey AuthMethod = "api_key"
	AuthOIDC   AuthMethod = "oidc"
	AuthAddr   AuthMethod = "address"
	AuthCert   AuthMethod = "cert"
	AuthPlugin AuthMethod = "plugin"
)

// AuthConfig is the required top-level [auth] section.
type AuthConfig struct {
	Method AuthMethod `toml:"method" mapstructure:"method"`

	APIKey string `toml:"api_key" mapstructure:"api_key"`

	OIDCIssuer       string `toml:"oidc_issuer" mapstructure:"oidc_issuer"`
	OIDCClientID     string `toml:"oidc_client_id" mapstructure:"oidc_client_id"`
	OIDCClientSecret string `toml:"oidc_client_secret" mapstructure:"oidc_client_secret"`
	OIDCRedirectURL  string `toml:"oidc_redirect_url" mapstructure:"oidc_redirect_url"`

	AllowedAddresses []string `toml:"allowed_addresses" mapstructure:"allowed_addresses"`

	CertCAPath string `toml:"cert_ca_path" mapstructure:"cert_ca_path"`

	PluginPath string `toml:"plugin_path" mapstructure:"plugin_path"`
}

// ServerConfig is the [server] section.
type ServerConfig struct {
	Host string `toml:"host" mapstructure:"host"`
	Port int    `toml:"port" mapstructure:"port"`
}

// DatabaseConfig is the [database] section.
type DatabaseConfig struct {
	Path string `toml:"path" mapstructure:"path"`
}

// JackettConfig is the [searcher.jackett] section.
type JackettConfig struct {
	URL            string          `toml:"url" mapstructure:"url"`
	APIKey         string          `toml:"api_key" mapstructure:"api_key"`
	TimeoutSecs    int             `toml:"timeout_secs" mapstructure:"timeout_secs"`
	Indexers       []IndexerConfig `toml:"indexers" mapstructure:"indexers"`
}

// SearcherConfig is the [searcher] section.
type SearcherConfig struct {
	Jackett JackettConfig `toml:"jackett" mapstructure:"jackett"`
}

// TorrentClientConfig is the [torrent_client] section.
type TorrentClientConfig struct {
	Backend      string            `toml:"backend" mapstructure:"backend"`
	Host         string            `toml:"host" mapstructure:"host"`
	Username     string            `toml:"username" mapstructure:"username"`
	Password     string            `toml:"password" mapstructure:"password"`
	BackendExtra map[string]string `toml:"backend_extra" mapstructure:"backend_extra"`
}

// TextBrainMode selects when (and whether) the LLM is consulted.
type TextBrainMode string

const (
	ModeDumbOnly  TextBrainMode = "dumb_only"
	ModeDumbFirst TextBrainMode = "dumb_first"
	ModeLlmFirst  TextBrainMode = "llm_first"
	ModeLlmOnly   TextBrainMode = "llm_only"
)

// LlmConfig is the optional llm sub-table of [textbrain].
type LlmConfig struct {
	Provider    string `toml:"provider" mapstructure:"provider"`
	Model       string `toml:"model" mapstructure:"model"`
	APIKey      string `toml:"api_key" mapstructure:"api_key"`
	APIBase     string `toml:"api_base" mapstructure:"api_base"`
	TimeoutSecs int    `toml:"timeout_secs" mapstructure:"timeout_secs"`
}

// TextBrainConfig is the [textbrain] section.
type TextBrainConfig struct {
	Mode                 TextBrainMode `toml:"mode" mapstructure:"mode"`
	AutoApproveThreshold float64       `toml:"auto_approve_threshold" mapstructure:"auto_approve_threshold"`
	Llm                  *LlmConfig    `toml:"llm" mapstructure:"llm"`
}

// OrchestratorConfig is the [orchestrator] section.
type OrchestratorConfig struct {
	AcquisitionPollInterval time.Duration `toml:"-" mapstructure:"-"`
	DownloadPollInterval    time.Duration `toml:"-" mapstructure:"-"`

	AcquisitionPollSecs   int `toml:"acquisition_poll_secs" mapstructure:"acquisition_poll_secs"`
	DownloadPollSecs      int `toml:"download_poll_secs" mapstructure:"download_poll_secs"`
	MaxConcurrentDownloads int `toml:"max_concurrent_downloads" mapstructure:"max_concurrent_downloads"`
	ConversionWorkers      int `toml:"conversion_workers" mapstructure:"conversion_workers"`
	PlacementWorkers       int `toml:"placement_workers" mapstructure:"placement_workers"`
	DownloadTimeoutSecs    int `toml:"download_timeout_secs" mapstructure:"download_timeout_secs"`
	MaxAcquisitionRetries  int `toml:"max_acquisition_retries" mapstructure:"max_acquisition_retries"`

	// StagingDir is where the download worker tells the torrent client to
	// save a ticket's payload (one subdirectory per ticket id) before the
	// pipeline pools convert and place it under DestPath.
	StagingDir string `toml:"staging_dir" mapstructure:"staging_dir"`
}

// ExternalCatalogConfig describes one configured external metadata catalog
// (MusicBrainz, TMDb, TVDB, ...). The engine only needs to know it exists
// and how to reach it; query semantics live in the content modules.
type ExternalCatalogConfig struct {
	Name    string `toml:"name" mapstructure:"name"`
	BaseURL string `toml:"base_url" mapstructure:"base_url"`
	APIKey  string `toml:"api_key" mapstructure:"api_key"`
}

// Config is the root configuration, loaded from TOML with QUENTIN_*
// environment overrides (§6).
type Config struct {
	Auth             AuthConfig                       `toml:"auth" mapstructure:"auth"`
	Server           ServerConfig                      `toml:"server" mapstructure:"server"`
	Database         DatabaseConfig                    `toml:"database" mapstructure:"database"`
	Searcher         SearcherConfig                     `toml:"searcher" mapstructure:"searcher"`
	TorrentClient    TorrentClientConfig                `toml:"torrent_client" mapstructure:"torrent_client"`
	TextBrain        TextBrainConfig                    `toml:"textbrain" mapstructure:"textbrain"`
	Orchestrator     OrchestratorConfig                  `toml:"orchestrator" mapstructure:"orchestrator"`
	ExternalCatalogs map[string]ExternalCatalogConfig    `toml:"external_catalogs" mapstructure:"external_catalogs"`

	LogLevel string `toml:"log_level" mapstructure:"log_level"`
	LogPath  string `toml:"log_path" mapstructure:"log_path"`
}

// Validate enforces §6's validation rules. A non-nil error here means the
// server binary should exit non-zero at startup.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return &ErrConfigInvalid{Reason: "server.port must be > 0"}
	}
	if c.Auth.Method == "" {
		return &ErrConfigInvalid{Reason: "[auth] section is required"}
	}
	switch c.Auth.Method {
	case AuthNone, AuthAPIKey, AuthOIDC, AuthAddr, AuthCert, AuthPlugin:
	default:
		return &ErrConfigInvalid{Reason: "auth.method must be one of none, api_key, oidc, address, cert, plugin"}
	}
	if c.TextBrain.Mode == ModeLlmOnly && c.TextBrain.Llm == nil {
		return &ErrConfigInvalid{Reason: "textbrain.llm is required when textbrain.mode = llm_only"}
	}
	return nil
}

// Sanitized returns a copy with every secret redacted to nil/empty, for the
// GET /config boundary endpoint.
func (c *Config) Sanitized() *Config {
	cp := *c
	cp.Auth.APIKey = ""
	cp.Auth.OIDCClientSecret = ""
	cp.Searcher.Jackett.APIKey = ""
	cp.TorrentClient.Password = ""
	if cp.TextBrain.Llm != nil {
		llm := *cp.TextBrain.Llm
		llm.APIKey = ""
		cp.TextBrain.Llm = &llm
	}
	if c.ExternalCatalogs != nil {
		cp.ExternalCatalogs = make(map[string]ExternalCatalogConfig, len(c.ExternalCatalogs))
		for name, cat := range c.ExternalCatalogs {
			cat.APIKey = ""
			cp.ExternalCatalogs[name] = cat
		}
	}
	return &cp
}
