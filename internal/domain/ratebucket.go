// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

// RateBucketStatus is a point-in-time snapshot of one indexer's token
// bucket, refilled as of the moment it was read.
type RateBucketStatus struct {
	Indexer     string  `json:"indexer"`
	CapacityRPM int     `json:"capacity_rpm"`
	Tokens      float64 `json:"tokens"`
	RefillRate  float64 `json:"refill_rate_per_sec"`
}

// IndexerConfig describes one configured search indexer.
type IndexerConfig struct {
	Name         string `toml:"name" mapstructure:"name"`
	Enabled      bool   `toml:"enabled" mapstructure:"enabled"`
	RateLimitRPM int    `toml:"rate_limit_rpm" mapstructure:"rate_limit_rpm"`
}
