// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

// ConversionItem is one source file the conversion pool must turn into a
// destination file at the ticket's requested format/bitrate.
type ConversionItem struct {
	SourcePath string `json:"source_path"`
	DestName   string `json:"dest_name"`
}

// PlacementItem is one converted (or, for pass-through tickets, original)
// file the placement pool must move to its final destination.
type PlacementItem struct {
	SourcePath string `json:"source_path"`
	DestPath   string `json:"dest_path"`
}

// PoolMetrics is the fixed metrics shape §4.9 requires per pipeline pool.
type PoolMetrics struct {
	Active         int `json:"active"`
	MaxConcurrent  int `json:"max_concurrent"`
	Queued         int `json:"queued"`
	TotalProcessed int `json:"total_processed"`
	TotalFailed    int `json:"total_failed"`
}
