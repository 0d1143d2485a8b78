// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package textbrain

import (
	"context"
)

// LlmClient is the contract TextBrain needs from a configured LLM
// provider: additional query variants for a base query set. Everything
// else (scoring, file mapping) stays deterministic and never calls out.
type LlmClient interface {
	SuggestQueryVariants(ctx context.Context, baseQueries []string, hints map[string]string) ([]string, error)
}

// LlmCallRecord captures one LLM call's shape for the audit trail, per
// §4.7's requirement that every LLM call be fully reconstructible.
type LlmCallRecord struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	DurationMs int64  `json:"duration_ms"`
	Err        string `json:"error,omitempty"`
}
