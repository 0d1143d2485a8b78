// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package textbrain

import (
	"context"
	"time"

	"github.com/lelloman/quentin/internal/domain"
)

// Brain ties the three deterministic TextBrain operations to an optional
// LLM client and the configured consultation mode. The acquisition loop
// itself is driven by the orchestrator; Brain only answers the three
// questions §4.7 names: which queries to run, how a candidate scores, and
// how candidate files map onto ticket items.
type Brain struct {
	llm   LlmClient
	mode  domain.TextBrainMode
	clock func() time.Time
}

func New(llm LlmClient, mode domain.TextBrainMode) *Brain {
	return &Brain{llm: llm, mode: mode, clock: time.Now}
}

// BuildQueries implements §4.7 op 1. The deterministic base set always
// comes from the dispatched content module; an LLM is consulted only when
// the mode permits and variants are appended, never substituted.
func (b *Brain) BuildQueries(ctx context.Context, qctx domain.QueryContext) ([]string, *LlmCallRecord, error) {
	base := moduleFor(qctx.Expected).buildQueries(qctx)

	switch b.mode {
	case domain.ModeLlmOnly:
		if b.llm == nil {
			return nil, nil, &domain.ErrLlmUnavailable{Reason: "textbrain.mode is llm_only but no llm client is configured"}
		}
		variants, record, err := b.callLlm(ctx, base, qctx.Hints)
		if err != nil {
			return nil, record, err
		}
		return append(base, variants...), record, nil

	case domain.ModeLlmFirst:
		if b.llm == nil {
			return base, nil, nil
		}
		variants, record, err := b.callLlm(ctx, base, qctx.Hints)
		if err != nil {
			// llm_first tolerates an unavailable LLM: fall back to the
			// deterministic base set rather than failing the ticket.
			return base, record, nil
		}
		return append(base, variants...), record, nil

	case domain.ModeDumbFirst:
		if b.llm == nil {
			return base, nil, nil
		}
		variants, record, err := b.callLlm(ctx, base, qctx.Hints)
		if err != nil {
			return base, record, nil
		}
		return append(base, variants...), record, nil

	default: // domain.ModeDumbOnly and unrecognized modes stay deterministic
		return base, nil, nil
	}
}

func (b *Brain) callLlm(ctx context.Context, base []string, hints map[string]string) ([]string, *LlmCallRecord, error) {
	start := b.now()
	variants, err := b.llm.SuggestQueryVariants(ctx, base, hints)
	record := &LlmCallRecord{DurationMs: b.now().Sub(start).Milliseconds()}
	if err != nil {
		record.Err = err.Error()
		return nil, record, err
	}
	return variants, record, nil
}

func (b *Brain) now() time.Time {
	if b.clock != nil {
		return b.clock()
	}
	return time.Now()
}
