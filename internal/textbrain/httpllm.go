// Copyright (c) 2026, the quentin contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package textbrain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPLlmClient talks to an OpenAI-compatible chat completions endpoint to
// satisfy LlmClient. It is deliberately narrow: the only thing it asks the
// model for is additional search query phrasings, so the wire shape is a
// single chat turn rather than a full client SDK.
type HTTPLlmClient struct {
	provider string
	model    string
	apiKey   string
	apiBase  string
	client   *http.Client
}

// NewHTTPLlmClient builds an LlmClient from the [textbrain.llm] config
// section. apiBase defaults to the OpenAI-compatible chat completions path
// convention ("https://api.openai.com/v1") when left empty.
func NewHTTPLlmClient(provider, model, apiKey, apiBase string, timeout time.Duration) *HTTPLlmClient {
	if apiBase == "" {
		apiBase = "https://api.openai.com/v1"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPLlmClient{
		provider: provider,
		model:    model,
		apiKey:   apiKey,
		apiBase:  strings.TrimRight(apiBase, "/"),
		client:   &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// SuggestQueryVariants asks the configured model for alternative phrasings
// of the deterministic base query set, given the content-module hints
// (title, artist, year, season/episode, ...). It returns at most one
// variant per line of the model's response; malformed or empty lines are
// dropped rather than treated as an error.
func (c *HTTPLlmClient) SuggestQueryVariants(ctx context.Context, baseQueries []string, hints map[string]string) ([]string, error) {
	prompt := buildVariantPrompt(baseQueries, hints)

	body, err := json.Marshal(chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You suggest alternative torrent search query phrasings. Reply with one query per line and nothing else."},
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode llm request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build llm request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("llm request returned %d: %s", resp.StatusCode, string(payload))
	}

	var parsed chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode llm response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, nil
	}

	var variants []string
	for _, line := range strings.Split(parsed.Choices[0].Message.Content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			variants = append(variants, line)
		}
	}
	return variants, nil
}

func buildVariantPrompt(baseQueries []string, hints map[string]string) string {
	var b strings.Builder
	b.WriteString("Base queries:\n")
	for _, q := range baseQueries {
		b.WriteString("- ")
		b.WriteString(q)
		b.WriteString("\n")
	}
	if len(hints) > 0 {
		b.WriteString("Hints:\n")
		for k, v := range hints {
			fmt.Fprintf(&b, "- %s: %s\n", k, v)
		}
	}
	b.WriteString("Suggest up to five additional query phrasings that might surface the same release under a different naming convention.")
	return b.String()
}
