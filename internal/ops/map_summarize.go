// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package ops

import (
	"context"
	"strings"
	"time"

	agenterrors "github.com/distributed-swarm/agent/pkg/errors"
)

const defaultSummaryMaxChars = 512

// MapSummarize matches ops/map_summarize.py's contract (a "text" field in,
// a "summary" field out) without its torch+BART dependency — no ML
// framework appears anywhere in the retrieval pack (see DESIGN.md), so this
// is a sentence-boundary truncation rather than learned summarization.
func MapSummarize(_ context.Context, payload map[string]any) (any, error) {
	text, ok := payload["text"].(string)
	if !ok {
		return nil, agenterrors.NewValidationErrorf("text", payload["text"], "\"text\" must be a string")
	}

	maxChars := defaultSummaryMaxChars
	if raw, ok := payload["max_chars"]; ok {
		f, ok := raw.(float64)
		if !ok || f != float64(int64(f)) || f <= 0 {
			return nil, agenterrors.NewValidationErrorf("max_chars", raw, "\"max_chars\" must be a positive integer")
		}
		maxChars = int(f)
	}

	start := time.Now()
	summary := truncateAtSentence(text, maxChars)

	return map[string]any{
		"summary":         summary,
		"method":          "truncation",
		"original_length": len(text),
		"summary_length":  len(summary),
		"compute_time_ms": float64(time.Since(start).Microseconds()) / 1000.0,
	}, nil
}

func truncateAtSentence(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	cut := text[:maxChars]
	if idx := strings.LastIndexAny(cut, ".!?"); idx > 0 {
		return cut[:idx+1]
	}
	return strings.TrimSpace(cut)
}
