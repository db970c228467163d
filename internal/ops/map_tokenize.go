// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package ops

import (
	"context"

	agenterrors "github.com/distributed-swarm/agent/pkg/errors"
)

const defaultChunkSize = 256

// MapTokenize is grounded on ops/map_tokenize.py: fixed-size chunking of
// text. "items" + "chunk_size" runs batch mode over multiple texts and
// flattens the tokens; "text"/"data" runs single-text mode.
func MapTokenize(_ context.Context, payload map[string]any) (any, error) {
	chunkSize := defaultChunkSize
	if raw, ok := payload["chunk_size"]; ok {
		f, ok := raw.(float64)
		if !ok || f != float64(int64(f)) || f <= 0 {
			return nil, agenterrors.NewValidationErrorf("chunk_size", raw, "\"chunk_size\" must be a positive integer")
		}
		chunkSize = int(f)
	}

	if items, ok := payload["items"].([]any); ok {
		var tokens []string
		totalChars := 0
		for _, it := range items {
			text, _ := it.(string)
			totalChars += len(text)
			tokens = append(tokens, chunkText(text, chunkSize)...)
		}
		return map[string]any{
			"tokens":      tokens,
			"count":       len(tokens),
			"total_chars": totalChars,
			"items_count": len(items),
		}, nil
	}

	text, ok := payload["text"].(string)
	if !ok {
		text, ok = payload["data"].(string)
	}
	if !ok {
		return nil, agenterrors.NewValidationErrorf("text", nil, "payload must provide \"text\"/\"data\" or \"items\"")
	}

	tokens := chunkText(text, chunkSize)
	return map[string]any{
		"tokens":      tokens,
		"count":       len(tokens),
		"total_chars": len(text),
	}, nil
}

func chunkText(text string, chunkSize int) []string {
	if text == "" {
		return nil
	}
	var chunks []string
	for i := 0; i < len(text); i += chunkSize {
		end := i + chunkSize
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[i:end])
	}
	return chunks
}
