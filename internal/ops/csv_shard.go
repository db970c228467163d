// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package ops

import (
	"context"
	"encoding/csv"
	"os"
)

// ReadCSVShard backs both the "csv_shard" and "read_csv_shard" allow-list
// entries (aliases for the same handler, per ops/csv_shard.py registering
// both names). Unlike the other ops, structural problems here (missing
// file, bad mode) are reported as {"ok":false,"error":...} values rather
// than handler errors, matching the original's "never raise, always
// return a dict" contract for this op.
func ReadCSVShard(_ context.Context, payload map[string]any) (any, error) {
	params := payload
	if nested, ok := payload["payload"].(map[string]any); ok {
		params = nested
	}

	sourceURI, ok := params["source_uri"].(string)
	if !ok || sourceURI == "" {
		return errResult("\"source_uri\" is required and must be a non-empty string"), nil
	}

	startRow, ok := optionalNonNegativeInt(params, "start_row", 0)
	if !ok {
		return errResult("\"start_row\" must be a non-negative integer"), nil
	}

	shardSize, ok := optionalNonNegativeInt(params, "shard_size", 100)
	if !ok || shardSize <= 0 {
		return errResult("\"shard_size\" must be a positive integer"), nil
	}

	mode := "rows"
	if m, ok := params["mode"].(string); ok && m != "" {
		mode = m
	}
	if mode != "rows" && mode != "count" {
		return errResult("\"mode\" must be \"rows\" or \"count\""), nil
	}

	f, err := os.Open(sourceURI)
	if err != nil {
		return errResult("source file not found: " + sourceURI), nil
	}
	defer f.Close()

	reader := csv.NewReader(f)
	header, err := reader.Read()
	if err != nil {
		return errResult("failed to read CSV header: " + err.Error()), nil
	}

	var dataRows [][]string
	rowIdx := 0
	for {
		record, err := reader.Read()
		if err != nil {
			break
		}
		if rowIdx >= startRow && rowIdx < startRow+shardSize {
			dataRows = append(dataRows, record)
		}
		rowIdx++
		if rowIdx >= startRow+shardSize {
			break
		}
	}

	endRow := startRow + len(dataRows)

	out := map[string]any{
		"ok":         true,
		"dataset_id": sourceURI,
		"mode":       mode,
		"start_row":  startRow,
		"end_row":    endRow,
		"row_count":  len(dataRows),
	}

	if mode == "rows" {
		rows := make([]map[string]any, len(dataRows))
		for i, record := range dataRows {
			row := make(map[string]any, len(header))
			for j, col := range header {
				if j < len(record) {
					row[col] = record[j]
				}
			}
			rows[i] = row
		}
		out["rows"] = rows
	}

	return out, nil
}

func errResult(msg string) map[string]any {
	return map[string]any{"ok": false, "error": msg}
}

func optionalNonNegativeInt(params map[string]any, field string, def int) (int, bool) {
	raw, ok := params[field]
	if !ok {
		return def, true
	}
	f, ok := raw.(float64)
	if !ok || f != float64(int64(f)) || f < 0 {
		return 0, false
	}
	return int(f), true
}
