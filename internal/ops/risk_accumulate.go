// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package ops

import (
	"context"
	"time"

	agenterrors "github.com/distributed-swarm/agent/pkg/errors"
)

// RiskAccumulate is grounded on ops/risk_accumulate.py: aggregates a flat
// "values" list, or an "items" list of objects read through a configurable
// "field" (default "risk"), into count/sum/mean/min/max.
func RiskAccumulate(_ context.Context, payload map[string]any) (any, error) {
	values, err := extractRiskValues(payload)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out := accumulate(values)
	out["compute_time_ms"] = float64(time.Since(start).Microseconds()) / 1000.0
	return out, nil
}

func extractRiskValues(payload map[string]any) ([]float64, error) {
	if raw, ok := payload["values"]; ok {
		list, ok := raw.([]any)
		if !ok {
			return nil, agenterrors.NewValidationErrorf("values", raw, "\"values\" must be a list")
		}
		out := make([]float64, 0, len(list))
		for _, v := range list {
			if f, ok := toFloat(v); ok {
				out = append(out, f)
			}
		}
		return out, nil
	}

	rawItems, ok := payload["items"].([]any)
	if !ok {
		return nil, agenterrors.NewValidationErrorf("values", nil, "payload must provide \"values\" or \"items\"")
	}
	field := "risk"
	if f, ok := payload["field"].(string); ok && f != "" {
		field = f
	}

	out := make([]float64, 0, len(rawItems))
	for _, it := range rawItems {
		obj, ok := it.(map[string]any)
		if !ok {
			continue
		}
		if f, ok := toFloat(obj[field]); ok {
			out = append(out, f)
		}
	}
	return out, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

func accumulate(values []float64) map[string]any {
	if len(values) == 0 {
		return map[string]any{"count": 0, "sum": 0.0, "mean": 0.0, "min": nil, "max": nil}
	}

	sum := 0.0
	min, max := values[0], values[0]
	for _, v := range values {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	return map[string]any{
		"count": len(values),
		"sum":   sum,
		"mean":  sum / float64(len(values)),
		"min":   min,
		"max":   max,
	}
}
