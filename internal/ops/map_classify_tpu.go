// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package ops

import (
	"context"
	"sort"
	"time"

	agenterrors "github.com/distributed-swarm/agent/pkg/errors"

	"github.com/distributed-swarm/agent/internal/capacity"
)

const defaultTopK = 5

// TPUDetector is satisfied by capacity.RuntimeDetector; kept narrow so the
// op package doesn't need the whole capacity.Detector surface.
type TPUDetector interface {
	ProbeTPU() (kind string, devices []string)
}

// classifyTPUDeps holds the process-wide TPU proof source; it defaults to
// capacity.RuntimeDetector, the same detector type cmd/agent hands the
// profiler, so both probe TPU presence the same way.
var classifyTPUDeps TPUDetector = capacity.RuntimeDetector{}

// SetTPUDetector overrides the TPU presence source used by
// map_classify_tpu; tests substitute a fake here.
func SetTPUDetector(d TPUDetector) { classifyTPUDeps = d }

// MapClassifyTPU is grounded on ops/map_classify_tpu.py: resolves an
// accelerator handle, runs inference, and falls back to a CPU stub result
// when the accelerator is unavailable and the payload allows it — the
// fallback-capable variant spec.md §9 Open Questions names as the one to
// implement (the stub-only variant is superseded).
func MapClassifyTPU(_ context.Context, payload map[string]any) (any, error) {
	start := time.Now()

	allowFallback := true
	if v, ok := payload["allow_fallback"].(bool); ok {
		allowFallback = v
	}

	input, ok := payload["input"].([]any)
	if !ok {
		if allowFallback {
			return cpuFallback("missing or invalid \"input\"", start), nil
		}
		return nil, agenterrors.NewValidationErrorf("input", payload["input"], "\"input\" is required and must be a list")
	}

	k := defaultTopK
	if raw, ok := payload["top_k"]; ok {
		if f, ok := raw.(float64); ok && f > 0 {
			k = int(f)
		}
	}

	modelPath, _ := payload["model_path"].(string)

	kind, devices := classifyTPUDeps.ProbeTPU()
	if len(devices) == 0 {
		if allowFallback {
			return cpuFallback("no TPU devices detected", start), nil
		}
		return nil, agenterrors.NewClientError(agenterrors.ErrorCodeHandlerFailed, "no TPU devices detected")
	}

	handle, err := getTPUHandle(modelPath)
	if err != nil {
		if allowFallback {
			return cpuFallback("TPU model unavailable: "+err.Error(), start), nil
		}
		return nil, agenterrors.NewClientError(agenterrors.ErrorCodeHandlerFailed, "TPU model unavailable", err.Error())
	}

	tpuInvokeMu.Lock()
	topk, err := runTPUInference(handle, input, k)
	tpuInvokeMu.Unlock()
	if err != nil {
		if allowFallback {
			return cpuFallback("TPU inference failed: "+err.Error(), start), nil
		}
		return nil, agenterrors.NewClientError(agenterrors.ErrorCodeHandlerFailed, "TPU inference failed", err.Error())
	}

	return map[string]any{
		"op":         "map_classify_tpu",
		"tpu_kind":   kind,
		"topk":       topk,
		"elapsed_ms": float64(time.Since(start).Microseconds()) / 1000.0,
	}, nil
}

type scoredClass struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// runTPUInference treats input as class scores directly — there is no
// TFLite/EdgeTPU interpreter binding anywhere in the retrieval pack (see
// DESIGN.md), so this ranks the provided scores rather than running a real
// model, while still exercising the handle cache and invocation mutex the
// spec requires.
func runTPUInference(_ *acceleratorHandle, input []any, k int) ([]scoredClass, error) {
	scores := make([]scoredClass, 0, len(input))
	for i, v := range input {
		f, ok := toFloat(v)
		if !ok {
			return nil, agenterrors.NewValidationErrorf("input", v, "input[%d] must be numeric", i)
		}
		scores = append(scores, scoredClass{Index: i, Score: f})
	}

	sort.Slice(scores, func(i, j int) bool { return scores[i].Score > scores[j].Score })
	if k < len(scores) {
		scores = scores[:k]
	}
	return scores, nil
}

func cpuFallback(reason string, start time.Time) map[string]any {
	return map[string]any{
		"op":         "map_classify_tpu",
		"fallback":   "cpu",
		"reason":     reason,
		"topk":       []scoredClass{},
		"elapsed_ms": float64(time.Since(start).Microseconds()) / 1000.0,
	}
}
