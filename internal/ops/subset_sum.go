// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package ops

import (
	"context"
	"time"

	agenterrors "github.com/distributed-swarm/agent/pkg/errors"
)

// MaxSubsetSumTarget and MaxSubsetSumItems bound the DP table size per
// spec.md §4.2.
const (
	MaxSubsetSumTarget = 200000
	MaxSubsetSumItems  = 20000
)

// SubsetSum is grounded on ops/subset_sum.py's _subset_sum_dp: a boolean DP
// table over [0, target] with parent pointers to reconstruct a witness.
func SubsetSum(_ context.Context, payload map[string]any) (any, error) {
	nums, err := requireNonNegativeIntList(payload, "nums", MaxSubsetSumItems)
	if err != nil {
		return nil, err
	}
	target, err := requireIntInRange(payload, "target", 0, MaxSubsetSumTarget)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	solvable, witness := subsetSumDP(nums, target)
	elapsed := time.Since(start)

	return map[string]any{
		"solvable":        solvable,
		"witness":         witness,
		"target":          target,
		"n":               len(nums),
		"compute_time_ms": float64(elapsed.Microseconds()) / 1000.0,
	}, nil
}

func subsetSumDP(nums []int, target int) (bool, []int) {
	if target == 0 {
		return true, []int{}
	}

	reachable := make([]bool, target+1)
	reachable[0] = true
	// pickedIndex[s] is the index into nums whose inclusion first made sum s
	// reachable; -1 means unreached.
	pickedIndex := make([]int, target+1)
	for i := range pickedIndex {
		pickedIndex[i] = -1
	}
	prevSum := make([]int, target+1)

	for idx, v := range nums {
		if v <= 0 {
			continue
		}
		for s := target; s >= v; s-- {
			if reachable[s-v] && !reachable[s] {
				reachable[s] = true
				pickedIndex[s] = idx
				prevSum[s] = s - v
			}
		}
		if reachable[target] {
			break
		}
	}

	if !reachable[target] {
		return false, nil
	}

	var witness []int
	s := target
	for s != 0 {
		idx := pickedIndex[s]
		witness = append([]int{idx}, witness...)
		s = prevSum[s]
	}
	return true, witness
}

func requireNonNegativeIntList(payload map[string]any, field string, maxLen int) ([]int, error) {
	raw, ok := payload[field]
	if !ok {
		return nil, agenterrors.NewValidationErrorf(field, nil, "%q is required", field)
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, agenterrors.NewValidationErrorf(field, raw, "%q must be a list", field)
	}
	if len(items) > maxLen {
		return nil, agenterrors.NewValidationErrorf(field, len(items), "%q has %d items, exceeds limit %d", field, len(items), maxLen)
	}

	out := make([]int, len(items))
	for i, it := range items {
		f, ok := it.(float64)
		if !ok || f != float64(int64(f)) || f < 0 {
			return nil, agenterrors.NewValidationErrorf(field, it, "%q[%d] must be a non-negative integer", field, i)
		}
		out[i] = int(f)
	}
	return out, nil
}
