// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package ops

import (
	"context"
	"time"

	agenterrors "github.com/distributed-swarm/agent/pkg/errors"
)

// MaxFibonacciN bounds the computation per spec.md §4.2's safety limits.
const MaxFibonacciN = 50000

// Fibonacci is grounded on ops/fibonacci.py's _fib_iter: iterative, O(n),
// rejecting out-of-range n before doing any work.
func Fibonacci(_ context.Context, payload map[string]any) (any, error) {
	n, err := requireIntInRange(payload, "n", 0, MaxFibonacciN)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result := fibIter(n)
	elapsed := time.Since(start)

	return map[string]any{
		"n":               n,
		"result":          result,
		"compute_time_ms": float64(elapsed.Microseconds()) / 1000.0,
	}, nil
}

func fibIter(n int) uint64 {
	if n == 0 {
		return 0
	}
	a, b := uint64(0), uint64(1)
	for i := 1; i < n; i++ {
		a, b = b, a+b
	}
	return b
}

func requireIntInRange(payload map[string]any, field string, min, max int64) (int, error) {
	raw, ok := payload[field]
	if !ok {
		return 0, agenterrors.NewValidationErrorf(field, nil, "%q is required", field)
	}
	f, ok := raw.(float64)
	if !ok || f != float64(int64(f)) {
		return 0, agenterrors.NewValidationErrorf(field, raw, "%q must be an integer", field)
	}
	v := int64(f)
	if v < min || v > max {
		return 0, agenterrors.NewValidationErrorf(field, v, "%q must be between %d and %d", field, min, max)
	}
	return int(v), nil
}
