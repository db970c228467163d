// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package ops

import (
	"context"
	"time"
)

// MaxPrimeFactorN bounds trial division to a tractable input per spec.md §4.2.
const MaxPrimeFactorN = 100000000000000 // 10^14

// PrimeFactor is grounded on ops/prime_factor.py's _prime_factors: trial
// division up to sqrt(n), peeling factor 2 first then odd candidates.
func PrimeFactor(_ context.Context, payload map[string]any) (any, error) {
	n, err := requireIntInRange(payload, "n", 0, MaxPrimeFactorN)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	factors := primeFactors(int64(n))
	elapsed := time.Since(start)

	return map[string]any{
		"n":               n,
		"factors":         factors,
		"compute_time_ms": float64(elapsed.Microseconds()) / 1000.0,
	}, nil
}

func primeFactors(n int64) []int64 {
	var factors []int64
	if n < 2 {
		return factors
	}
	for n%2 == 0 {
		factors = append(factors, 2)
		n /= 2
	}
	for d := int64(3); d*d <= n; d += 2 {
		for n%d == 0 {
			factors = append(factors, d)
			n /= d
		}
	}
	if n > 1 {
		factors = append(factors, n)
	}
	return factors
}
