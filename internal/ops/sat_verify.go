// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package ops

import (
	"context"
	"fmt"

	agenterrors "github.com/distributed-swarm/agent/pkg/errors"
)

// SatVerify is grounded on ops/sat_verify.py: checks a boolean assignment
// (a "0"/"1" string, one bit per variable) against a CNF clause list
// (1-indexed literals, negative for negation). Returns the index of the
// first unsatisfied clause, or none when the assignment satisfies it. A
// literal whose variable index exceeds the assignment's length is treated
// as False rather than rejected, matching the original's _lit_value; nvars
// is the highest variable index referenced by cnf, not len(bits).
func SatVerify(_ context.Context, payload map[string]any) (any, error) {
	bits, err := requireBitString(payload, "assignment_bits")
	if err != nil {
		return nil, err
	}
	cnf, err := requireClauseList(payload, "cnf")
	if err != nil {
		return nil, err
	}

	maxVar := 0
	for _, clause := range cnf {
		for _, lit := range clause {
			if v := litVar(lit); v > maxVar {
				maxVar = v
			}
		}
	}

	sat := true
	var unsatClause any = nil
	for idx, clause := range cnf {
		if !clauseSatisfied(clause, bits) {
			sat = false
			unsatClause = idx
			break
		}
	}

	return map[string]any{
		"sat":          sat,
		"unsat_clause": unsatClause,
		"nvars":        maxVar,
		"nclauses":     len(cnf),
	}, nil
}

func litVar(lit int) int {
	if lit < 0 {
		return -lit
	}
	return lit
}

// litValue evaluates lit under bits; a variable the assignment doesn't
// cover (index out of range) is treated as False, per the original's
// "If assignment doesn't cover this variable, treat as False".
func litValue(lit int, bits []byte) bool {
	v := litVar(lit)
	if v < 1 || v > len(bits) {
		return false
	}
	bit := bits[v-1] == '1'
	if lit < 0 {
		return !bit
	}
	return bit
}

// clauseSatisfied returns false for an empty clause: an empty disjunction
// has no literal to make it true, matching the original's loop (clause_sat
// starts False and nothing flips it for an empty clause).
func clauseSatisfied(clause []int, bits []byte) bool {
	for _, lit := range clause {
		if litValue(lit, bits) {
			return true
		}
	}
	return false
}

func requireBitString(payload map[string]any, field string) ([]byte, error) {
	raw, ok := payload[field].(string)
	if !ok {
		return nil, agenterrors.NewValidationErrorf(field, payload[field], "%q must be a string of 0/1", field)
	}
	for i := 0; i < len(raw); i++ {
		if raw[i] != '0' && raw[i] != '1' {
			return nil, agenterrors.NewValidationErrorf(field, raw, "%q must contain only '0'/'1' characters", field)
		}
	}
	return []byte(raw), nil
}

func requireClauseList(payload map[string]any, field string) ([][]int, error) {
	raw, ok := payload[field].([]any)
	if !ok {
		return nil, agenterrors.NewValidationErrorf(field, payload[field], "%q must be a list of clauses", field)
	}
	out := make([][]int, len(raw))
	for i, c := range raw {
		clauseRaw, ok := c.([]any)
		if !ok {
			return nil, agenterrors.NewValidationErrorf(field, c, "%q[%d] must be a list of integers", field, i)
		}
		clause := make([]int, len(clauseRaw))
		for j, lit := range clauseRaw {
			f, ok := lit.(float64)
			if !ok || f != float64(int64(f)) {
				return nil, agenterrors.NewValidationErrorf(field, lit, fmt.Sprintf("%s[%d][%d] must be an integer literal", field, i, j))
			}
			clause[j] = int(f)
		}
		out[i] = clause
	}
	return out, nil
}
