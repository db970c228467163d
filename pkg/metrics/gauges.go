// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// AgentGauges publishes the supervisor's operational signals: pool size,
// inflight executions, and lease hit/miss counters. Collector (and its
// RecordRequest/RecordResponse/RecordError trio) continues to cover the
// four controller HTTP endpoints; AgentGauges covers what the pool and
// autoscaler expose about themselves.
type AgentGauges struct {
	currentWorkers int64
	inflight       int64
	hits           int64
	misses         int64

	mu         sync.RWMutex
	opCounts   map[string]int64
	opDuration map[string]*durationAggregator
}

// NewAgentGauges creates an empty gauge set.
func NewAgentGauges() *AgentGauges {
	return &AgentGauges{
		opCounts:   make(map[string]int64),
		opDuration: make(map[string]*durationAggregator),
	}
}

// SetCurrentWorkers publishes the pool size after a spawn/reap decision.
func (g *AgentGauges) SetCurrentWorkers(n int) {
	atomic.StoreInt64(&g.currentWorkers, int64(n))
}

// CurrentWorkers returns the last published pool size.
func (g *AgentGauges) CurrentWorkers() int64 {
	return atomic.LoadInt64(&g.currentWorkers)
}

// IncInflight/DecInflight bracket a single op execution.
func (g *AgentGauges) IncInflight() int64 { return atomic.AddInt64(&g.inflight, 1) }
func (g *AgentGauges) DecInflight() int64 { return atomic.AddInt64(&g.inflight, -1) }
func (g *AgentGauges) Inflight() int64    { return atomic.LoadInt64(&g.inflight) }

// RecordHit/RecordMiss count a lease outcome.
func (g *AgentGauges) RecordHit()  { atomic.AddInt64(&g.hits, 1) }
func (g *AgentGauges) RecordMiss() { atomic.AddInt64(&g.misses, 1) }

// SnapshotAndReset returns (hits, misses) accumulated since the previous
// call and resets both counters, matching the autoscaler's per-tick read.
func (g *AgentGauges) SnapshotAndReset() (hits, misses int64) {
	hits = atomic.SwapInt64(&g.hits, 0)
	misses = atomic.SwapInt64(&g.misses, 0)
	return hits, misses
}

// RecordOpExecution records an op completion's latency for op-level stats.
func (g *AgentGauges) RecordOpExecution(op string, d time.Duration) {
	g.mu.Lock()
	agg, ok := g.opDuration[op]
	if !ok {
		agg = newDurationAggregator()
		g.opDuration[op] = agg
	}
	g.opCounts[op]++
	g.mu.Unlock()
	agg.add(d)
}

// OpStats returns execution counts and latency per op name.
func (g *AgentGauges) OpStats() (counts map[string]int64, latency map[string]DurationStats) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	counts = make(map[string]int64, len(g.opCounts))
	latency = make(map[string]DurationStats, len(g.opDuration))
	for op, n := range g.opCounts {
		counts[op] = n
	}
	for op, agg := range g.opDuration {
		latency[op] = agg.stats()
	}
	return counts, latency
}
