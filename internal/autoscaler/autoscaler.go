// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package autoscaler implements the agent's worker-pool autoscaler (C5):
// a single ticker that prunes dead workers, detects idle stretches, and
// grows or shrinks the pool against a CPU-utilization target, per spec.md
// §4.5's five-step tick. Grounded on the supervisor poll loop shape the
// teacher uses for its node-health reconciler, generalized from a fixed
// interval to the spawn/reap decision spec.md describes.
package autoscaler

import (
	"context"
	"time"

	"github.com/distributed-swarm/agent/pkg/logging"

	"github.com/distributed-swarm/agent/internal/cpuutil"
)

// Pool is the subset of workerpool.Pool the autoscaler drives.
type Pool interface {
	Count() int
	Prune() int
	Spawn(n, softCap int) int
	Reap(n, minWorkers int) int
}

// Gauges is the subset of metrics.AgentGauges the autoscaler reads/writes.
type Gauges interface {
	SnapshotAndReset() (hits, misses int64)
	Inflight() int64
	SetCurrentWorkers(n int)
}

// Config holds the autoscaler's thresholds, sourced from spec.md §6 env vars.
type Config struct {
	MinWorkers       int
	SoftCap          int
	SpawnStep        int
	ReapStep         int
	IdleReapTicks    int
	TargetCPUUtilPct float64
	TickInterval     time.Duration
}

// DefaultTickInterval is spec.md §6's SCALE_TICK_SEC default (1s), used by
// New when no interval is configured; New clamps any positive value below
// MinTickInterval up to that floor.
const DefaultTickInterval = 1 * time.Second

// MinTickInterval is spec.md §6's floor for SCALE_TICK_SEC.
const MinTickInterval = 200 * time.Millisecond

// Autoscaler owns the idle-streak counter and drives one pool via one
// ticker; it holds no other mutable state, so it needs no mutex of its own.
type Autoscaler struct {
	pool   Pool
	gauges Gauges
	cpu    cpuutil.Sampler
	cfg    Config
	logger logging.Logger

	idleStreak int
}

// New builds an Autoscaler. cpu may be nil, in which case utilization is
// read as 0%: that is below any positive target, so the grow rule is then
// gated by lease pressure (hits) alone.
func New(pool Pool, gauges Gauges, cpu cpuutil.Sampler, cfg Config, logger logging.Logger) *Autoscaler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	} else if cfg.TickInterval < MinTickInterval {
		cfg.TickInterval = MinTickInterval
	}
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Autoscaler{pool: pool, gauges: gauges, cpu: cpu, cfg: cfg, logger: logger}
}

// Run drives the autoscaler's ticker until ctx is cancelled.
func (a *Autoscaler) Run(ctx context.Context, clock Clock) {
	ticker := clock.NewTicker(a.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			a.Tick()
		}
	}
}

// Tick runs exactly one autoscaler decision cycle, per spec.md §4.5:
//  1. Prune dead workers; if the pool is empty, spawn up to min_workers.
//  2. Idle detection: no hits and nothing inflight extends the idle streak.
//  3. Grow rule: CPU headroom plus lease pressure spawns spawn_step workers.
//  4. Shrink rule: a long enough idle streak reaps reap_step workers.
//  5. Refresh the exposed current_workers gauge.
func (a *Autoscaler) Tick() {
	a.pool.Prune()
	if a.pool.Count() == 0 {
		a.pool.Spawn(a.cfg.MinWorkers, a.cfg.SoftCap)
	}

	hits, _ := a.gauges.SnapshotAndReset()
	inflight := a.gauges.Inflight()

	if hits == 0 && inflight == 0 {
		a.idleStreak++
	} else {
		a.idleStreak = 0
	}

	util := 0.0
	if a.cpu != nil {
		util = a.cpu.UtilPercent()
	}

	currentWorkers := a.pool.Count()
	minHits := int64(currentWorkers)
	if minHits < 1 {
		minHits = 1
	}
	if util < a.cfg.TargetCPUUtilPct && hits >= minHits {
		spawned := a.pool.Spawn(a.cfg.SpawnStep, a.cfg.SoftCap)
		if spawned > 0 {
			a.logger.Debug("autoscaler grew pool", "spawned", spawned, "cpu_util", util)
		}
	}

	if a.idleStreak >= a.cfg.IdleReapTicks {
		reaped := a.pool.Reap(a.cfg.ReapStep, a.cfg.MinWorkers)
		a.idleStreak = 0
		if reaped > 0 {
			a.logger.Debug("autoscaler shrank pool", "reaped", reaped)
		}
	}

	a.gauges.SetCurrentWorkers(a.pool.Count())
}
