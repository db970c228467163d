// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package workerpool implements the mutex-protected WorkerTable (C4):
// concurrent workers that lease tasks from the controller, dispatch them
// through the op registry, and post results, with spawn/reap/prune
// maintaining spec.md §3's identity-density invariants.
package workerpool

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/distributed-swarm/agent/pkg/logging"
	"github.com/distributed-swarm/agent/pkg/metrics"

	"github.com/distributed-swarm/agent/internal/controller"
	"github.com/distributed-swarm/agent/internal/registry"
	"github.com/distributed-swarm/agent/internal/task"
)

const errorBackoff = 1 * time.Second

// worker is one execution context in the table; stop is its per-worker
// stop signal (spec.md's WorkerTable "each with a per-worker stop signal").
type worker struct {
	id   int
	stop chan struct{}
	done chan struct{}
}

// Pool is the mutex-protected WorkerTable. Spawn picks the next identity
// (max+1); Reap always targets the highest identity; Prune removes workers
// whose loop goroutine has already exited.
type Pool struct {
	mu      sync.Mutex
	workers map[int]*worker
	nextID  int

	client       controller.Client
	registry     *registry.Registry
	gauges       *metrics.AgentGauges
	logger       logging.Logger
	rateLimited  *logging.RateLimitedLogger
	agentName    string
	waitMS       int
	leaseIdleSec float64

	globalStop chan struct{}
}

// New builds an empty pool; call Spawn to seed it to min_workers.
func New(client controller.Client, reg *registry.Registry, gauges *metrics.AgentGauges, logger logging.Logger, agentName string, waitMS int, leaseIdleSec float64) *Pool {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Pool{
		workers:      make(map[int]*worker),
		client:       client,
		registry:     reg,
		gauges:       gauges,
		logger:       logger,
		rateLimited:  logging.NewRateLimitedLogger(logger, 10*time.Second),
		agentName:    agentName,
		waitMS:       waitMS,
		leaseIdleSec: leaseIdleSec,
		globalStop:   make(chan struct{}),
	}
}

// Count returns the current number of live workers.
func (p *Pool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.workers)
}

// Prune removes any worker whose loop has already exited (e.g. after the
// global stop signal), returning how many were removed.
func (p *Pool) Prune() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	removed := 0
	for id, w := range p.workers {
		select {
		case <-w.done:
			delete(p.workers, id)
			removed++
		default:
		}
	}
	return removed
}

// Spawn starts up to n new workers, refusing to exceed softCap. Returns how
// many were actually spawned.
func (p *Pool) Spawn(n, softCap int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	spawned := 0
	for i := 0; i < n; i++ {
		if len(p.workers) >= softCap {
			break
		}
		p.nextID++
		w := &worker{id: p.nextID, stop: make(chan struct{}), done: make(chan struct{})}
		p.workers[w.id] = w
		go p.runWorker(w)
		spawned++
	}
	if p.gauges != nil {
		p.gauges.SetCurrentWorkers(len(p.workers))
	}
	return spawned
}

// Reap signals up to n of the highest-identity workers to stop after their
// current iteration, never dropping below minWorkers. Returns how many
// were signaled.
func (p *Pool) Reap(n, minWorkers int) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	reaped := 0
	for i := 0; i < n; i++ {
		if len(p.workers) <= minWorkers {
			break
		}
		highest := -1
		for id := range p.workers {
			if id > highest {
				highest = id
			}
		}
		if highest < 0 {
			break
		}
		close(p.workers[highest].stop)
		delete(p.workers, highest)
		reaped++
	}
	if p.gauges != nil {
		p.gauges.SetCurrentWorkers(len(p.workers))
	}
	return reaped
}

// StopAll signals every worker to stop; used on supervisor shutdown.
func (p *Pool) StopAll() {
	close(p.globalStop)
}

// Drain blocks until every worker's loop has exited or the deadline passes,
// giving in-flight ops a bounded window to finish and post their result.
func (p *Pool) Drain(ctx context.Context) {
	p.mu.Lock()
	dones := make([]chan struct{}, 0, len(p.workers))
	for _, w := range p.workers {
		dones = append(dones, w.done)
	}
	p.mu.Unlock()

	for _, done := range dones {
		select {
		case <-done:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Pool) runWorker(w *worker) {
	defer close(w.done)

	for {
		select {
		case <-p.globalStop:
			return
		case <-w.stop:
			return
		default:
		}

		leased, err := p.client.Lease(context.Background(), controller.LeaseRequest{
			Agent: p.agentName, Ops: p.registry.ListEnabled(), TimeoutMS: p.waitMS,
		})
		if err != nil {
			p.rateLimited.Error("lease", "lease error", "worker", w.id, "err", err)
			if !p.sleepOrStop(w, errorBackoff) {
				return
			}
			continue
		}

		if len(leased) == 0 {
			if p.gauges != nil {
				p.gauges.RecordMiss()
			}
			if !p.sleepOrStop(w, jitteredIdle(p.leaseIdleSec)) {
				return
			}
			continue
		}

		if p.gauges != nil {
			p.gauges.RecordHit()
		}

		for _, t := range leased {
			result := p.execute(t)
			if err := p.client.PostResult(context.Background(), result); err != nil {
				p.rateLimited.Error("result", "post result error", "job_id", t.JobID, "err", err)
			}
		}
	}
}

func (p *Pool) execute(t task.Task) task.Result {
	start := time.Now()
	result := p.registry.Execute(context.Background(), t)
	if p.gauges != nil {
		p.gauges.RecordOpExecution(t.Op, time.Since(start))
	}
	return result
}

func (p *Pool) sleepOrStop(w *worker, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-w.stop:
		return false
	case <-p.globalStop:
		return false
	}
}

func jitteredIdle(baseSec float64) time.Duration {
	jitter := baseSec * (0.1 + rand.Float64()*0.2)
	return time.Duration((baseSec + jitter) * float64(time.Second))
}
