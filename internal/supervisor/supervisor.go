// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package supervisor composes the agent's startup/shutdown sequence (C6):
// register with the controller (retried until success), start the
// heartbeat loop, seed the worker pool at min_workers, start the
// autoscaler, and drain on shutdown. Grounded on the teacher's
// examples/watch-jobs signal-handling shape, generalized from a one-shot
// watch loop into a supervised long-running process.
package supervisor

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/distributed-swarm/agent/pkg/logging"
	"github.com/distributed-swarm/agent/pkg/metrics"

	"github.com/distributed-swarm/agent/internal/autoscaler"
	"github.com/distributed-swarm/agent/internal/capacity"
	"github.com/distributed-swarm/agent/internal/controller"
	"github.com/distributed-swarm/agent/internal/cpuutil"
	"github.com/distributed-swarm/agent/internal/registry"
	"github.com/distributed-swarm/agent/internal/workerpool"
)

// ErrNoOpsEnabled is returned by Run when the TASKS gate leaves nothing
// enabled; the caller (cmd/agent) maps this to spec.md §6's exit code 2.
var ErrNoOpsEnabled = errors.New("supervisor: no ops enabled; check TASKS configuration")

// registerRetryBase/Jitter implement spec.md §4.3's "retried at ~1s ± 0.5s
// jitter until success" register policy.
const (
	registerRetryBase   = 1 * time.Second
	registerRetryJitter = 500 * time.Millisecond
)

// DrainTimeout bounds how long Stop waits for in-flight ops to finish
// before returning; spec.md names no exact figure, so this mirrors the
// default HTTP_TIMEOUT magnitude as a reasonable shutdown window.
const DrainTimeout = 10 * time.Second

// Supervisor owns the pool and autoscaler for one agent process.
type Supervisor struct {
	agentName    string
	heartbeatSec float64

	client   controller.Client
	registry *registry.Registry
	pool     *workerpool.Pool
	scaler   *autoscaler.Autoscaler
	gauges   *metrics.AgentGauges
	logger   logging.Logger

	profile *capacity.Profile
}

// New builds a Supervisor ready to Run. RegisterAll (or equivalent) must
// already have populated reg before calling New. gauges is the single
// AgentGauges instance shared with reg (via registry.New) so that the
// registry's inflight bracketing and the autoscaler's idle detection read
// and write the same counters — see spec.md §8's inflight invariant.
func New(agentName string, heartbeatSec float64, client controller.Client, reg *registry.Registry, gauges *metrics.AgentGauges, profile *capacity.Profile, waitMS int, leaseIdleSec float64, scalerCfg autoscaler.Config, logger logging.Logger) *Supervisor {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if gauges == nil {
		gauges = metrics.NewAgentGauges()
	}
	pool := workerpool.New(client, reg, gauges, logger, agentName, waitMS, leaseIdleSec)
	scalerCfg.MinWorkers = profile.MinWorkers
	scalerCfg.SoftCap = profile.SoftCap
	scaler := autoscaler.New(pool, gauges, cpuutil.NewProcStatSampler(), scalerCfg, logger)

	return &Supervisor{
		agentName:    agentName,
		heartbeatSec: heartbeatSec,
		client:       client,
		registry:     reg,
		pool:         pool,
		scaler:       scaler,
		gauges:       gauges,
		logger:       logger,
		profile:      profile,
	}
}

// Run blocks until ctx is cancelled: it registers, seeds the pool, starts
// the heartbeat and autoscaler loops, then waits for cancellation before
// draining. Returns ErrNoOpsEnabled immediately if the op gate is empty.
func (s *Supervisor) Run(ctx context.Context) error {
	if len(s.registry.ListEnabled()) == 0 {
		return ErrNoOpsEnabled
	}

	if err := s.registerUntilSuccess(ctx); err != nil {
		return err
	}

	s.pool.Spawn(s.profile.MinWorkers, s.profile.SoftCap)
	s.gauges.SetCurrentWorkers(s.pool.Count())

	scalerCtx, cancelScaler := context.WithCancel(ctx)
	defer cancelScaler()
	go s.scaler.Run(scalerCtx, autoscaler.RealClock)

	heartbeatCtx, cancelHeartbeat := context.WithCancel(ctx)
	defer cancelHeartbeat()
	go s.heartbeatLoop(heartbeatCtx)

	<-ctx.Done()
	return s.Stop()
}

// Stop signals every worker to exit and gives in-flight ops a bounded
// window to finish and post their result before returning.
func (s *Supervisor) Stop() error {
	s.pool.StopAll()
	drainCtx, cancel := context.WithTimeout(context.Background(), DrainTimeout)
	defer cancel()
	s.pool.Drain(drainCtx)
	return nil
}

func (s *Supervisor) registerUntilSuccess(ctx context.Context) error {
	req := controller.LeaseRequest{
		Agent: s.agentName,
		Ops:   s.registry.ListEnabled(),
		WorkerProfile: map[string]any{
			"usable_cores":    s.profile.UsableCores,
			"pipeline_factor": s.profile.PipelineFactor,
			"gpu_present":     s.profile.GPUPresent,
			"tpu_present":     s.profile.TPUPresent,
		},
	}

	for {
		err := s.client.Register(ctx, req)
		if err == nil {
			return nil
		}
		s.logger.Warn("register failed, retrying", "err", err)

		jitter := time.Duration(rand.Float64()*float64(2*registerRetryJitter)) - registerRetryJitter
		wait := registerRetryBase + jitter
		if wait < 0 {
			wait = registerRetryBase
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *Supervisor) heartbeatLoop(ctx context.Context) {
	interval := time.Duration(s.heartbeatSec * float64(time.Second))
	if interval <= 0 {
		interval = 3 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			payload := map[string]any{
				"current_workers": s.gauges.CurrentWorkers(),
				"inflight":        s.gauges.Inflight(),
			}
			if err := s.client.Heartbeat(ctx, s.agentName, payload); err != nil {
				s.logger.Warn("heartbeat failed", "err", err)
			}
		}
	}
}
