// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/distributed-swarm/agent/pkg/metrics"

	"github.com/distributed-swarm/agent/internal/autoscaler"
	"github.com/distributed-swarm/agent/internal/capacity"
	"github.com/distributed-swarm/agent/internal/controller"
	"github.com/distributed-swarm/agent/internal/registry"
	"github.com/distributed-swarm/agent/internal/task"
)

type fakeClient struct {
	registerAttempts int64
	registerFailures int64

	mu         sync.Mutex
	registered bool
	heartbeats int
}

func (f *fakeClient) Register(context.Context, controller.LeaseRequest) error {
	n := atomic.AddInt64(&f.registerAttempts, 1)
	if n <= atomic.LoadInt64(&f.registerFailures) {
		return assert.AnError
	}
	f.mu.Lock()
	f.registered = true
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Heartbeat(context.Context, string, map[string]any) error {
	f.mu.Lock()
	f.heartbeats++
	f.mu.Unlock()
	return nil
}

func (f *fakeClient) Lease(context.Context, controller.LeaseRequest) ([]task.Task, error) {
	return nil, nil
}

func (f *fakeClient) PostResult(context.Context, task.Result) error { return nil }

func testProfile() *capacity.Profile {
	return &capacity.Profile{MinWorkers: 1, SoftCap: 4, UsableCores: 2, PipelineFactor: 4}
}

func TestRun_ReturnsErrNoOpsEnabledWhenGateEmpty(t *testing.T) {
	gauges := metrics.NewAgentGauges()
	reg := registry.New([]string{"none"}, gauges, nil)
	client := &fakeClient{}
	s := New("agent-1", 0.05, client, reg, gauges, testProfile(), 50, 0.01, autoscaler.Config{TickInterval: autoscaler.MinTickInterval}, nil)

	err := s.Run(context.Background())
	assert.ErrorIs(t, err, ErrNoOpsEnabled)
}

func TestRun_RegistersWithRetryThenSeedsPoolAndHeartbeats(t *testing.T) {
	gauges := metrics.NewAgentGauges()
	reg := registry.New([]string{"echo"}, gauges, nil)
	reg.Register("echo", func(context.Context, map[string]any) (any, error) {
		return map[string]any{"ok": true}, nil
	})

	client := &fakeClient{registerFailures: 2}
	s := New("agent-1", 0.02, client, reg, gauges, testProfile(), 50, 0.01, autoscaler.Config{TickInterval: autoscaler.MinTickInterval}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	require.Eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.registered
	}, 5*time.Second, 5*time.Millisecond)

	assert.Equal(t, 1, s.pool.Count())

	require.Eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return client.heartbeats >= 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// TestRegistryAndSupervisorShareInflightGauge guards against wiring two
// separate AgentGauges instances (one for the registry, one for the
// pool/autoscaler) — the production bug this reproduces left the
// autoscaler permanently reading inflight==0 regardless of what the
// registry incremented.
func TestRegistryAndSupervisorShareInflightGauge(t *testing.T) {
	gauges := metrics.NewAgentGauges()
	reg := registry.New([]string{"echo"}, gauges, nil)

	release := make(chan struct{})
	entered := make(chan struct{})
	reg.Register("echo", func(context.Context, map[string]any) (any, error) {
		close(entered)
		<-release
		return map[string]any{"ok": true}, nil
	})

	client := &fakeClient{}
	s := New("agent-1", 0.05, client, reg, gauges, testProfile(), 50, 0.01, autoscaler.Config{TickInterval: autoscaler.MinTickInterval}, nil)

	assert.Same(t, gauges, s.gauges)

	done := make(chan task.Result, 1)
	go func() {
		done <- s.registry.Execute(context.Background(), task.Task{Op: "echo"})
	}()

	<-entered
	assert.EqualValues(t, 1, s.gauges.Inflight())

	close(release)
	<-done
	assert.EqualValues(t, 0, s.gauges.Inflight())
}
