// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package capacity

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/distributed-swarm/agent/pkg/config"
)

type fakeDetector struct {
	cpuCount   int
	availBytes int64
	gpus       []GPUDevice
	tpuKind    string
	tpuDevices []string
}

func (f fakeDetector) CPUCount() int                 { return f.cpuCount }
func (f fakeDetector) AvailableMemoryBytes() int64   { return f.availBytes }
func (f fakeDetector) ProbeGPU() []GPUDevice         { return f.gpus }
func (f fakeDetector) ProbeTPU() (string, []string)  { return f.tpuKind, f.tpuDevices }

func baseConfig() *config.Config {
	return &config.Config{
		CPUMinWorkers:         1,
		CPUPipelineFactor:     4.0,
		CPUReservedCoresFloor: 1,
		CPUReservedCoresCap:   4,
		CPUSoftCapMultiplier:  8.0,
		CPUPerWorkerBytes:     32 * 1024 * 1024,
	}
}

func TestBuild_BasicCPUSizing(t *testing.T) {
	cfg := baseConfig()
	p := Build(cfg, fakeDetector{cpuCount: 8})

	assert.Equal(t, 8, p.TotalCores)
	assert.Equal(t, 2, p.ReservedCores) // clamp(8/4=2, floor=1, cap=4)
	assert.Equal(t, 6, p.UsableCores)
	assert.Equal(t, 24, p.TargetInflight) // 6 * 4.0
	assert.Equal(t, 48, p.SoftCap)        // 6 * 8.0
	assert.False(t, p.GPUPresent)
	assert.False(t, p.TPUPresent)
}

func TestBuild_ReservedCoresClamp(t *testing.T) {
	cfg := baseConfig()
	cfg.CPUReservedCoresCap = 2

	p := Build(cfg, fakeDetector{cpuCount: 32})
	assert.Equal(t, 2, p.ReservedCores) // 32/4=8 clamped to cap 2
	assert.Equal(t, 30, p.UsableCores)
}

func TestBuild_SoftCapBoundedByMemory(t *testing.T) {
	cfg := baseConfig()
	// Only enough memory for 3 workers at 32 MiB each.
	p := Build(cfg, fakeDetector{cpuCount: 4, availBytes: 3 * 32 * 1024 * 1024})

	assert.Equal(t, 3, p.SoftCap)
}

func TestBuild_WorkerSoftGuardOverride(t *testing.T) {
	cfg := baseConfig()
	cfg.WorkerSoftGuard = 5

	p := Build(cfg, fakeDetector{cpuCount: 64})
	assert.Equal(t, 5, p.SoftCap)
}

func TestBuild_MinWorkersFloorsOneAndSoftCap(t *testing.T) {
	cfg := baseConfig()
	cfg.CPUMinWorkers = 0

	p := Build(cfg, fakeDetector{cpuCount: 1})
	assert.Equal(t, 1, p.MinWorkers)
	assert.GreaterOrEqual(t, p.SoftCap, p.MinWorkers)
}

func TestBuild_GPUDetected(t *testing.T) {
	cfg := baseConfig()
	devices := []GPUDevice{{Index: 0, Name: "Tesla T4", TotalMemoryBytes: 16 * 1024 * 1024 * 1024}}

	p := Build(cfg, fakeDetector{cpuCount: 8, gpus: devices})
	assert.True(t, p.GPUPresent)
	assert.Equal(t, 1, p.GPUCount)
	assert.InDelta(t, 16.0, p.VRAMGiB, 0.01)
}

func TestBuild_GPUDisabledByNvidiaVisibleDevicesNone(t *testing.T) {
	cfg := baseConfig()
	cfg.NvidiaVisibleDevices = "none"
	devices := []GPUDevice{{Index: 0, Name: "Tesla T4", TotalMemoryBytes: 16 * 1024 * 1024 * 1024}}

	p := Build(cfg, fakeDetector{cpuCount: 8, gpus: devices})
	assert.False(t, p.GPUPresent)
}

func TestBuild_TPUPresenceRequiresProof(t *testing.T) {
	cfg := baseConfig()

	// No devices returned: no proof, no TPU claim even if kind is non-empty.
	p := Build(cfg, fakeDetector{cpuCount: 8, tpuKind: "hinted", tpuDevices: nil})
	assert.False(t, p.TPUPresent)

	p = Build(cfg, fakeDetector{cpuCount: 8, tpuKind: "jax", tpuDevices: []string{"TPU:0"}})
	assert.True(t, p.TPUPresent)
	assert.Equal(t, "jax", p.TPUKind)
}

func TestBuild_TPUDisabledSkipsProbe(t *testing.T) {
	cfg := baseConfig()
	cfg.TPUDisabled = true

	p := Build(cfg, fakeDetector{cpuCount: 8, tpuKind: "jax", tpuDevices: []string{"TPU:0"}})
	assert.False(t, p.TPUPresent)
}

func TestBuild_TPUOnlyCollapsesCPUAndDisablesGPU(t *testing.T) {
	cfg := baseConfig()
	cfg.TPUOnly = true
	devices := []GPUDevice{{Index: 0, Name: "Tesla T4", TotalMemoryBytes: 16 * 1024 * 1024 * 1024}}

	p := Build(cfg, fakeDetector{cpuCount: 64, gpus: devices, tpuKind: "jax", tpuDevices: []string{"TPU:0"}})
	assert.Equal(t, 1, p.SoftCap)
	assert.Equal(t, 1, p.MinWorkers)
	assert.False(t, p.GPUPresent)
	assert.True(t, p.TPUPresent)
}
