// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package capacity derives the static WorkerProfile a host exposes to the
// autoscaler at startup: usable CPU cores, a pipeline-latency-hiding factor,
// a soft-cap guardrail, and proof-gated GPU/TPU presence.
package capacity

import (
	"math"
	"runtime"

	"github.com/distributed-swarm/agent/pkg/config"
)

// GPUDevice describes one detected accelerator device.
type GPUDevice struct {
	Index            int
	Name             string
	TotalMemoryBytes int64
}

// Profile is the immutable descriptor produced once at startup; the
// autoscaler treats it as a hint, never a policy.
type Profile struct {
	TotalCores     int
	ReservedCores  int
	UsableCores    int
	PipelineFactor float64
	TargetInflight int
	SoftCap        int
	MinWorkers     int

	GPUPresent bool
	GPUCount   int
	VRAMGiB    float64
	GPUDevices []GPUDevice

	TPUPresent bool
	TPUKind    string
	TPUDevices []string
}

// Detector abstracts the host probes the profiler relies on so tests can
// substitute fakes without touching the real GPU/TPU runtimes.
type Detector interface {
	// CPUCount returns the logical CPU count the OS reports.
	CPUCount() int
	// AvailableMemoryBytes returns free/available RAM, or 0 if unknown.
	AvailableMemoryBytes() int64
	// ProbeGPU returns detected GPU devices, or nil/empty if none or on failure.
	ProbeGPU() []GPUDevice
	// ProbeTPU returns a non-empty device list only with proof of presence.
	ProbeTPU() (kind string, devices []string)
}

// Build derives a Profile from cfg using detector for the host-dependent probes.
func Build(cfg *config.Config, detector Detector) *Profile {
	totalCores := detector.CPUCount()
	if totalCores < 1 {
		totalCores = 1
	}

	reservedCores := clampInt(totalCores/4, cfg.CPUReservedCoresFloor, cfg.CPUReservedCoresCap)
	usableCores := totalCores - reservedCores
	if usableCores < 1 {
		usableCores = 1
	}

	pipelineFactor := cfg.CPUPipelineFactor
	if pipelineFactor < 1.0 {
		pipelineFactor = 1.0
	}

	minWorkers := cfg.CPUMinWorkers
	if minWorkers < 1 {
		minWorkers = 1
	}

	targetInflight := int(math.Floor(float64(usableCores) * pipelineFactor))
	if targetInflight < 1 {
		targetInflight = 1
	}

	softCapByCores := int(math.Floor(float64(usableCores) * cfg.CPUSoftCapMultiplier))
	if softCapByCores < minWorkers {
		softCapByCores = minWorkers
	}

	softCap := softCapByCores
	if avail := detector.AvailableMemoryBytes(); avail > 0 && cfg.CPUPerWorkerBytes > 0 {
		softCapByMem := int(avail / cfg.CPUPerWorkerBytes)
		if softCapByMem < 1 {
			softCapByMem = 1
		}
		if softCapByMem < softCap {
			softCap = softCapByMem
		}
	}
	if cfg.WorkerSoftGuard > 0 {
		softCap = cfg.WorkerSoftGuard
	}
	if softCap < minWorkers {
		softCap = minWorkers
	}

	p := &Profile{
		TotalCores:     totalCores,
		ReservedCores:  reservedCores,
		UsableCores:    usableCores,
		PipelineFactor: pipelineFactor,
		TargetInflight: targetInflight,
		SoftCap:        softCap,
		MinWorkers:     minWorkers,
	}

	if gpuAllowed(cfg.NvidiaVisibleDevices) {
		if devices := detector.ProbeGPU(); len(devices) > 0 {
			p.GPUPresent = true
			p.GPUCount = len(devices)
			p.GPUDevices = devices

			var maxBytes int64
			for _, d := range devices {
				if d.TotalMemoryBytes > maxBytes {
					maxBytes = d.TotalMemoryBytes
				}
			}
			if maxBytes > 0 {
				p.VRAMGiB = math.Round(float64(maxBytes)/float64(1<<30)*100) / 100
			}
		}
	}

	if !cfg.TPUDisabled {
		if kind, devices := detector.ProbeTPU(); len(devices) > 0 {
			p.TPUPresent = true
			p.TPUKind = kind
			p.TPUDevices = devices
		}
	}

	if cfg.TPUOnly {
		p.SoftCap = 1
		p.MinWorkers = 1
		p.GPUPresent = false
		p.GPUCount = 0
		p.GPUDevices = nil
		p.VRAMGiB = 0
	}

	return p
}

func clampInt(v, floor, cap int) int {
	if v < floor {
		v = floor
	}
	if v > cap {
		v = cap
	}
	return v
}

// RuntimeDetector is the production Detector, backed by the Go runtime and
// the host's GPU/TPU query tools.
type RuntimeDetector struct{}

func (RuntimeDetector) CPUCount() int {
	return runtime.NumCPU()
}

func (RuntimeDetector) AvailableMemoryBytes() int64 {
	return availableMemoryBytes()
}

func (RuntimeDetector) ProbeGPU() []GPUDevice {
	return probeNvidiaSMI()
}

func (RuntimeDetector) ProbeTPU() (string, []string) {
	return probeTPUDevices()
}
