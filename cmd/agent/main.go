// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Command agent runs the distributed-swarm worker agent: it registers with
// a controller, leases and executes tasks through the op registry, and
// autoscales its worker pool against host capacity and lease pressure.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/distributed-swarm/agent/pkg/config"
	"github.com/distributed-swarm/agent/pkg/logging"
	"github.com/distributed-swarm/agent/pkg/metrics"

	"github.com/distributed-swarm/agent/internal/autoscaler"
	"github.com/distributed-swarm/agent/internal/capacity"
	"github.com/distributed-swarm/agent/internal/controller"
	"github.com/distributed-swarm/agent/internal/ops"
	"github.com/distributed-swarm/agent/internal/registry"
	"github.com/distributed-swarm/agent/internal/supervisor"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	root := &cobra.Command{
		Use:          "agent",
		Short:        "Distributed-swarm worker agent",
		SilenceUsage: true,
	}
	root.AddCommand(newRunCommand(), newProbeCommand(), newVersionCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the agent version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(version)
			return nil
		},
	}
}

// newProbeCommand runs only the capacity profiler and prints its result,
// letting an operator check what CPU/GPU/TPU the agent would claim without
// starting the lease loop or contacting a controller.
func newProbeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Detect host capacity and print the resulting worker profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			profile := capacity.Build(cfg, capacity.RuntimeDetector{})
			out, err := json.MarshalIndent(profile, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func newRunCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the agent: register, lease, execute, autoscale",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent()
		},
	}
}

func runAgent() error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logging.NewLogger(logging.DefaultConfig())

	profile := capacity.Build(cfg, capacity.RuntimeDetector{})
	logger.Info("capacity profile detected",
		"usable_cores", profile.UsableCores, "min_workers", profile.MinWorkers,
		"soft_cap", profile.SoftCap, "gpu_present", profile.GPUPresent, "tpu_present", profile.TPUPresent)

	gauges := metrics.NewAgentGauges()
	reg := registry.New(cfg.Tasks, gauges, logger)
	ops.RegisterAll(reg)

	collector := metrics.NewInMemoryCollector()
	client := controller.NewClient(cfg.ControllerDialect, cfg.ControllerURL, cfg.APIPrefix, cfg.HTTPTimeout, cfg.ControllerToken, collector, logger)

	scalerCfg := autoscaler.Config{
		SpawnStep:        cfg.SpawnStep,
		ReapStep:         cfg.ReapStep,
		IdleReapTicks:    cfg.IdleReapTicks,
		TargetCPUUtilPct: cfg.TargetCPUUtilPct,
		TickInterval:     secondsToDuration(cfg.ScaleTickSec),
	}

	sup := supervisor.New(cfg.AgentName, cfg.HeartbeatSec, client, reg, gauges, profile, cfg.WaitMS, cfg.LeaseIdleSec, scalerCfg, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := sup.Run(ctx); err != nil {
		if err == supervisor.ErrNoOpsEnabled {
			logger.Error("no ops enabled; check TASKS configuration")
			os.Exit(2)
		}
		logger.Error("supervisor exited with error", "err", err)
		return err
	}
	logger.Info("agent stopped")
	return nil
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
