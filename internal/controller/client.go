// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package controller implements the two wire dialects a controller may
// speak, behind a small shared Client interface, per spec.md §4.3 and §9's
// "factor the client behind lease()/post(results)" design note.
package controller

import (
	"context"

	"github.com/distributed-swarm/agent/internal/task"
)

// LeaseRequest carries everything either dialect's lease call needs; unused
// fields are simply omitted from the wire body a given dialect builds.
type LeaseRequest struct {
	Agent        string
	Ops          []string
	Labels       map[string]string
	MaxTasks     int
	TimeoutMS    int
	WorkerProfile map[string]any
	Metrics      map[string]any
}

// Client is the dialect-agnostic controller protocol surface the worker
// pool and supervisor depend on.
type Client interface {
	// Register announces this agent's capabilities; retried by the caller
	// until success per spec.md §4.3's "retried at ~1s jitter" policy.
	Register(ctx context.Context, req LeaseRequest) error

	// Heartbeat reports liveness and current metrics; failures are the
	// caller's concern to log and ignore.
	Heartbeat(ctx context.Context, agent string, metrics map[string]any) error

	// Lease requests zero or more tasks. An empty slice with a nil error
	// means no task was available.
	Lease(ctx context.Context, req LeaseRequest) ([]task.Task, error)

	// PostResult reports one task's outcome.
	PostResult(ctx context.Context, result task.Result) error
}
