// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package registry resolves op names to handlers under a compile-time
// allow-list, gates them by the TASKS configuration variable, and
// dispatches tasks to their handler with validation and inflight tracking.
//
// Grounded on original_source/ops/__init__.py's OP_TO_MODULE allow-list and
// get_op error aggregation; per spec.md §9 Design Notes the lazy
// import-on-first-use the Python does is replaced by eager, compile-time
// registration, since this binary links every handler statically.
package registry

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"

	agenterrors "github.com/distributed-swarm/agent/pkg/errors"
	"github.com/distributed-swarm/agent/pkg/logging"
	"github.com/distributed-swarm/agent/pkg/metrics"

	"github.com/distributed-swarm/agent/internal/task"
)

// Handler executes one op's payload and returns its JSON-able result, or a
// structured error the dispatcher converts into a failed Result.
type Handler func(ctx context.Context, payload map[string]any) (any, error)

// AllowList is the authoritative op catalog, ported from the original's
// OP_TO_MODULE table. csv_shard and read_csv_shard are aliases of the same
// handler, matching the original's ops/csv_shard.py registering both names.
var AllowList = []string{
	"echo",
	"map_tokenize",
	"map_summarize",
	"csv_shard",
	"read_csv_shard",
	"risk_accumulate",
	"fibonacci",
	"prime_factor",
	"sat_verify",
	"subset_sum",
	"map_classify_tpu",
	"trigger_webhook",
}

func isAllowListed(name string) bool {
	for _, n := range AllowList {
		if n == name {
			return true
		}
	}
	return false
}

// Registry maps op names to handlers and enforces the TASKS gate.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	enabled  map[string]bool
	loadErrs map[string]string

	gauges *metrics.AgentGauges
	logger logging.Logger
}

// New builds a Registry gated by tasks (the parsed TASKS configuration
// value): nil/empty or containing "*"/"all" enables every allow-listed op;
// "none" enables none; otherwise the intersection of tasks and AllowList.
func New(tasks []string, gauges *metrics.AgentGauges, logger logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &Registry{
		handlers: make(map[string]Handler),
		enabled:  computeEnabled(tasks),
		loadErrs: make(map[string]string),
		gauges:   gauges,
		logger:   logger,
	}
}

func computeEnabled(tasks []string) map[string]bool {
	enabled := make(map[string]bool, len(AllowList))

	if len(tasks) == 0 {
		for _, n := range AllowList {
			enabled[n] = true
		}
		return enabled
	}

	for _, t := range tasks {
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "*", "all":
			for _, n := range AllowList {
				enabled[n] = true
			}
			return enabled
		case "none":
			return enabled
		}
	}

	for _, t := range tasks {
		t = strings.TrimSpace(t)
		if isAllowListed(t) {
			enabled[t] = true
		}
	}
	return enabled
}

// Register adds or replaces the handler for an allow-listed op name. A name
// outside AllowList is a programming error, not a runtime condition.
func (r *Registry) Register(name string, h Handler) {
	if !isAllowListed(name) {
		panic(fmt.Sprintf("registry: %q is not in the op allow-list", name))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
}

// RegisterLoadError records that a handler's lazy dependency (e.g. an
// accelerator runtime or a model file) failed to initialize; resolve will
// surface it instead of silently reporting UnknownOp.
func (r *Registry) RegisterLoadError(name, detail string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loadErrs[name] = detail
}

// ListEnabled returns the sorted set of op names both allow-listed and
// enabled by the TASKS gate.
func (r *Registry) ListEnabled() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.enabled))
	for n := range r.enabled {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Resolve looks up the handler for name, returning a structured
// UnknownOp/Disabled/LoadFailed AgentError when it cannot.
func (r *Registry) Resolve(name string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !isAllowListed(name) {
		return nil, agenterrors.NewAgentError(agenterrors.ErrorCodeUnknownOp,
			fmt.Sprintf("unknown op %q; enabled ops: %s", name, strings.Join(sortedKeys(r.enabled), ", ")))
	}
	if !r.enabled[name] {
		return nil, agenterrors.NewAgentError(agenterrors.ErrorCodeOpDisabled,
			fmt.Sprintf("op %q disabled by TASKS configuration; enabled ops: %s", name, strings.Join(sortedKeys(r.enabled), ", ")))
	}
	if detail, ok := r.loadErrs[name]; ok {
		return nil, agenterrors.NewAgentError(agenterrors.ErrorCodeLoadFailed,
			fmt.Sprintf("op %q failed to load: %s", name, detail))
	}
	h, ok := r.handlers[name]
	if !ok {
		return nil, agenterrors.NewAgentError(agenterrors.ErrorCodeLoadFailed,
			fmt.Sprintf("op %q is enabled but has no registered handler", name))
	}
	return h, nil
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		if v {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Execute validates and dispatches t, maintaining the inflight gauge across
// the handler call and converting panics/errors into a failed Result per
// spec.md §7's "workers never crash the process" propagation policy.
func (r *Registry) Execute(ctx context.Context, t task.Task) task.Result {
	result := task.Result{JobID: t.JobID, LeaseID: t.LeaseID, JobEpoch: t.JobEpoch}

	handler, err := r.Resolve(t.Op)
	if err != nil {
		result.Status = task.StatusError
		result.Err = &task.HandlerError{Type: "OpResolutionError", Message: err.Error()}
		return result
	}

	if r.gauges != nil {
		r.gauges.IncInflight()
		defer r.gauges.DecInflight()
	}

	value, handlerErr := r.invoke(ctx, handler, t.Op, t.Payload)
	if handlerErr != nil {
		result.Status = task.StatusError
		result.Err = handlerErr
		return result
	}

	result.Status = task.StatusOK
	result.Value = value
	return result
}

// invoke runs handler, recovering a panic into a HandlerError so one
// misbehaving op can never take down the worker loop.
func (r *Registry) invoke(ctx context.Context, handler Handler, op string, payload map[string]any) (value any, herr *task.HandlerError) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("op handler panicked", "op", op, "panic", fmt.Sprintf("%v", rec))
			herr = &task.HandlerError{
				Type:    "PanicError",
				Message: fmt.Sprintf("%v", rec),
				Trace:   string(debug.Stack()),
			}
		}
	}()

	var start any
	start, err := handler(ctx, payload)
	if err != nil {
		if ve, ok := err.(*agenterrors.ValidationError); ok {
			return nil, &task.HandlerError{Type: "ValidationError", Message: ve.Error()}
		}
		return nil, &task.HandlerError{Type: "HandlerError", Message: err.Error()}
	}
	return start, nil
}
