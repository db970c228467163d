// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	agenterrors "github.com/distributed-swarm/agent/pkg/errors"

	"github.com/distributed-swarm/agent/internal/task"
)

// DialectB speaks the lease-bundle protocol: POST /v1/leases returns either
// 204 (nothing available) or {lease_id, tasks:[...]}; POST /v1/results
// takes {lease_id, job_id, job_epoch, status, result, error} with
// status in {"succeeded","failed"}. Grounded on original_source/app.py's
// _lease_once/_post_result/_extract_task.
type DialectB struct {
	t *transport
}

// NewDialectB builds a Dialect B client bound to baseURL.
func NewDialectB(t *transport) *DialectB {
	return &DialectB{t: t}
}

func (d *DialectB) Register(_ context.Context, _ LeaseRequest) error {
	// Dialect B has no separate register call; registration happens
	// implicitly on the first lease, which always carries capabilities.
	return nil
}

func (d *DialectB) Heartbeat(_ context.Context, _ string, _ map[string]any) error {
	// Dialect B has no distinct heartbeat endpoint; the lease calls are the
	// only liveness signal, and the worker pool's leases leave their
	// metrics field empty.
	return nil
}

func (d *DialectB) Lease(ctx context.Context, req LeaseRequest) ([]task.Task, error) {
	ctx, cancel := withLeaseTimeout(ctx, req.TimeoutMS)
	defer cancel()

	body := map[string]any{
		"agent":          req.Agent,
		"capabilities":   map[string]any{"ops": req.Ops},
		"max_tasks":      req.MaxTasks,
		"timeout_ms":     req.TimeoutMS,
		"labels":         req.Labels,
		"worker_profile": req.WorkerProfile,
		"metrics":        req.Metrics,
	}

	res, err := d.t.postJSON(ctx, "/v1/leases", body)
	if err != nil {
		return nil, err
	}
	if res.status == http.StatusNoContent {
		return nil, nil
	}

	var parsed struct {
		LeaseID string           `json:"lease_id"`
		Tasks   []map[string]any `json:"tasks"`
	}
	if err := json.Unmarshal(res.body, &parsed); err != nil {
		return nil, agenterrors.NewClientError(agenterrors.ErrorCodeProtocolViolation, "lease response body not an object", err.Error())
	}
	if parsed.LeaseID == "" {
		return nil, agenterrors.NewClientError(agenterrors.ErrorCodeProtocolViolation, "lease response missing lease_id")
	}
	if len(parsed.Tasks) == 0 {
		return nil, nil
	}

	tasks := make([]task.Task, 0, len(parsed.Tasks))
	for _, raw := range parsed.Tasks {
		t, err := task.ParseTask(raw, parsed.LeaseID)
		if err != nil {
			return nil, agenterrors.NewClientError(agenterrors.ErrorCodeProtocolViolation, fmt.Sprintf("malformed task: %s", err))
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func (d *DialectB) PostResult(ctx context.Context, result task.Result) error {
	ctx, cancel := withWriteTimeout(ctx)
	defer cancel()

	status := "succeeded"
	if result.Status == task.StatusError {
		status = "failed"
	}

	body := map[string]any{
		"lease_id":  result.LeaseID,
		"job_id":    result.JobID,
		"job_epoch": result.JobEpoch,
		"status":    status,
		"result":    result.Value,
		"error":     result.Err,
	}

	_, err := d.t.postJSON(ctx, "/v1/results", body)
	return err
}
