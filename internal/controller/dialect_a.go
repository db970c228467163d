// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	agenterrors "github.com/distributed-swarm/agent/pkg/errors"

	"github.com/distributed-swarm/agent/internal/task"
)

// DialectA speaks the legacy single-task lease protocol, with endpoint
// discovery across a configured prefix and the empty prefix, per spec.md
// §4.3's "Endpoint discovery (Dialect A)". Grounded on original_source's
// controller-facing calls generalized from a single fixed path to the
// probe-and-cache scheme spec.md requires.
type DialectA struct {
	t      *transport
	prefix string

	mu            sync.RWMutex
	registerPath  string
	heartbeatPath string
	leasePath     string
}

// NewDialectA builds a Dialect A client; prefix is spec.md's API_PREFIX
// (default "/api").
func NewDialectA(t *transport, prefix string) *DialectA {
	return &DialectA{t: t, prefix: prefix}
}

func (d *DialectA) candidates(suffix string) []string {
	if d.prefix == "" {
		return []string{suffix}
	}
	return []string{d.prefix + suffix, suffix}
}

func (d *DialectA) cachedPath(cached *string) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return *cached
}

func (d *DialectA) setCachedPath(cached *string, path string) {
	d.mu.Lock()
	*cached = path
	d.mu.Unlock()
}

// sendDiscovering performs call against the cached path if one is known;
// otherwise it tries each candidate in turn, caching the first one whose
// response is neither a connection failure nor a 404. A 404 against an
// already-cached path clears the cache and re-probes once.
func (d *DialectA) sendDiscovering(ctx context.Context, cached *string, suffix string, call func(ctx context.Context, path string) (httpResult, error)) (httpResult, error) {
	if path := d.cachedPath(cached); path != "" {
		res, err := call(ctx, path)
		if err == nil || agenterrors.GetErrorCode(err) != agenterrors.ErrorCodeEndpointNotFound {
			return res, err
		}
		d.setCachedPath(cached, "")
	}

	var lastRes httpResult
	var lastErr error
	for _, candidate := range d.candidates(suffix) {
		res, err := call(ctx, candidate)
		if err != nil {
			if agenterrors.GetErrorCode(err) == agenterrors.ErrorCodeEndpointNotFound {
				lastRes, lastErr = res, err
				continue
			}
			return res, err
		}
		d.setCachedPath(cached, candidate)
		return res, nil
	}
	return lastRes, lastErr
}

func (d *DialectA) Register(ctx context.Context, req LeaseRequest) error {
	ctx, cancel := withWriteTimeout(ctx)
	defer cancel()

	body := map[string]any{
		"agent":        req.Agent,
		"labels":       mergeLabels(req.Labels, req.WorkerProfile),
		"capabilities": map[string]any{"ops": req.Ops},
		"metrics":      req.Metrics,
	}

	_, err := d.sendDiscovering(ctx, &d.registerPath, "/agents/register", func(ctx context.Context, p string) (httpResult, error) {
		return d.t.postJSON(ctx, p, body)
	})
	return err
}

func (d *DialectA) Heartbeat(ctx context.Context, agent string, metrics map[string]any) error {
	ctx, cancel := withWriteTimeout(ctx)
	defer cancel()

	body := map[string]any{"agent": agent, "metrics": metrics}

	_, err := d.sendDiscovering(ctx, &d.heartbeatPath, "/agents/heartbeat", func(ctx context.Context, p string) (httpResult, error) {
		return d.t.postJSON(ctx, p, body)
	})
	return err
}

func (d *DialectA) Lease(ctx context.Context, req LeaseRequest) ([]task.Task, error) {
	ctx, cancel := withLeaseTimeout(ctx, req.TimeoutMS)
	defer cancel()

	query := fmt.Sprintf("?agent=%s&wait_ms=%d", url.QueryEscape(req.Agent), req.TimeoutMS)

	res, err := d.sendDiscovering(ctx, &d.leasePath, "/task", func(ctx context.Context, p string) (httpResult, error) {
		return d.t.getJSON(ctx, p+query)
	})
	if err != nil {
		return nil, err
	}
	if res.status == http.StatusNoContent || len(res.body) == 0 {
		return nil, nil
	}

	var raw map[string]any
	if err := json.Unmarshal(res.body, &raw); err != nil {
		return nil, agenterrors.NewClientError(agenterrors.ErrorCodeProtocolViolation, "lease response body not an object", err.Error())
	}
	if len(raw) == 0 {
		return nil, nil
	}

	t, err := task.ParseTask(raw, "")
	if err != nil {
		return nil, agenterrors.NewClientError(agenterrors.ErrorCodeProtocolViolation, fmt.Sprintf("malformed task: %s", err))
	}
	return []task.Task{t}, nil
}

func (d *DialectA) PostResult(ctx context.Context, result task.Result) error {
	ctx, cancel := withWriteTimeout(ctx)
	defer cancel()

	status := "ok"
	if result.Status == task.StatusError {
		status = "error"
	}

	body := map[string]any{
		"task_id": result.JobID,
		"id":      result.JobID,
		"job_id":  result.JobID,
		"status":  status,
		"result":  result.Value,
		"error":   result.Err,
	}

	path := d.prefix + "/result"
	_, err := d.t.postJSON(ctx, path, body)
	if err != nil && agenterrors.GetErrorCode(err) == agenterrors.ErrorCodeEndpointNotFound {
		_, err = d.t.postJSON(ctx, "/result", body)
	}
	return err
}

// mergeLabels folds the worker profile into the labels map Dialect A
// register sends — spec.md §9 Open Questions: worker_profile is echoed
// inside labels on Dialect A, as a top-level field on Dialect B.
func mergeLabels(labels map[string]string, workerProfile map[string]any) map[string]any {
	out := make(map[string]any, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	if workerProfile != nil {
		out["worker_profile"] = workerProfile
	}
	return out
}
