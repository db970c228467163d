// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/distributed-swarm/agent/pkg/auth"
	agenterrors "github.com/distributed-swarm/agent/pkg/errors"
	"github.com/distributed-swarm/agent/pkg/logging"
	"github.com/distributed-swarm/agent/pkg/metrics"
	"github.com/distributed-swarm/agent/pkg/middleware"
	"github.com/distributed-swarm/agent/pkg/pool"
)

// transport is the shared HTTP boundary both dialects post JSON through;
// grounded on the teacher's pkg/pool (connection reuse) and pkg/middleware
// (logging/metrics/request-id) composition pattern, retargeted from a
// multi-endpoint Slurm REST API to a single controller base URL.
type transport struct {
	baseURL string
	client  *http.Client
	auth    auth.Provider
	logger  logging.Logger
}

func newTransport(baseURL string, timeout time.Duration, authProvider auth.Provider, collector metrics.Collector, logger logging.Logger) *transport {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	if authProvider == nil {
		authProvider = auth.NewNoAuth()
	}
	if collector == nil {
		collector = &metrics.NoOpCollector{}
	}

	clientPool := pool.NewHTTPClientPool(nil, logger)
	base := clientPool.GetClient(baseURL)

	chain := middleware.Chain(
		middleware.WithTimeout(timeout),
		middleware.WithRequestID(uuid.NewString),
		middleware.WithLogging(logger),
		middleware.WithMetrics(collector),
	)
	base.Transport = chain(base.Transport)
	if base.Transport == nil {
		base.Transport = chain(http.DefaultTransport)
	}

	return &transport{baseURL: baseURL, client: base, auth: authProvider, logger: logger}
}

// httpResult captures a response the way the original's _post_json does:
// status 0 means the request never reached the controller.
type httpResult struct {
	status int
	body   []byte
}

func (t *transport) postJSON(ctx context.Context, path string, payload any) (httpResult, error) {
	return t.do(ctx, http.MethodPost, path, payload)
}

func (t *transport) getJSON(ctx context.Context, path string) (httpResult, error) {
	return t.do(ctx, http.MethodGet, path, nil)
}

func (t *transport) do(ctx context.Context, method, path string, payload any) (httpResult, error) {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return httpResult{}, fmt.Errorf("encode request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, body)
	if err != nil {
		return httpResult{}, agenterrors.WrapError(err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := t.auth.Authenticate(ctx, req); err != nil {
		return httpResult{}, agenterrors.WrapError(err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return httpResult{}, agenterrors.WrapError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return httpResult{status: http.StatusNoContent}, nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode >= 400 {
		return httpResult{status: resp.StatusCode, body: respBody}, agenterrors.WrapHTTPError(resp.StatusCode, respBody)
	}

	return httpResult{status: resp.StatusCode, body: respBody}, nil
}
