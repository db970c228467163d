// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package ops

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	agenterrors "github.com/distributed-swarm/agent/pkg/errors"
	"github.com/distributed-swarm/agent/pkg/retry"
)

// webhookRetryPolicy retries a failed delivery against transient network
// errors and 429/5xx responses, per the teacher's generic HTTP retry
// policy — the one outbound call in this agent that benefits from one,
// since an external ERP endpoint is exactly the flaky-peer scenario it
// targets.
var webhookRetryPolicy retry.Policy = retry.NewHTTPExponentialBackoff().WithMaxRetries(3).WithMinWaitTime(200 * time.Millisecond)

// webhookClient is package-level like the original's module-level requests
// session; shared across invocations, no per-call client construction.
var webhookClient = &http.Client{Timeout: 10 * time.Second}

// TriggerWebhook generalizes original_source/ops/trigger_oracle.py and
// trigger_sap.py: both POST a fixed payload shape to a hardcoded ERP
// endpoint with basic auth and report {status, tx_id} or {error}. spec.md's
// Purpose & Scope calls the body of such an op out of scope, so this
// implements only the contract shape — the payload supplies the target
// URL and body instead of a hardcoded ERP address.
func TriggerWebhook(ctx context.Context, payload map[string]any) (any, error) {
	url, ok := payload["url"].(string)
	if !ok || url == "" {
		return nil, agenterrors.NewValidationErrorf("url", payload["url"], "\"url\" is required and must be a non-empty string")
	}

	body, ok := payload["body"]
	if !ok {
		body = map[string]any{}
	}

	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, agenterrors.NewValidationErrorf("body", body, "\"body\" must be JSON-serializable: %s", err)
	}

	authUser, hasAuth := payload["auth_user"].(string)
	authPass, _ := payload["auth_pass"].(string)

	var resp *http.Response
	var doErr error
	for attempt := 0; ; attempt++ {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(encoded))
		if reqErr != nil {
			return nil, agenterrors.NewClientError(agenterrors.ErrorCodeValidationFailed, "invalid webhook url", reqErr.Error())
		}
		req.Header.Set("Content-Type", "application/json")
		if hasAuth {
			req.SetBasicAuth(authUser, authPass)
		}

		resp, doErr = webhookClient.Do(req)
		if !webhookRetryPolicy.ShouldRetry(ctx, resp, doErr, attempt) {
			break
		}
		if resp != nil {
			resp.Body.Close()
		}

		wait := webhookRetryPolicy.WaitTime(attempt)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return map[string]any{"ok": false, "error": ctx.Err().Error()}, nil
		case <-timer.C:
		}
	}
	if doErr != nil {
		return map[string]any{"ok": false, "error": doErr.Error()}, nil
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		out := map[string]any{"ok": true, "status": resp.StatusCode}
		var parsed map[string]any
		if json.Unmarshal(respBody, &parsed) == nil {
			out["response"] = parsed
		}
		return out, nil
	}

	return map[string]any{"ok": false, "status": resp.StatusCode, "error": string(respBody)}, nil
}
