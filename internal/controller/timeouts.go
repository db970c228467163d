// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"context"
	"time"

	agentctx "github.com/distributed-swarm/agent/pkg/context"
)

// leaseBudgetSlack is the headroom added over a lease's long-poll wait when
// bounding the dialect's backing call to the controller; WaitMS is entirely the controller's concern (both dialects
// pass it in the request body/query), but the ctx deadline still needs
// headroom over it so a slow-but-honest controller isn't cut off mid-poll.
const leaseBudgetSlack = 2 * time.Second

// withLeaseTimeout bounds a lease call using pkg/context's watch-style
// budget, sized to the caller's requested wait_ms plus slack.
func withLeaseTimeout(ctx context.Context, waitMS int) (context.Context, context.CancelFunc) {
	cfg := agentctx.DefaultTimeoutConfig()
	if waitMS > 0 {
		cfg.Watch = time.Duration(waitMS)*time.Millisecond + leaseBudgetSlack
	} else {
		cfg.Watch = agentctx.DefaultTimeout
	}
	return agentctx.WithTimeout(ctx, agentctx.OpWatch, cfg)
}

// withWriteTimeout bounds a register/heartbeat/result-post call using
// pkg/context's write-style budget.
func withWriteTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return agentctx.WithTimeout(ctx, agentctx.OpWrite, nil)
}
