// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package controller

import (
	"time"

	"github.com/distributed-swarm/agent/pkg/auth"
	"github.com/distributed-swarm/agent/pkg/logging"
	"github.com/distributed-swarm/agent/pkg/metrics"
)

// NewClient builds the Client for the configured dialect. dialect is
// spec.md §4.3's build parameter ("a" or "b", case-insensitive; anything
// else falls back to "a"). timeout defaults per dialect when zero (6s for
// Dialect A, 10s for Dialect B), matching spec.md §4.3's transport policy.
func NewClient(dialect, baseURL, apiPrefix string, timeout time.Duration, token string, collector metrics.Collector, logger logging.Logger) Client {
	var authProvider auth.Provider
	if token != "" {
		authProvider = auth.NewTokenAuth(token)
	}

	if dialect == "b" || dialect == "B" {
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		t := newTransport(baseURL, timeout, authProvider, collector, logger)
		return NewDialectB(t)
	}

	if timeout <= 0 {
		timeout = 6 * time.Second
	}
	t := newTransport(baseURL, timeout, authProvider, collector, logger)
	return NewDialectA(t, apiPrefix)
}
