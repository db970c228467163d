// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package testsupport holds shared test helpers used across this module's
// packages. Ported from the teacher's tests/helpers package, which was
// Slurm-API-specific and dropped; TestContext/assert wrappers are kept
// verbatim in spirit, and a fake-controller HTTP server helper is added
// for the controller-client and supervisor-lifecycle tests spec.md's
// test-tooling section calls for.
package testsupport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestContext returns a test context with a generous timeout, cancelled
// automatically at test cleanup.
func TestContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	t.Cleanup(cancel)
	return ctx
}

// AssertNoError fails the test if err is not nil, without stopping it.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	assert.NoError(t, err)
}

// RequireNoError fails and stops the test immediately if err is not nil.
func RequireNoError(t *testing.T, err error) {
	t.Helper()
	require.NoError(t, err)
}

// FakeControllerServer is a minimal httptest-backed stand-in for a
// controller, routing by exact path to caller-supplied handlers.
type FakeControllerServer struct {
	Server *httptest.Server

	mu       sync.Mutex
	handlers map[string]http.HandlerFunc
}

// NewFakeControllerServer starts an httptest.Server whose routing table can
// be populated with Handle before or during a test.
func NewFakeControllerServer(t *testing.T) *FakeControllerServer {
	t.Helper()
	f := &FakeControllerServer{handlers: make(map[string]http.HandlerFunc)}

	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		h, ok := f.handlers[r.URL.Path]
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h(w, r)
	}))
	t.Cleanup(f.Server.Close)
	return f
}

// Handle registers (or replaces) the handler for an exact path.
func (f *FakeControllerServer) Handle(path string, h http.HandlerFunc) {
	f.mu.Lock()
	f.handlers[path] = h
	f.mu.Unlock()
}

// URL returns the server's base URL.
func (f *FakeControllerServer) URL() string {
	return f.Server.URL
}
