// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	agenterrors "github.com/distributed-swarm/agent/pkg/errors"
	"github.com/distributed-swarm/agent/pkg/metrics"

	"github.com/distributed-swarm/agent/internal/task"
)

func echoHandler(_ context.Context, payload map[string]any) (any, error) {
	return map[string]any{"ok": true, "echo": payload}, nil
}

func TestComputeEnabled_EmptyMeansAll(t *testing.T) {
	r := New(nil, nil, nil)
	assert.ElementsMatch(t, AllowList, r.ListEnabled())
}

func TestComputeEnabled_StarMeansAll(t *testing.T) {
	r := New([]string{"*"}, nil, nil)
	assert.ElementsMatch(t, AllowList, r.ListEnabled())
}

func TestComputeEnabled_NoneMeansNone(t *testing.T) {
	r := New([]string{"none"}, nil, nil)
	assert.Empty(t, r.ListEnabled())
}

func TestComputeEnabled_ExplicitListIntersectsAllowList(t *testing.T) {
	r := New([]string{"echo", "fibonacci", "not_a_real_op"}, nil, nil)
	assert.Equal(t, []string{"echo", "fibonacci"}, r.ListEnabled())
}

func TestResolve_UnknownOp(t *testing.T) {
	r := New(nil, nil, nil)
	_, err := r.Resolve("nope")
	require.Error(t, err)
	assert.Equal(t, agenterrors.ErrorCodeUnknownOp, agenterrors.GetErrorCode(err))
}

func TestResolve_DisabledOp(t *testing.T) {
	r := New([]string{"echo"}, nil, nil)
	_, err := r.Resolve("fibonacci")
	require.Error(t, err)
	assert.Equal(t, agenterrors.ErrorCodeOpDisabled, agenterrors.GetErrorCode(err))
}

func TestResolve_LoadFailure(t *testing.T) {
	r := New([]string{"map_classify_tpu"}, nil, nil)
	r.RegisterLoadError("map_classify_tpu", "model file missing")
	_, err := r.Resolve("map_classify_tpu")
	require.Error(t, err)
	assert.Equal(t, agenterrors.ErrorCodeLoadFailed, agenterrors.GetErrorCode(err))
}

func TestExecute_EchoRoundTrip(t *testing.T) {
	gauges := metrics.NewAgentGauges()
	r := New([]string{"echo"}, gauges, nil)
	r.Register("echo", echoHandler)

	result := r.Execute(context.Background(), task.Task{
		JobID: "j1", Op: "echo", Payload: map[string]any{"x": float64(1)},
	})

	assert.Equal(t, task.StatusOK, result.Status)
	assert.Nil(t, result.Err)
	assert.Equal(t, int64(0), gauges.Inflight())
}

func TestExecute_HandlerErrorBecomesFailedResult(t *testing.T) {
	r := New([]string{"echo"}, nil, nil)
	r.Register("echo", func(_ context.Context, _ map[string]any) (any, error) {
		return nil, errors.New("boom")
	})

	result := r.Execute(context.Background(), task.Task{JobID: "j1", Op: "echo", Payload: map[string]any{}})
	require.Equal(t, task.StatusError, result.Status)
	assert.Equal(t, "HandlerError", result.Err.Type)
}

func TestExecute_PanicRecoveredAsFailedResult(t *testing.T) {
	r := New([]string{"echo"}, nil, nil)
	r.Register("echo", func(_ context.Context, _ map[string]any) (any, error) {
		panic("kaboom")
	})

	result := r.Execute(context.Background(), task.Task{JobID: "j1", Op: "echo", Payload: map[string]any{}})
	require.Equal(t, task.StatusError, result.Status)
	assert.Equal(t, "PanicError", result.Err.Type)
	assert.NotEmpty(t, result.Err.Trace)
}

func TestExecute_ValidationErrorReportedAsValidationError(t *testing.T) {
	r := New([]string{"fibonacci"}, nil, nil)
	r.Register("fibonacci", func(_ context.Context, _ map[string]any) (any, error) {
		return nil, agenterrors.NewValidationError("n out of range", "n", 999999)
	})

	result := r.Execute(context.Background(), task.Task{JobID: "j1", Op: "fibonacci", Payload: map[string]any{}})
	require.Equal(t, task.StatusError, result.Status)
	assert.Equal(t, "ValidationError", result.Err.Type)
}
