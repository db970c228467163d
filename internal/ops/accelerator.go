// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package ops

import (
	"os"
	"sync"
)

// acceleratorHandle is the Go analogue of original_source/ops/_tpu_runtime.py's
// TPUHandle: a process-wide handle identifying a loaded model, one per model
// path, cached in a map guarded by a single mutex for initialization, as
// spec.md §5's "Accelerator handle cache" describes.
type acceleratorHandle struct {
	modelPath string
}

var (
	tpuInitMu     sync.Mutex
	tpuHandles    = map[string]*acceleratorHandle{}
	tpuHandleErrs = map[string]error{}
	tpuInvokeMu   sync.Mutex // serializes TPU inference: at most one TPU handler runs at a time
)

// getTPUHandle resolves the model path (requested param, then
// TPU_MODEL_PATH env, then a default), verifies the model file exists, and
// caches the handle (or the load error) process-wide keyed by that path,
// mirroring get_tpu_handle's precedence.
func getTPUHandle(requestedPath string) (*acceleratorHandle, error) {
	modelPath := requestedPath
	if modelPath == "" {
		modelPath = os.Getenv("TPU_MODEL_PATH")
	}
	if modelPath == "" {
		modelPath = "/models/model_edgetpu.tflite"
	}

	tpuInitMu.Lock()
	defer tpuInitMu.Unlock()

	if h, ok := tpuHandles[modelPath]; ok {
		return h, nil
	}
	if err, ok := tpuHandleErrs[modelPath]; ok {
		return nil, err
	}

	if _, err := os.Stat(modelPath); err != nil {
		tpuHandleErrs[modelPath] = err
		return nil, err
	}

	h := &acceleratorHandle{modelPath: modelPath}
	tpuHandles[modelPath] = h
	return h, nil
}
