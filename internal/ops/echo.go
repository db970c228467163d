// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

// Package ops implements the op handlers behind the allow-list: echo,
// tokenization, CSV sharding, numeric ops, the TPU classifier, and the
// generic webhook trigger. Each file is grounded on its counterpart under
// original_source/ops/.
package ops

import "context"

// Echo is grounded on ops/echo.py: returns {"ok":true,"echo":payload}; a
// nil payload is echoed as an empty object.
func Echo(_ context.Context, payload map[string]any) (any, error) {
	if payload == nil {
		return map[string]any{"ok": true, "echo": map[string]any{}}, nil
	}
	return map[string]any{"ok": true, "echo": payload}, nil
}
