// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package task

import "errors"

var (
	errMissingJobID     = errors.New("task missing job id")
	errMissingOp        = errors.New("task missing op")
	errPayloadNotObject = errors.New("task payload not a JSON object")
)
