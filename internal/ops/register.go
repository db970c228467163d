// SPDX-FileCopyrightText: 2025 Jon Thor Kristinsson
// SPDX-License-Identifier: Apache-2.0

package ops

import "github.com/distributed-swarm/agent/internal/registry"

// RegisterAll registers every op handler this binary links against the
// registry's allow-list. Per spec.md §9's compile-time-registration design
// note, every handler is registered unconditionally here; reg's TASKS gate
// (not this function) decides which ones Resolve will actually hand out.
func RegisterAll(reg *registry.Registry) {
	reg.Register("echo", Echo)
	reg.Register("fibonacci", Fibonacci)
	reg.Register("prime_factor", PrimeFactor)
	reg.Register("subset_sum", SubsetSum)
	reg.Register("sat_verify", SatVerify)
	reg.Register("risk_accumulate", RiskAccumulate)
	reg.Register("map_tokenize", MapTokenize)
	reg.Register("map_summarize", MapSummarize)
	reg.Register("csv_shard", ReadCSVShard)
	reg.Register("read_csv_shard", ReadCSVShard)
	reg.Register("map_classify_tpu", MapClassifyTPU)
	reg.Register("trigger_webhook", TriggerWebhook)
}
