// Package attn implements a family of KV-cache sparsification strategies for
// transformer decoder attention, used to study inference-time
// efficiency/accuracy trade-offs.
//
// # Reading Guide
//
// Start with these three files to understand the core:
//   - attention.go: the Layer forward pass and per-policy mask dispatch
//   - incremental.go: the SnapKV/H2O active-set loops across prefill/decode
//   - cache.go: the append-only KV history and persisted eviction state
//
// # Architecture
//
// A Layer replaces one causal self-attention layer. Per forward call it
// projects Q/K/V, applies rotary embeddings supplied by the caller, appends
// to the Cache, builds a policy-specific selection mask on top of the causal
// mask, and runs masked softmax attention. Two regimes share one code path:
// full-sequence prefill (query length > 1) and single-token decode, with the
// SnapKV/H2O policies carrying their active-token sets between the two
// through the Cache.
//
// Policies form a closed enum (policy.go); selection machinery lives in
// mask.go (top-k ranking) and eviction.go (fixed-capacity active sets).
// Producer layers write importance scratch into a per-step StepContext
// (stack.go) that consumer layers read later in the same step, which is why
// layers must execute in index order.
//
// # Key entry points
//
//   - NewStack / Stack.Configure: build and bind a whole decoder's layers
//   - Layer.Forward: one prefill or decode step
//   - ScheduleAggression: per-layer drop fractions from a schedule name
//   - LoadSparsityBundle: YAML run configuration
//   - Layer.EffectiveSparsity / Layer.LastSelectionMask: diagnostics
package attn
