// Package trace provides causal identity and capture primitives for the
// cross-process message layer.
//
// This package implements the leaf utilities every instrumented call site
// uses: trace/span context creation and propagation, transparent payload
// enveloping, bounded-cost payload size estimation and previews, error
// normalization, and the sink port trace producers emit into.
//
// Features:
//   - Root and child context derivation (traceId/spanId/parentSpanId)
//   - Zero-cost payload wrapping when no context is present
//   - Context propagation on context.Context across async boundaries
//   - Sampling-based size estimation that never serializes huge payloads
//   - Payload previews: none, redacted summary, or size-capped full value
//   - Reserved channel prefix so the trace pipe never traces itself
//
// Example Usage:
//
//	tc := trace.New()
//	wire := trace.Wrap(payload, &tc)
//	...
//	payload, got := trace.Unwrap(wire)
package trace
