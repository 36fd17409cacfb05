package trace

import (
	"context"
	"strings"

	"github.com/glasspane/glasspane/internal/shared/id"
)

// ReservedPrefix marks channels used by the trace pipe itself. Channels
// under this prefix are never traced, batched, or exported; tracing the
// trace channel would feed the pipe its own output.
const ReservedPrefix = "__trace"

// Context is the causal identity threaded across process boundaries.
// A root context has SpanID == TraceID and no parent; a child keeps the
// parent's TraceID, gets a fresh SpanID, and records the parent's SpanID.
type Context struct {
	TraceID      id.TraceID `json:"traceId"`
	SpanID       id.SpanID  `json:"spanId"`
	ParentSpanID id.SpanID  `json:"parentSpanId,omitempty"`
}

// New creates a root context.
func New() Context {
	tid := id.NewTraceID()
	return Context{
		TraceID: tid,
		SpanID:  id.SpanID(tid),
	}
}

// Child derives a child context from c.
func (c Context) Child() Context {
	return Context{
		TraceID:      c.TraceID,
		SpanID:       id.NewSpanID(),
		ParentSpanID: c.SpanID,
	}
}

// IsRoot reports whether c is a root context.
func (c Context) IsRoot() bool {
	return c.ParentSpanID == "" && string(c.SpanID) == string(c.TraceID)
}

// IsReserved reports whether a channel belongs to the trace pipe itself.
func IsReserved(channel string) bool {
	return strings.HasPrefix(channel, ReservedPrefix)
}

// Envelope carries a payload together with its trace context. The trace
// key is namespaced so enveloped and plain payloads can be told apart
// after a JSON round trip.
type Envelope struct {
	Payload any      `json:"payload"`
	Trace   *Context `json:"__traceCtx"`
}

// Wrap attaches a trace context to a payload. When tc is nil the payload
// is returned unchanged, so untraced calls pay nothing.
func Wrap(payload any, tc *Context) any {
	if tc == nil {
		return payload
	}
	return Envelope{Payload: payload, Trace: tc}
}

// Unwrap inverts Wrap. Plain (non-enveloped) values come back unchanged
// with a nil context. Envelopes that crossed a JSON boundary and decoded
// into maps are recognized too.
func Unwrap(v any) (any, *Context) {
	switch e := v.(type) {
	case Envelope:
		return e.Payload, e.Trace
	case *Envelope:
		if e == nil {
			return nil, nil
		}
		return e.Payload, e.Trace
	case map[string]any:
		raw, ok := e["__traceCtx"]
		if !ok {
			return v, nil
		}
		tc := contextFromMap(raw)
		if tc == nil {
			return v, nil
		}
		return e["payload"], tc
	default:
		return v, nil
	}
}

func contextFromMap(raw any) *Context {
	m, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	traceID, _ := m["traceId"].(string)
	spanID, _ := m["spanId"].(string)
	if traceID == "" || spanID == "" {
		return nil
	}
	tc := &Context{
		TraceID: id.TraceID(traceID),
		SpanID:  id.SpanID(spanID),
	}
	if parent, ok := m["parentSpanId"].(string); ok {
		tc.ParentSpanID = id.SpanID(parent)
	}
	return tc
}

// Context propagation.
//
// The current context rides on context.Context, Go's per-call-chain
// store, so concurrent chains never observe each other's identity. A
// package-level variable would leak across goroutines.

type ctxKey struct{}

// With returns a context.Context carrying tc.
func With(ctx context.Context, tc Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, tc)
}

// From retrieves the current trace context, if any.
func From(ctx context.Context) (Context, bool) {
	tc, ok := ctx.Value(ctxKey{}).(Context)
	return tc, ok
}

// Run executes fn with tc as the current context for fn's full extent,
// including everything fn spawns from the derived context.
func Run(ctx context.Context, tc Context, fn func(context.Context)) {
	fn(With(ctx, tc))
}
