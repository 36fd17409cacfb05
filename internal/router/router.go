// Package router mediates peer-to-peer RPC between UI windows.
//
// A window cannot address a sibling directly; it asks the host process
// to route the call to whichever endpoint holds the target role. The
// router keeps a timeout-bound pending table keyed by correlation id:
// an entry is removed by the first of matching response, timeout, or
// explicit cleanup, and the caller's result handle settles exactly
// once. State transitions carrying a trace context emit fragments into
// the hub sink, so routed calls show up in the same causal view as
// everything else.
package router

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/glasspane/glasspane/internal/endpoint"
	"github.com/glasspane/glasspane/internal/monitoring"
	"github.com/glasspane/glasspane/internal/shared/id"
	"github.com/glasspane/glasspane/internal/trace"
)

// Routing failures, surfaced synchronously to the caller.
var (
	ErrSourceUnresolvable = errors.New("router: source window has no endpoint")
	ErrNoTargetRole       = errors.New("router: no endpoint registered for role")
	ErrTargetDestroyed    = errors.New("router: target endpoint is destroyed")
	ErrTimeout            = errors.New("router: invocation timed out")
	ErrCancelled          = errors.New("router: invocation cancelled")
)

// InvokeEnvelope is what the target window receives on the invoked
// channel. Request carries the caller's payload, trace-wrapped when a
// context was present.
type InvokeEnvelope struct {
	CorrelationID  id.CorrelationID `json:"correlationId"`
	Request        any              `json:"request"`
	SourceWindowID id.WindowID      `json:"sourceWindowId"`
	SourceRole     string           `json:"sourceRole"`
}

// ResponseEnvelope is what the target window sends back.
type ResponseEnvelope struct {
	CorrelationID id.CorrelationID `json:"correlationId"`
	Payload       any              `json:"payload,omitempty"`
	Error         *trace.ErrorInfo `json:"error,omitempty"`
}

// Result is the settled outcome of a routed call.
type Result struct {
	Value any
	Err   error
}

// Call is the asynchronous handle returned by Route. It settles exactly
// once, through HandleResponse or the timeout timer.
type Call struct {
	CorrelationID id.CorrelationID
	done          chan Result
}

// Done returns a channel that receives the single settled result.
func (c *Call) Done() <-chan Result { return c.done }

// Await blocks for settlement or caller context cancellation. The
// pending entry is untouched on ctx cancellation; the timeout timer
// still owns cleanup.
func (c *Call) Await(ctx context.Context) (any, error) {
	select {
	case res := <-c.done:
		return res.Value, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// PreviewPolicy supplies the payload preview settings events carry.
// The hub satisfies this.
type PreviewPolicy interface {
	PayloadMode() trace.PayloadMode
	PreviewMaxBytes() int
}

type pendingInvocation struct {
	corrID       id.CorrelationID
	call         *Call
	timer        *time.Timer
	sourceWindow id.WindowID
	channel      string
	targetRole   string
	start        time.Time
	tc           *trace.Context
	target       *trace.Endpoint
	source       *trace.Endpoint
}

// DefaultTimeout bounds invocations routed without an explicit timeout.
const DefaultTimeout = 30 * time.Second

// Router routes invocations between window endpoints. Safe for
// concurrent use.
type Router struct {
	mu      sync.Mutex
	pending map[id.CorrelationID]*pendingInvocation

	registry       *endpoint.Registry
	sink           trace.Sink
	policy         PreviewPolicy
	logger         *zap.Logger
	metrics        *monitoring.Metrics
	defaultTimeout time.Duration
}

// New creates a router. sink and policy may be nil; routing then works
// untraced.
func New(registry *endpoint.Registry, sink trace.Sink, policy PreviewPolicy, logger *zap.Logger, metrics *monitoring.Metrics) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		pending:        make(map[id.CorrelationID]*pendingInvocation),
		registry:       registry,
		sink:           sink,
		policy:         policy,
		logger:         logger,
		metrics:        metrics,
		defaultTimeout: DefaultTimeout,
	}
}

// SetDefaultTimeout replaces the timeout applied when Route is called
// with a non-positive one. Non-positive values are ignored.
func (r *Router) SetDefaultTimeout(d time.Duration) {
	if d <= 0 {
		return
	}
	r.mu.Lock()
	r.defaultTimeout = d
	r.mu.Unlock()
}

// PendingCount returns the number of unsettled invocations.
func (r *Router) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Route forwards a request from sourceWindow to the endpoint holding
// targetRole. Resolution failures return synchronously; otherwise the
// returned Call settles on response or timeout. A non-positive timeout
// uses the router default.
func (r *Router) Route(ctx context.Context, sourceWindow id.WindowID, targetRole, channel string, request any, timeout time.Duration) (*Call, error) {
	if timeout <= 0 {
		r.mu.Lock()
		timeout = r.defaultTimeout
		r.mu.Unlock()
	}

	source, ok := r.registry.ByWindow(sourceWindow)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSourceUnresolvable, sourceWindow)
	}

	target, ok := r.registry.ByRole(targetRole)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoTargetRole, targetRole)
	}
	if target.IsDestroyed() {
		return nil, fmt.Errorf("%w: role %q", ErrTargetDestroyed, targetRole)
	}

	corrID := id.NewCorrelationID()
	p := &pendingInvocation{
		corrID:       corrID,
		call:         &Call{CorrelationID: corrID, done: make(chan Result, 1)},
		sourceWindow: sourceWindow,
		channel:      channel,
		targetRole:   targetRole,
		start:        time.Now(),
		source:       describe(source),
		target:       describe(target),
	}

	wire := request
	if tc, traced := trace.From(ctx); traced {
		child := tc.Child()
		p.tc = &child
		wire = trace.Wrap(request, &child)
	}

	p.timer = time.AfterFunc(timeout, func() { r.expire(corrID) })

	r.mu.Lock()
	r.pending[corrID] = p
	count := len(r.pending)
	r.mu.Unlock()
	r.metrics.SetPending(count)

	r.emitStart(p, request)

	err := target.Deliver(endpoint.Message{
		Channel: channel,
		Payload: InvokeEnvelope{
			CorrelationID:  corrID,
			Request:        wire,
			SourceWindowID: sourceWindow,
			SourceRole:     source.Role(),
		},
	})
	if err != nil {
		// Failed delivery means the endpoint is gone; the entry must
		// not sit around waiting for its timer.
		p.timer.Stop()
		r.remove(corrID)
		r.emitSettled(p, trace.StatusError, trace.NormalizeError(err))
		return nil, fmt.Errorf("%w: role %q: %v", ErrTargetDestroyed, targetRole, err)
	}

	return p.call, nil
}

// HandleResponse settles the pending entry matching the envelope's
// correlation id. Unknown ids are a silent no-op: the call already
// timed out, or this is a duplicate or late arrival.
func (r *Router) HandleResponse(env ResponseEnvelope) {
	p := r.remove(env.CorrelationID)
	if p == nil {
		return
	}
	p.timer.Stop()

	if env.Error != nil {
		r.emitSettled(p, trace.StatusError, env.Error)
		r.metrics.RecordRoute("error", time.Since(p.start))
		p.call.done <- Result{Err: env.Error}
		return
	}

	payload, _ := trace.Unwrap(env.Payload)
	r.emitSettledWithResponse(p, payload)
	r.metrics.RecordRoute("ok", time.Since(p.start))
	p.call.done <- Result{Value: payload}
}

// CleanupWindow cancels every pending invocation originating from a
// window, typically because it closed mid-flight.
func (r *Router) CleanupWindow(windowID id.WindowID) {
	r.mu.Lock()
	var victims []*pendingInvocation
	for corrID, p := range r.pending {
		if p.sourceWindow == windowID {
			victims = append(victims, p)
			delete(r.pending, corrID)
		}
	}
	count := len(r.pending)
	r.mu.Unlock()
	r.metrics.SetPending(count)

	for _, p := range victims {
		p.timer.Stop()
		r.emitSettled(p, trace.StatusCancelled, nil)
		r.metrics.RecordRoute("cancelled", time.Since(p.start))
		p.call.done <- Result{Err: fmt.Errorf("%w: source window %s closed", ErrCancelled, windowID)}
	}
}

// expire is the timer path. A response that beat the timer already
// removed the entry, making this a no-op.
func (r *Router) expire(corrID id.CorrelationID) {
	p := r.remove(corrID)
	if p == nil {
		return
	}

	r.logger.Warn("routed invocation timed out",
		zap.String("correlation_id", string(corrID)),
		zap.String("channel", p.channel),
		zap.String("target_role", p.targetRole),
	)
	r.emitSettled(p, trace.StatusTimeout, nil)
	r.metrics.RecordRoute("timeout", time.Since(p.start))
	p.call.done <- Result{Err: fmt.Errorf("%w: %s after %v", ErrTimeout, p.channel, time.Since(p.start).Round(time.Millisecond))}
}

func (r *Router) remove(corrID id.CorrelationID) *pendingInvocation {
	r.mu.Lock()
	p, ok := r.pending[corrID]
	if ok {
		delete(r.pending, corrID)
	}
	count := len(r.pending)
	r.mu.Unlock()

	if !ok {
		return nil
	}
	r.metrics.SetPending(count)
	return p
}

func describe(ep endpoint.Endpoint) *trace.Endpoint {
	return &trace.Endpoint{
		WindowID:   ep.WindowID(),
		EndpointID: ep.ID(),
		Role:       ep.Role(),
	}
}

// Trace emission. Only transitions with a context present are recorded.

func (r *Router) preview(v any) *trace.Preview {
	mode := trace.PayloadRedacted
	maxBytes := 16 * 1024
	if r.policy != nil {
		mode = r.policy.PayloadMode()
		maxBytes = r.policy.PreviewMaxBytes()
	}
	return trace.NewPreview(v, mode, maxBytes)
}

func (r *Router) emitStart(p *pendingInvocation, request any) {
	if p.tc == nil || r.sink == nil {
		return
	}
	ev := trace.NewEvent(trace.KindInvoke, p.channel)
	ev.Direction = trace.DirectionOutbound
	ev.Trace = p.tc
	ev.Source = p.source
	ev.Target = p.target
	ev.TSStart = p.start.UnixMilli()
	ev.Request = r.preview(request)
	r.sink.Push(ev)
}

func (r *Router) emitSettled(p *pendingInvocation, status trace.Status, errInfo *trace.ErrorInfo) {
	if p.tc == nil || r.sink == nil {
		return
	}
	ev := trace.NewEvent(trace.KindInvoke, p.channel)
	ev.Direction = trace.DirectionOutbound
	ev.Trace = p.tc
	ev.Source = p.source
	ev.Target = p.target
	ev.Status = status
	ev.TSStart = p.start.UnixMilli()
	ev.Error = errInfo
	ev.Complete(time.Now().UnixMilli())
	r.sink.Push(ev)
}

func (r *Router) emitSettledWithResponse(p *pendingInvocation, response any) {
	if p.tc == nil || r.sink == nil {
		return
	}
	ev := trace.NewEvent(trace.KindInvoke, p.channel)
	ev.Direction = trace.DirectionOutbound
	ev.Trace = p.tc
	ev.Source = p.source
	ev.Target = p.target
	ev.TSStart = p.start.UnixMilli()
	ev.Response = r.preview(response)
	ev.Complete(time.Now().UnixMilli())
	r.sink.Push(ev)
}
