package trace

import (
	"context"
	"time"
)

// Recorder captures the lifecycle of one instrumented call site. The
// generated call wrappers create one per traced operation, then settle
// it exactly once. Channels under the reserved prefix yield a disabled
// recorder, so the trace pipe never records itself.
type Recorder struct {
	ev       Event
	mode     PayloadMode
	maxBytes int
	disabled bool
	chunks   int64
	bytes    int64
}

// StartInvoke begins recording a request/response call. The returned
// context carries the derived child identity for downstream capture.
func StartInvoke(ctx context.Context, channel string, request any, mode PayloadMode, maxBytes int) (*Recorder, context.Context) {
	return start(ctx, KindInvoke, channel, request, mode, maxBytes)
}

// StartStream begins recording a chunked transfer of the given stream
// kind (streamInvoke, streamUpload, streamDownload).
func StartStream(ctx context.Context, kind Kind, channel string, request any, mode PayloadMode, maxBytes int) (*Recorder, context.Context) {
	return start(ctx, kind, channel, request, mode, maxBytes)
}

func start(ctx context.Context, kind Kind, channel string, request any, mode PayloadMode, maxBytes int) (*Recorder, context.Context) {
	if IsReserved(channel) {
		return &Recorder{disabled: true}, ctx
	}

	var tc Context
	if parent, ok := From(ctx); ok {
		tc = parent.Child()
	} else {
		tc = New()
	}

	r := &Recorder{mode: mode, maxBytes: maxBytes}
	r.ev = NewEvent(kind, channel)
	r.ev.Direction = DirectionOutbound
	r.ev.Trace = &tc
	if request != nil {
		r.ev.Request = NewPreview(request, mode, maxBytes)
	}
	Emit(r.ev)

	return r, With(ctx, tc)
}

// RecordEvent captures a one-way notification or broadcast in a single
// fragment; there is no later settlement.
func RecordEvent(ctx context.Context, kind Kind, channel string, payload any, mode PayloadMode, maxBytes int) {
	if IsReserved(channel) {
		return
	}
	ev := NewEvent(kind, channel)
	ev.Direction = DirectionOutbound
	if tc, ok := From(ctx); ok {
		ev.Trace = &tc
	}
	if payload != nil {
		ev.Payload = NewPreview(payload, mode, maxBytes)
	}
	ev.Complete(ev.TSStart)
	Emit(ev)
}

// Context returns the identity this recorder stamped on its fragments.
func (r *Recorder) Context() *Context {
	return r.ev.Trace
}

// AddChunk accounts one transferred chunk on a stream recorder.
func (r *Recorder) AddChunk(size int) {
	if r.disabled {
		return
	}
	r.chunks++
	r.bytes += int64(size)
}

// Succeed settles the operation with its response.
func (r *Recorder) Succeed(response any) {
	if r.disabled {
		return
	}
	ev := r.settled(StatusOK)
	if response != nil {
		ev.Response = NewPreview(response, r.mode, r.maxBytes)
	}
	Emit(ev)
}

// Fail settles the operation with a normalized error.
func (r *Recorder) Fail(err any) {
	if r.disabled {
		return
	}
	ev := r.settled(StatusError)
	ev.Error = NormalizeError(err)
	Emit(ev)
}

// Cancel settles the operation as cancelled.
func (r *Recorder) Cancel() {
	if r.disabled {
		return
	}
	Emit(r.settled(StatusCancelled))
}

func (r *Recorder) settled(status Status) Event {
	ev := NewEvent(r.ev.Kind, r.ev.Channel)
	ev.Direction = r.ev.Direction
	ev.Trace = r.ev.Trace
	ev.Status = status
	ev.TSStart = r.ev.TSStart
	ev.Complete(time.Now().UnixMilli())
	if r.chunks > 0 {
		chunks, bytes := r.chunks, r.bytes
		ev.ChunkCount = &chunks
		ev.ByteCount = &bytes
	}
	return ev
}
