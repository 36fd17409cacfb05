package trace

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
)

func captureEvents(t *testing.T) *[]Event {
	t.Helper()
	var got []Event
	SetSink(SinkFunc(func(ev Event) { got = append(got, ev) }), zap.NewNop())
	t.Cleanup(ResetSink)
	return &got
}

func TestInvokeLifecycle(t *testing.T) {
	got := captureEvents(t)

	r, ctx := StartInvoke(context.Background(), "doc:open", map[string]any{"path": "/x"}, PayloadRedacted, 1024)
	r.Succeed("opened")

	if len(*got) != 2 {
		t.Fatalf("expected start + settled, got %d", len(*got))
	}

	start, settled := (*got)[0], (*got)[1]
	if start.Kind != KindInvoke || start.TSEnd != nil || start.Request == nil {
		t.Errorf("start fragment wrong: %+v", start)
	}
	if settled.Status != StatusOK || settled.TSEnd == nil || settled.Response == nil {
		t.Errorf("settled fragment wrong: %+v", settled)
	}
	if start.Trace == nil || settled.Trace == nil || start.Trace.SpanID != settled.Trace.SpanID {
		t.Error("fragments must share one span identity")
	}

	// The derived context is available downstream.
	tc, ok := From(ctx)
	if !ok || tc.SpanID != start.Trace.SpanID {
		t.Error("returned context should carry the recorder's span")
	}
}

func TestInvokeDerivesChild(t *testing.T) {
	got := captureEvents(t)

	root := New()
	ctx := With(context.Background(), root)
	r, _ := StartInvoke(ctx, "doc:open", nil, PayloadNone, 0)
	r.Fail(errors.New("boom"))

	start := (*got)[0]
	if start.Trace.TraceID != root.TraceID {
		t.Error("recorder must stay in the caller's trace")
	}
	if start.Trace.ParentSpanID != root.SpanID {
		t.Error("recorder span must be a child of the caller's span")
	}

	settled := (*got)[1]
	if settled.Status != StatusError || settled.Error == nil || settled.Error.Message != "boom" {
		t.Errorf("failure fragment wrong: %+v", settled)
	}
}

func TestReservedChannelRecordsNothing(t *testing.T) {
	got := captureEvents(t)

	r, _ := StartInvoke(context.Background(), ReservedPrefix+":batch", nil, PayloadFull, 1024)
	r.Succeed(nil)
	RecordEvent(context.Background(), KindEvent, ReservedPrefix+":status", "x", PayloadFull, 1024)

	if len(*got) != 0 {
		t.Errorf("reserved channels must record nothing, got %d fragments", len(*got))
	}
}

func TestStreamCounters(t *testing.T) {
	got := captureEvents(t)

	r, _ := StartStream(context.Background(), KindStreamUpload, "file:upload", nil, PayloadNone, 0)
	r.AddChunk(1000)
	r.AddChunk(500)
	r.AddChunk(250)
	r.Succeed(nil)

	settled := (*got)[1]
	if settled.Kind != KindStreamUpload {
		t.Errorf("kind = %s", settled.Kind)
	}
	if settled.ChunkCount == nil || *settled.ChunkCount != 3 {
		t.Errorf("ChunkCount = %v, want 3", settled.ChunkCount)
	}
	if settled.ByteCount == nil || *settled.ByteCount != 1750 {
		t.Errorf("ByteCount = %v, want 1750", settled.ByteCount)
	}
}

func TestRecordEventSingleFragment(t *testing.T) {
	got := captureEvents(t)

	RecordEvent(context.Background(), KindBroadcast, "theme:changed", map[string]any{"theme": "dark"}, PayloadRedacted, 1024)

	if len(*got) != 1 {
		t.Fatalf("expected 1 fragment, got %d", len(*got))
	}
	ev := (*got)[0]
	if ev.Kind != KindBroadcast || ev.TSEnd == nil || ev.Payload == nil {
		t.Errorf("broadcast fragment wrong: %+v", ev)
	}
	if ev.Trace != nil {
		t.Error("untraced broadcast should carry no context")
	}
}

func TestCancel(t *testing.T) {
	got := captureEvents(t)

	r, _ := StartInvoke(context.Background(), "doc:open", nil, PayloadNone, 0)
	r.Cancel()

	if (*got)[1].Status != StatusCancelled {
		t.Errorf("status = %s, want cancelled", (*got)[1].Status)
	}
}
