package trace

import (
	"testing"

	"go.uber.org/zap"
)

func TestEmitWithoutSinkIsNoop(t *testing.T) {
	ResetSink()
	Emit(NewEvent(KindEvent, "app:event")) // must not panic
}

func TestEmitDelivers(t *testing.T) {
	var got []Event
	SetSink(SinkFunc(func(ev Event) { got = append(got, ev) }), zap.NewNop())
	defer ResetSink()

	Emit(NewEvent(KindEvent, "app:event"))

	if len(got) != 1 {
		t.Fatalf("expected 1 event, got %d", len(got))
	}
	if got[0].Channel != "app:event" {
		t.Errorf("channel = %s", got[0].Channel)
	}
}

func TestEmitDropsReservedChannels(t *testing.T) {
	var got []Event
	SetSink(SinkFunc(func(ev Event) { got = append(got, ev) }), zap.NewNop())
	defer ResetSink()

	Emit(NewEvent(KindEvent, ReservedPrefix+":batch"))

	if len(got) != 0 {
		t.Error("reserved channels must never reach the sink")
	}
}

func TestEmitIsolatesPanickingSink(t *testing.T) {
	SetSink(SinkFunc(func(Event) { panic("consumer bug") }), zap.NewNop())
	defer ResetSink()

	Emit(NewEvent(KindEvent, "app:event")) // must not propagate

	// The process keeps tracing after a sink failure.
	var got []Event
	SetSink(SinkFunc(func(ev Event) { got = append(got, ev) }), zap.NewNop())
	Emit(NewEvent(KindEvent, "app:event"))
	if len(got) != 1 {
		t.Error("tracing should survive a sink panic")
	}
}

func TestResetSinkRestoresDisabled(t *testing.T) {
	delivered := false
	SetSink(SinkFunc(func(Event) { delivered = true }), nil)
	ResetSink()

	Emit(NewEvent(KindEvent, "app:event"))

	if delivered {
		t.Error("ResetSink should restore the disabled default")
	}
}

func TestEventComplete(t *testing.T) {
	ev := NewEvent(KindInvoke, "app:query")
	ev.TSStart = 100

	ev.Complete(250)

	if ev.TSEnd == nil || *ev.TSEnd != 250 {
		t.Fatalf("TSEnd = %v, want 250", ev.TSEnd)
	}
	if ev.Duration == nil || *ev.Duration != 150 {
		t.Errorf("Duration = %v, want 150", ev.Duration)
	}
}
