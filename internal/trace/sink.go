package trace

import (
	"sync"

	"go.uber.org/zap"
)

// Sink receives fragments from instrumented call sites. The hub is the
// production implementation; tests install their own.
type Sink interface {
	Push(ev Event)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ev Event)

// Push implements Sink.
func (f SinkFunc) Push(ev Event) { f(ev) }

// nopSink discards everything. Call sites that never get a sink wired
// emit into this and pay one interface call.
type nopSink struct{}

func (nopSink) Push(Event) {}

var (
	sinkMu      sync.RWMutex
	defaultSink Sink = nopSink{}
	sinkLogger       = zap.NewNop()
)

// SetSink installs the process-wide sink. Wiring code calls this once
// at startup; tests pair it with ResetSink.
func SetSink(s Sink, logger *zap.Logger) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if s == nil {
		s = nopSink{}
	}
	defaultSink = s
	if logger != nil {
		sinkLogger = logger
	}
}

// ResetSink restores the disabled default. Test teardown calls this so
// one test's sink never leaks into the next.
func ResetSink() {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	defaultSink = nopSink{}
	sinkLogger = zap.NewNop()
}

// Emit hands a fragment to the process-wide sink. A panicking consumer
// is caught and logged here; tracing must never take down the host
// application. Reserved channels are dropped at this boundary too.
func Emit(ev Event) {
	if IsReserved(ev.Channel) {
		return
	}

	sinkMu.RLock()
	s := defaultSink
	logger := sinkLogger
	sinkMu.RUnlock()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("trace sink panicked",
				zap.Any("panic", r),
				zap.String("channel", ev.Channel),
				zap.String("fragment_id", string(ev.ID)),
			)
		}
	}()
	s.Push(ev)
}
