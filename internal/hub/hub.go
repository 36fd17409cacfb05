package hub

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/glasspane/glasspane/internal/batch"
	"github.com/glasspane/glasspane/internal/endpoint"
	"github.com/glasspane/glasspane/internal/monitoring"
	"github.com/glasspane/glasspane/internal/ring"
	"github.com/glasspane/glasspane/internal/shared/id"
	"github.com/glasspane/glasspane/internal/trace"
)

// Channels the hub delivers on. All reserved: the trace pipe never
// traces itself.
const (
	ChannelInit   = trace.ReservedPrefix + ":init"
	ChannelEvent  = trace.ReservedPrefix + ":event"
	ChannelBatch  = trace.ReservedPrefix + ":batch"
	ChannelStatus = trace.ReservedPrefix + ":status"
)

// Config holds hub construction parameters.
type Config struct {
	Capacity        int
	PayloadMode     trace.PayloadMode
	PreviewMaxBytes int
	Batch           batch.Config
}

// DefaultConfig returns production hub settings.
func DefaultConfig() Config {
	return Config{
		Capacity:        2000,
		PayloadMode:     trace.PayloadRedacted,
		PreviewMaxBytes: 16 * 1024,
		Batch:           batch.DefaultConfig(),
	}
}

// Status describes the hub's current configuration, broadcast to
// subscribers on every control change.
type Status struct {
	Paused          bool              `json:"paused"`
	PayloadMode     trace.PayloadMode `json:"payloadMode"`
	PreviewMaxBytes int               `json:"previewMaxBytes"`
	Capacity        int               `json:"capacity"`
	Count           int               `json:"count"`
	Dropped         uint64            `json:"dropped"`
	Subscribers     int               `json:"subscribers"`
}

// InitPayload is the deferred first delivery to a ready subscriber.
type InitPayload struct {
	Events []trace.Event `json:"events"`
	Status Status        `json:"status"`
}

// Hub is the trace server. Safe for concurrent use; it implements
// trace.Sink.
type Hub struct {
	mu      sync.Mutex
	buffer  *ring.Buffer[trace.Event]
	paused  bool
	dropped uint64
	seq     uint64
	mode    trace.PayloadMode
	maxPrev int
	subs    map[id.WindowID]endpoint.Endpoint

	batcher *batch.Batcher[trace.Event]
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// New creates a hub. Capacity below 1 is a construction error.
func New(cfg Config, logger *zap.Logger, metrics *monitoring.Metrics) (*Hub, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	buffer, err := ring.New[trace.Event](cfg.Capacity)
	if err != nil {
		return nil, fmt.Errorf("hub: %w", err)
	}

	h := &Hub{
		buffer:  buffer,
		mode:    cfg.PayloadMode,
		maxPrev: cfg.PreviewMaxBytes,
		subs:    make(map[id.WindowID]endpoint.Endpoint),
		logger:  logger,
		metrics: metrics,
	}

	h.batcher, err = batch.New[trace.Event](cfg.Batch, h.deliverBatch)
	if err != nil {
		return nil, fmt.Errorf("hub: %w", err)
	}
	return h, nil
}

// Push stores one fragment and schedules its delivery. A no-op while
// paused and for reserved channels. Each stored fragment is stamped
// with a monotonic capture sequence; consumers detect gaps from it.
func (h *Hub) Push(ev trace.Event) {
	if trace.IsReserved(ev.Channel) {
		return
	}

	h.mu.Lock()
	if h.paused {
		h.mu.Unlock()
		return
	}
	h.seq++
	ev.Seq = h.seq
	evicted := h.buffer.Push(ev)
	if evicted {
		h.dropped++
	}
	size := h.buffer.Len()
	h.mu.Unlock()

	h.metrics.RecordPush(string(ev.Kind), evicted)
	h.metrics.SetBufferSize(size)

	h.batcher.Add(ev)
}

// Subscribe registers a viewer window. Destroyed windows are ignored;
// live ones get an automatic unsubscribe on their gone notification.
// No snapshot is sent here: the viewer requests one via SendInit once
// it can paint.
func (h *Hub) Subscribe(ep endpoint.Endpoint) {
	if ep == nil || ep.IsDestroyed() {
		return
	}

	windowID := ep.WindowID()

	h.mu.Lock()
	h.subs[windowID] = ep
	count := len(h.subs)
	h.mu.Unlock()

	ep.OnGone(func() {
		h.Unsubscribe(windowID)
	})

	h.metrics.SetSubscribers(count)
	h.logger.Info("viewer subscribed",
		zap.String("window_id", string(windowID)),
		zap.Int("subscribers", count),
	)
}

// Unsubscribe removes a viewer window. Idempotent: the gone
// notification and an explicit unsubscribe can race.
func (h *Hub) Unsubscribe(windowID id.WindowID) {
	h.mu.Lock()
	_, existed := h.subs[windowID]
	delete(h.subs, windowID)
	count := len(h.subs)
	h.mu.Unlock()

	if existed {
		h.metrics.SetSubscribers(count)
		h.logger.Info("viewer unsubscribed",
			zap.String("window_id", string(windowID)),
			zap.Int("subscribers", count),
		)
	}
}

// SubscriberCount returns the number of live subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// SendInit delivers the full buffer contents and current configuration
// to one subscriber.
func (h *Hub) SendInit(windowID id.WindowID) error {
	h.mu.Lock()
	ep, ok := h.subs[windowID]
	payload := InitPayload{
		Events: h.buffer.All(),
		Status: h.statusLocked(),
	}
	h.mu.Unlock()

	if !ok {
		return fmt.Errorf("hub: window %s is not subscribed", windowID)
	}
	if err := ep.Deliver(endpoint.Message{Channel: ChannelInit, Payload: payload}); err != nil {
		h.Unsubscribe(windowID)
		return fmt.Errorf("hub: init delivery failed: %w", err)
	}
	return nil
}

// Pause stops capture. Pushed events are discarded until Resume.
func (h *Hub) Pause() {
	h.mu.Lock()
	h.paused = true
	h.mu.Unlock()
	h.broadcastStatus()
}

// Resume restarts capture.
func (h *Hub) Resume() {
	h.mu.Lock()
	h.paused = false
	h.mu.Unlock()
	h.broadcastStatus()
}

// Clear discards all buffered and pending events.
func (h *Hub) Clear() {
	h.mu.Lock()
	h.buffer.Clear()
	h.dropped = 0
	h.mu.Unlock()

	h.batcher.Clear()
	h.metrics.SetBufferSize(0)
	h.broadcastStatus()
}

// SetPayloadMode switches how much payload data future events carry.
func (h *Hub) SetPayloadMode(mode trace.PayloadMode) {
	h.mu.Lock()
	h.mode = mode
	h.mu.Unlock()
	h.broadcastStatus()
}

// PayloadMode returns the active payload mode.
func (h *Hub) PayloadMode() trace.PayloadMode {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mode
}

// PreviewMaxBytes returns the full-preview byte cap.
func (h *Hub) PreviewMaxBytes() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.maxPrev
}

// SetBufferSize reallocates the ring buffer. Existing history is
// discarded; resizing is a destructive, explicit operation.
func (h *Hub) SetBufferSize(n int) error {
	buffer, err := ring.New[trace.Event](n)
	if err != nil {
		return fmt.Errorf("hub: %w", err)
	}

	h.mu.Lock()
	h.buffer = buffer
	h.dropped = 0
	h.mu.Unlock()

	h.metrics.SetBufferSize(0)
	h.broadcastStatus()
	return nil
}

// Status returns the current configuration and counters.
func (h *Hub) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.statusLocked()
}

// statusLocked builds a Status. Caller holds mu.
func (h *Hub) statusLocked() Status {
	return Status{
		Paused:          h.paused,
		PayloadMode:     h.mode,
		PreviewMaxBytes: h.maxPrev,
		Capacity:        h.buffer.Cap(),
		Count:           h.buffer.Len(),
		Dropped:         h.dropped,
		Subscribers:     len(h.subs),
	}
}

// Dropped returns the cumulative overflow count.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Events returns the buffered events oldest to newest.
func (h *Hub) Events() []trace.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.buffer.All()
}

// Flush forces pending batched events out now.
func (h *Hub) Flush() {
	h.batcher.Flush()
}

// deliverBatch is the batcher's flush callback.
func (h *Hub) deliverBatch(events []trace.Event) {
	h.metrics.RecordBatch(len(events))

	if len(events) == 1 {
		h.broadcast(endpoint.Message{Channel: ChannelEvent, Payload: events[0]})
		return
	}
	h.broadcast(endpoint.Message{Channel: ChannelBatch, Payload: events})
}

func (h *Hub) broadcastStatus() {
	h.mu.Lock()
	status := h.statusLocked()
	h.mu.Unlock()
	h.broadcast(endpoint.Message{Channel: ChannelStatus, Payload: status})
}

// broadcast delivers msg to every live subscriber. Failures and
// destroyed windows are collected during iteration and removed only
// after it completes; one bad subscriber never blocks the rest.
func (h *Hub) broadcast(msg endpoint.Message) {
	h.mu.Lock()
	snapshot := make(map[id.WindowID]endpoint.Endpoint, len(h.subs))
	for windowID, ep := range h.subs {
		snapshot[windowID] = ep
	}
	h.mu.Unlock()

	var failed []id.WindowID
	for windowID, ep := range snapshot {
		if ep.IsDestroyed() {
			failed = append(failed, windowID)
			continue
		}
		if err := ep.Deliver(msg); err != nil {
			h.logger.Warn("subscriber delivery failed",
				zap.String("window_id", string(windowID)),
				zap.String("channel", msg.Channel),
				zap.Error(err),
			)
			failed = append(failed, windowID)
		}
	}

	for _, windowID := range failed {
		h.Unsubscribe(windowID)
	}
}
