package trace

import (
	"time"

	"github.com/glasspane/glasspane/internal/shared/id"
)

// Kind classifies the cross-process operation a fragment belongs to.
type Kind string

const (
	KindInvoke         Kind = "invoke"
	KindEvent          Kind = "event"
	KindBroadcast      Kind = "broadcast"
	KindStreamInvoke   Kind = "streamInvoke"
	KindStreamUpload   Kind = "streamUpload"
	KindStreamDownload Kind = "streamDownload"
)

// Status is the outcome recorded on a fragment.
type Status string

const (
	StatusOK        Status = "ok"
	StatusError     Status = "error"
	StatusTimeout   Status = "timeout"
	StatusCancelled Status = "cancelled"
)

// Direction indicates which way a message crossed the process boundary,
// from the recording process's point of view.
type Direction string

const (
	DirectionOutbound Direction = "outbound"
	DirectionInbound  Direction = "inbound"
)

// Endpoint describes one side of a cross-process operation.
type Endpoint struct {
	WindowID   id.WindowID `json:"windowId,omitempty"`
	EndpointID uint32      `json:"endpointId,omitempty"`
	Role       string      `json:"role,omitempty"`
}

// Event is one observed lifecycle point of one cross-process operation:
// a span fragment. A span's start and end typically arrive as separate
// fragments and are merged later by grouping.
type Event struct {
	ID        id.FragmentID `json:"id"`
	Kind      Kind          `json:"kind"`
	Channel   string        `json:"channel"`
	Direction Direction     `json:"direction,omitempty"`
	Status    Status        `json:"status"`

	// Unix milliseconds. TSEnd and Duration are set only on fragments
	// that observed completion.
	TSStart  int64  `json:"tsStart"`
	TSEnd    *int64 `json:"tsEnd,omitempty"`
	Duration *int64 `json:"duration,omitempty"`

	Trace *Context `json:"trace,omitempty"`

	Source *Endpoint `json:"source,omitempty"`
	Target *Endpoint `json:"target,omitempty"`

	// Kind-specific previews: Request/Response/Error for invoke kinds,
	// Payload for event/broadcast kinds.
	Request  *Preview   `json:"request,omitempty"`
	Response *Preview   `json:"response,omitempty"`
	Error    *ErrorInfo `json:"error,omitempty"`
	Payload  *Preview   `json:"payload,omitempty"`

	// Streaming counters, per fragment.
	ChunkCount *int64 `json:"chunkCount,omitempty"`
	ByteCount  *int64 `json:"byteCount,omitempty"`

	// Capture sequence, stamped by the hub when the fragment is stored.
	// Consumers detect gaps from it; the pipe never reorders or
	// backfills.
	Seq uint64 `json:"seq,omitempty"`
}

// NewEvent builds a fragment stamped with a fresh id and the current time.
func NewEvent(kind Kind, channel string) Event {
	return Event{
		ID:      id.NewFragmentID(),
		Kind:    kind,
		Channel: channel,
		Status:  StatusOK,
		TSStart: time.Now().UnixMilli(),
	}
}

// Complete marks the event finished at ts, deriving its duration.
func (e *Event) Complete(ts int64) {
	e.TSEnd = &ts
	d := ts - e.TSStart
	e.Duration = &d
}
