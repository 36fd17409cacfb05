package ws

import (
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/glasspane/glasspane/internal/endpoint"
	"github.com/glasspane/glasspane/internal/hub"
	"github.com/glasspane/glasspane/internal/shared/id"
)

// RoleViewer is the role viewer endpoints register under.
const RoleViewer = "viewer"

var nextEndpointID atomic.Uint32

// outbound is the wire shape of every server→client message.
type outbound struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// viewerEndpoint adapts one WebSocket connection to the endpoint
// interface the hub broadcasts through.
type viewerEndpoint struct {
	numID    uint32
	windowID id.WindowID
	conn     *websocket.Conn

	writeMu   sync.Mutex // gorilla allows one concurrent writer
	destroyed atomic.Bool

	goneMu sync.Mutex
	gone   []func()
}

func newViewerEndpoint(conn *websocket.Conn) *viewerEndpoint {
	return &viewerEndpoint{
		numID:    nextEndpointID.Add(1),
		windowID: id.NewWindowID(),
		conn:     conn,
	}
}

func (v *viewerEndpoint) ID() uint32            { return v.numID }
func (v *viewerEndpoint) WindowID() id.WindowID { return v.windowID }
func (v *viewerEndpoint) Role() string          { return RoleViewer }
func (v *viewerEndpoint) IsDestroyed() bool     { return v.destroyed.Load() }

// Deliver maps hub channels onto viewer message types and writes one
// frame. A write failure reports the endpoint gone; the hub cleans up.
func (v *viewerEndpoint) Deliver(msg endpoint.Message) error {
	if v.destroyed.Load() {
		return endpoint.ErrDestroyed
	}
	return v.write(outbound{Type: typeFor(msg.Channel), Payload: msg.Payload})
}

func (v *viewerEndpoint) OnGone(fn func()) {
	v.goneMu.Lock()
	if v.destroyed.Load() {
		v.goneMu.Unlock()
		fn()
		return
	}
	v.gone = append(v.gone, fn)
	v.goneMu.Unlock()
}

// destroy marks the endpoint dead and fires gone callbacks exactly once.
func (v *viewerEndpoint) destroy() {
	if !v.destroyed.CompareAndSwap(false, true) {
		return
	}
	v.goneMu.Lock()
	callbacks := v.gone
	v.gone = nil
	v.goneMu.Unlock()
	for _, fn := range callbacks {
		fn()
	}
}

func (v *viewerEndpoint) write(msg outbound) error {
	v.writeMu.Lock()
	defer v.writeMu.Unlock()
	return v.conn.WriteJSON(msg)
}

func typeFor(channel string) string {
	switch channel {
	case hub.ChannelInit:
		return "init"
	case hub.ChannelEvent:
		return "traceEvent"
	case hub.ChannelBatch:
		return "traceBatch"
	case hub.ChannelStatus:
		return "status"
	default:
		return channel
	}
}
