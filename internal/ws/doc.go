// Package ws attaches viewer windows to the trace hub over WebSocket.
//
// A connected viewer becomes a live subscriber endpoint: the hub's
// batched events, status updates, and init snapshot are written to the
// socket, and the viewer drives the control surface through inbound
// messages.
//
// Message Types (Client → Server):
//   - requestInit: ask for the buffer snapshot once ready to paint
//   - command: control command (clear, pause, resume, setPayloadMode,
//     setBufferSize, export)
//   - ping: keep-alive ping
//
// Message Types (Server → Client):
//   - init: buffer snapshot plus configuration
//   - traceEvent: one trace event
//   - traceBatch: coalesced trace events
//   - status: configuration or lifecycle change
//   - commandResult: result of a control command
//   - error: command failed; carries the reason string
//
// Example Usage:
//
//	handler := ws.NewHandler(hub, router, registry, logger, metrics)
//	engine.GET("/ws/trace", handler.HandleConnection)
package ws
