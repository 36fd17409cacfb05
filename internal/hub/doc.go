// Package hub implements the process-wide trace server.
//
// The hub exclusively owns the event ring buffer and the live viewer
// subscriber set. Instrumented call sites push fragments in; the hub
// stores them (counting overflow drops), hands them to the batcher, and
// fans flushed batches out to every subscriber. A control surface lets
// viewers pause, resume, clear, resize, change payload mode, and export
// a versioned snapshot.
//
// Message Channels (hub → subscriber, all under the reserved prefix):
//   - __trace:init: full buffer contents plus configuration
//   - __trace:event: one event, when a flush carries a single event
//   - __trace:batch: coalesced events
//   - __trace:status: configuration or lifecycle change
//
// Delivery rules:
//   - Subscribing never sends a snapshot; the viewer asks via SendInit
//     once it is ready to paint, avoiding a construction race.
//   - One subscriber's failure never aborts delivery to the rest;
//     failed subscribers are removed after the iteration completes.
package hub
