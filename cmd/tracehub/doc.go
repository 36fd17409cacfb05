// Command tracehub runs the host-process side of the trace layer: the
// capture hub, the cross-window invoke router, and the viewer surface.
package main
