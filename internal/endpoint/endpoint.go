// Package endpoint defines the message-passing participants the trace
// layer talks to, and a registry indexing them by id and role.
//
// The core never creates or destroys endpoints; the embedding
// application registers its windows here and removes them when they
// close. Delivery failures are treated as "endpoint gone" by callers.
package endpoint

import (
	"errors"
	"sync"

	"github.com/glasspane/glasspane/internal/shared/id"
)

// Delivery errors surfaced by Deliver implementations.
var (
	ErrDestroyed = errors.New("endpoint: destroyed")
	ErrNotFound  = errors.New("endpoint: not found")
)

// Message is an opaque named message. The transport delivers it
// at-most-once, in order per endpoint, with no retries.
type Message struct {
	Channel string `json:"channel"`
	Payload any    `json:"payload"`
}

// Endpoint is one addressable participant: the host or a UI window.
type Endpoint interface {
	// ID is a stable numeric identifier assigned by the provider.
	ID() uint32

	// WindowID is the window this endpoint belongs to.
	WindowID() id.WindowID

	// Role groups endpoints for routing purposes.
	Role() string

	// IsDestroyed reports whether the endpoint can no longer receive.
	IsDestroyed() bool

	// Deliver sends one message. A failed delivery means the endpoint
	// is gone; callers clean up rather than retry.
	Deliver(msg Message) error

	// OnGone registers fn to run when the endpoint is destroyed.
	// Registration after destruction fires fn immediately.
	OnGone(fn func())
}

// Registry indexes live endpoints. Safe for concurrent use.
type Registry struct {
	byID sync.Map // uint32 -> Endpoint
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an endpoint and removes it again when it goes away.
func (r *Registry) Register(ep Endpoint) {
	r.byID.Store(ep.ID(), ep)
	ep.OnGone(func() {
		r.byID.Delete(ep.ID())
	})
}

// Unregister removes an endpoint by id. Idempotent.
func (r *Registry) Unregister(endpointID uint32) {
	r.byID.Delete(endpointID)
}

// Get retrieves an endpoint by id.
func (r *Registry) Get(endpointID uint32) (Endpoint, bool) {
	val, ok := r.byID.Load(endpointID)
	if !ok {
		return nil, false
	}
	return val.(Endpoint), true
}

// ByWindow retrieves the endpoint registered for a window.
func (r *Registry) ByWindow(windowID id.WindowID) (Endpoint, bool) {
	var found Endpoint
	r.byID.Range(func(_, value any) bool {
		ep := value.(Endpoint)
		if ep.WindowID() == windowID {
			found = ep
			return false
		}
		return true
	})
	return found, found != nil
}

// ByRole retrieves an endpoint registered under a role, preferring live
// ones. Callers distinguish "none registered" from "registered but
// destroyed" by checking IsDestroyed on the result.
func (r *Registry) ByRole(role string) (Endpoint, bool) {
	var found Endpoint
	r.byID.Range(func(_, value any) bool {
		ep := value.(Endpoint)
		if ep.Role() != role {
			return true
		}
		found = ep
		return ep.IsDestroyed() // keep looking for a live one
	})
	return found, found != nil
}

// List returns all registered endpoints.
func (r *Registry) List() []Endpoint {
	var out []Endpoint
	r.byID.Range(func(_, value any) bool {
		out = append(out, value.(Endpoint))
		return true
	})
	return out
}
