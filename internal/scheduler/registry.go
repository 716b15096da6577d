package scheduler

import (
	"context"
	"fmt"
	"sync"
)

// Handler executes one job of a given kind. Implementations must be
// idempotent: at-least-once delivery means the same payload may run twice
// (e.g. after a lease steal). Handlers must honor ctx's deadline.
type Handler func(ctx context.Context, payload []byte) error

// Registry is the process-wide kind -> Handler mapping. Registration
// happens at process start; reads are lock-free in practice since writes
// only occur during startup wiring, but the mutex keeps concurrent
// registration safe for tests that build a Registry incrementally.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register associates kind with handler. Re-registering a kind overwrites
// the previous handler — callers should register each kind once at startup.
func (r *Registry) Register(kind string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[kind] = handler
}

// ErrUnknownKind is the sentinel last_error text for dispatch against an
// unregistered kind (spec.md §4.4: "terminal failure with last_error =
// unknown kind").
const ErrUnknownKindMessage = "unknown kind"

// Lookup returns the handler for kind, or an error if none is registered.
func (r *Registry) Lookup(kind string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[kind]
	if !ok {
		return nil, fmt.Errorf(ErrUnknownKindMessage)
	}
	return h, nil
}

// Has reports whether kind is registered, used by the Job API's schedule()
// precondition check.
func (r *Registry) Has(kind string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[kind]
	return ok
}
