// Package module implements the per-session extension registry: typed
// plugins attached to a session that get first crack at inbound
// requests, in registration order, before a session's own
// RequestReceived fallback.
package module

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/coregx/conduit/packet"
)

// RequestArgs is passed to a Module's HandleRequest. Handled must be set
// to true if the module produced a response; a module that leaves
// Handled false is saying "not mine, try the next one".
type RequestArgs struct {
	Request  *packet.Request
	Response *packet.Response
	Handled  bool
}

// Module is a pluggable request handler attached to a Registry. Name
// identifies it for lookup and logging; Close releases any resources it
// holds when its owning session is closed.
type Module interface {
	Name() string
	HandleRequest(ctx context.Context, args *RequestArgs) error
	Close() error
}

// Registry holds the modules attached to one session, keyed both by
// concrete type (for Get[T]) and kept in registration order (for
// dispatch, which runs first-handler-wins).
type Registry struct {
	mu      sync.RWMutex
	byType  map[reflect.Type]Module
	ordered []Module
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byType: make(map[reflect.Type]Module)}
}

// Add registers m. Registering two modules of the same concrete type
// replaces the earlier one in byType but does not remove it from the
// dispatch order — callers should not register duplicates.
func (r *Registry) Add(m Module) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byType[reflect.TypeOf(m)] = m
	r.ordered = append(r.ordered, m)
}

// Get returns the registered module of concrete type T, or false if none
// is registered.
func Get[T Module](r *Registry) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var zero T
	m, ok := r.byType[reflect.TypeOf(zero)]
	if !ok {
		return zero, false
	}
	t, ok := m.(T)
	return t, ok
}

// Dispatch runs req through the registered modules in registration
// order, stopping at the first one that sets Handled. It returns the
// constructed Response and whether any module handled the request.
func (r *Registry) Dispatch(ctx context.Context, req *packet.Request) (*packet.Response, bool, error) {
	r.mu.RLock()
	modules := append([]Module(nil), r.ordered...)
	r.mu.RUnlock()

	args := &RequestArgs{Request: req, Response: &packet.Response{RequestID: req.RequestID, Status: packet.StatusOK}}
	for _, m := range modules {
		if err := m.HandleRequest(ctx, args); err != nil {
			return nil, false, fmt.Errorf("module %q: %w", m.Name(), err)
		}
		if args.Handled {
			return args.Response, true, nil
		}
	}
	return nil, false, nil
}

// Close releases every registered module, in registration order, and
// returns the first failure. One module's Close failing does not prevent
// the rest from running; later failures are not reported.
func (r *Registry) Close() error {
	r.mu.RLock()
	modules := append([]Module(nil), r.ordered...)
	r.mu.RUnlock()

	var firstErr error
	for _, m := range modules {
		if err := m.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("module %q: %w", m.Name(), err)
		}
	}
	return firstErr
}
