// Package action dispatches named automation actions against confirmed
// sessions. Each action type is a capability implementing Handler, selected
// from a lookup table, so adding new actions is additive.
package action

import (
	"errors"
	"fmt"
	"sync"

	"github.com/entrhq/sessiond/pkg/browser"
)

// Sentinel errors for action dispatch.
var (
	// ErrUnknownAction is returned for an unrecognized action type.
	ErrUnknownAction = errors.New("unknown action type")

	// ErrActionFailed wraps handler failures that do not match the
	// session-invalidation pattern. Typically transient; retry now.
	ErrActionFailed = errors.New("action failed")
)

// Handler performs one automated operation against an open browser page and
// returns a result payload.
type Handler interface {
	// Name is the action type this handler serves.
	Name() string

	// Perform runs the action with the given parameters.
	Perform(page browser.Page, data map[string]any) (map[string]any, error)
}

// Registry is the lookup table from action type to handler.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register adds a handler, replacing any existing handler of the same name.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Name()] = h
}

// Get returns the handler for an action type, or ErrUnknownAction.
func (r *Registry) Get(actionType string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[actionType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, actionType)
	}
	return h, nil
}

// Names returns the registered action types.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}
