// SPDX-License-Identifier: MPL-2.0

package process

import (
	"errors"
	"fmt"
	"sync"
)

// DefaultShutdownRegistry collects the hooks of daemons started by this
// program. Call Shutdown before exiting.
var DefaultShutdownRegistry = NewShutdownRegistry()

type (
	// ShutdownHook stops one daemon.
	ShutdownHook func() error

	// ShutdownRegistry holds shutdown hooks keyed by execution id. It is safe
	// for concurrent use.
	ShutdownRegistry struct {
		mu    sync.Mutex
		hooks map[string]ShutdownHook
		order []string
	}
)

// NewShutdownRegistry creates an empty registry.
func NewShutdownRegistry() *ShutdownRegistry {
	return &ShutdownRegistry{hooks: make(map[string]ShutdownHook)}
}

// Register adds hook under id. It returns false when id is already taken.
func (r *ShutdownRegistry) Register(id string, hook ShutdownHook) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.hooks[id]; exists {
		return false
	}
	r.hooks[id] = hook
	r.order = append(r.order, id)
	return true
}

// Unregister removes the hook registered under id without running it.
func (r *ShutdownRegistry) Unregister(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.hooks[id]; !exists {
		return false
	}
	delete(r.hooks, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Registered reports whether a hook is registered under id.
func (r *ShutdownRegistry) Registered(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.hooks[id]
	return exists
}

// Len returns the number of pending hooks.
func (r *ShutdownRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hooks)
}

// Shutdown empties the registry and runs every hook once, newest first.
// Hook errors are joined; a failing hook does not stop the others.
func (r *ShutdownRegistry) Shutdown() error {
	r.mu.Lock()
	hooks := r.hooks
	order := r.order
	r.hooks = make(map[string]ShutdownHook)
	r.order = nil
	r.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		id := order[i]
		if err := hooks[id](); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// Shutdown runs the hooks of DefaultShutdownRegistry.
func Shutdown() error {
	return DefaultShutdownRegistry.Shutdown()
}
