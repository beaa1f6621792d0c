package scripts

import (
	"context"
	"fmt"
	"sync"
)

// Registry is an in-process provider: script bodies are registered as unit
// factories under their reference. Every Load calls the factory again, so
// each execution gets its own Unit and object instances.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]func() *Unit
}

// NewRegistry creates an empty registry provider.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]func() *Unit)}
}

// Register binds a unit factory to a script reference, replacing any
// previous binding.
func (r *Registry) Register(scriptRef string, factory func() *Unit) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[scriptRef] = factory
}

// Load builds a fresh unit for the reference.
func (r *Registry) Load(_ context.Context, scriptRef string) (*Unit, error) {
	r.mu.RLock()
	factory, ok := r.factories[scriptRef]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrScriptNotFound, scriptRef)
	}

	return factory(), nil
}
