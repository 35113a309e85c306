// Package registry maps stable identifiers to the state definitions that
// carry workflow transition code. Definitions are resolved at workflow build
// time, not per call.
package registry

import (
	"fmt"
	"sync"

	"workflows/internal/domain"
)

// Registry holds the constructed state definitions of a deployment.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]StateDefinition
}

func New() *Registry {
	return &Registry{defs: make(map[string]StateDefinition)}
}

// Register stores def under id. Registering the same id twice is an error.
func (r *Registry) Register(id string, def StateDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[id]; exists {
		return fmt.Errorf("state definition %q is already registered", id)
	}
	r.defs[id] = def
	return nil
}

// MustRegister panics on a duplicate id. Meant for wiring at startup.
func (r *Registry) MustRegister(id string, def StateDefinition) {
	if err := r.Register(id, def); err != nil {
		panic(err)
	}
}

// Definition resolves id to its registered definition.
func (r *Registry) Definition(id string) (StateDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	if !ok {
		return nil, &domain.GraphError{Reference: id, Reason: "no state definition registered"}
	}
	return def, nil
}
