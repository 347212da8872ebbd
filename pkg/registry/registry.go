package registry

import (
	"fmt"
	"sync"

	"github.com/aretw0/venueflow/pkg/domain"
)

// Registry manages the stage handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[domain.StageType]Handler
}

// NewRegistry creates a registry with the given handlers.
func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{
		handlers: make(map[domain.StageType]Handler),
	}
	for _, h := range handlers {
		r.Register(h)
	}
	return r
}

// Register adds a handler to the registry.
// If a handler for the same stage exists, it is overwritten.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Stage()] = h
}

// Lookup returns the handler of a stage.
func (r *Registry) Lookup(stage domain.StageType) (Handler, error) {
	r.mu.RLock()
	h, ok := r.handlers[stage]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: no handler for %s", domain.ErrUnknownStage, stage)
	}
	return h, nil
}

// Handlers returns the registered handlers in workflow order.
func (r *Registry) Handlers() []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Handler, 0, len(r.handlers))
	for _, st := range domain.StageTypes() {
		if h, ok := r.handlers[st]; ok {
			out = append(out, h)
		}
	}
	return out
}
