package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/venueflow/pkg/domain"
)

// Function is a process hook run when a record is submitted against a definition.
// It receives the definition's versioned configuration and the submitted note.
type Function func(ctx context.Context, config map[string]any, note domain.Note) (any, error)

// Functions manages the process functions definitions may reference.
type Functions struct {
	mu    sync.RWMutex
	funcs map[string]Function
}

// NewFunctions creates a new empty function registry.
func NewFunctions() *Functions {
	return &Functions{
		funcs: make(map[string]Function),
	}
}

func functionKey(name string, version int) string {
	return fmt.Sprintf("%s@v%d", name, version)
}

// Register adds a function under name and version.
// If a function with the same key exists, it is overwritten.
func (f *Functions) Register(name string, version int, fn Function) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.funcs[functionKey(name, version)] = fn
}

// Has reports whether ref is registered.
func (f *Functions) Has(ref domain.FunctionRef) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.funcs[functionKey(ref.Name, ref.Version)]
	return ok
}

// Names lists the registered keys.
func (f *Functions) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]string, 0, len(f.funcs))
	for k := range f.funcs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Execute looks up a function by reference and executes it.
// Returns an error if the function is not found.
func (f *Functions) Execute(ctx context.Context, ref domain.FunctionRef, note domain.Note) (any, error) {
	f.mu.RLock()
	fn, ok := f.funcs[functionKey(ref.Name, ref.Version)]
	f.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("function not found: %s", functionKey(ref.Name, ref.Version))
	}

	return fn(ctx, domain.CloneContent(ref.Config), note)
}
