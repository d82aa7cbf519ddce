package executor

import (
	"fmt"
	"sync"
)

// Registry manages the collection of available executors and implements the
// resolution order used by the scheduler: explicit hint first, then the
// configured default ordering, then the designated primary.
type Registry struct {
	mu           sync.RWMutex
	executors    map[string]Executor
	defaultOrder []string
	primary      string
}

// NewRegistry creates an empty registry with the given default resolution
// order. The order may name executors that are never registered; they are
// skipped during resolution.
func NewRegistry(defaultOrder []string) *Registry {
	return &Registry{
		executors:    make(map[string]Executor),
		defaultOrder: defaultOrder,
	}
}

// Register adds an executor to the registry. The first registered executor
// becomes the primary unless SetPrimary overrides it. An executor with the
// same name replaces the previous one.
func (r *Registry) Register(e Executor) error {
	if e == nil {
		return fmt.Errorf("cannot register nil executor")
	}
	name := e.Name()
	if name == "" {
		return fmt.Errorf("executor name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.executors[name] = e
	if r.primary == "" {
		r.primary = name
	}
	return nil
}

// SetPrimary designates the fallback executor of last resort.
func (r *Registry) SetPrimary(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.executors[name]; !ok {
		return fmt.Errorf("unknown executor: %s", name)
	}
	r.primary = name
	return nil
}

// Get retrieves an executor by name.
func (r *Registry) Get(name string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.executors[name]
	return e, ok
}

// Len returns the number of registered executors.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.executors)
}

// Resolve picks the executor for a task: the hint if registered, else the
// first registered name from the default ordering, else the primary. An
// empty registry is a configuration error.
func (r *Registry) Resolve(hint string) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.executors) == 0 {
		return nil, fmt.Errorf("no executors registered")
	}

	if hint != "" {
		if e, ok := r.executors[hint]; ok {
			return e, nil
		}
	}

	for _, name := range r.defaultOrder {
		if e, ok := r.executors[name]; ok {
			return e, nil
		}
	}

	if e, ok := r.executors[r.primary]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("no executor resolvable for hint %q", hint)
}
