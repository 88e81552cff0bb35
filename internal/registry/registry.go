// Package registry provides name-keyed registries for transforms and plugins.
// Registries are plain values handed to the engine as lookup functions; there
// is no package-level registration.
package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Named is anything registered under its own name.
type Named interface {
	Name() string
}

// Registry maps names to implementations. It is safe for concurrent use.
type Registry[T Named] struct {
	mu    sync.RWMutex
	items map[string]T
	kind  string
}

// New creates an empty registry. kind names the registered things in error
// messages, e.g. "plugin".
func New[T Named](kind string) *Registry[T] {
	return &Registry[T]{
		items: make(map[string]T),
		kind:  kind,
	}
}

// Register adds item under its name. Registering a name twice is an error.
func (r *Registry[T]) Register(item T) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := item.Name()
	if name == "" {
		return fmt.Errorf("%s name is empty", r.kind)
	}
	if _, exists := r.items[name]; exists {
		return &DuplicateError{Kind: r.kind, Name: name}
	}
	r.items[name] = item
	return nil
}

// MustRegister is like Register but panics on error. It is meant for
// registering built-ins.
func (r *Registry[T]) MustRegister(items ...T) {
	for _, item := range items {
		if err := r.Register(item); err != nil {
			panic(err)
		}
	}
}

// Get returns the item registered under name.
func (r *Registry[T]) Get(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[name]
	return item, ok
}

// Names returns all registered names (sorted).
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.items))
	for name := range r.items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered items.
func (r *Registry[T]) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// DuplicateError is returned when a name is registered twice.
type DuplicateError struct {
	Kind string
	Name string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%s %q is already registered", e.Kind, e.Name)
}
