package policy

import (
	"fmt"
	"sort"
	"sync"
)

// Factory constructs a Module. Factories are registered once at startup by the
// composition root; there is no reflection or by-name class loading.
type Factory func() (Module, error)

// Registry maps module ids to factories and caches the built modules.
// After startup it is effectively read-only and safe for concurrent readers.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	built     map[string]Module
}

// NewRegistry returns an empty module registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		built:     make(map[string]Module),
	}
}

// Register adds a module factory. Registering the same id twice is an error;
// modules are not hot-swappable at runtime.
func (r *Registry) Register(id string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.factories[id]; exists {
		return fmt.Errorf("policy: module %s already registered", id)
	}
	r.factories[id] = factory
	return nil
}

// MustRegister registers a pre-built module, panicking on duplicates. Intended
// for the composition root where a duplicate is a programming error.
func (r *Registry) MustRegister(m Module) {
	if err := r.Register(m.ID(), func() (Module, error) { return m, nil }); err != nil {
		panic(err)
	}
}

// Get builds (or returns the cached) module for id.
func (r *Registry) Get(id string) (Module, bool) {
	r.mu.RLock()
	if m, ok := r.built[id]; ok {
		r.mu.RUnlock()
		return m, true
	}
	factory, ok := r.factories[id]
	r.mu.RUnlock()
	if !ok {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.built[id]; ok {
		return m, true
	}
	m, err := factory()
	if err != nil {
		return nil, false
	}
	r.built[id] = m
	return m, true
}

// Resolve maps the requested ids to modules, silently dropping unknown ids so
// partial-capability deployments keep working. A nil or empty request resolves
// to all registered modules.
func (r *Registry) Resolve(ids []string) []Module {
	if len(ids) == 0 {
		ids = r.IDs()
	}
	modules := make([]Module, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if m, ok := r.Get(id); ok {
			modules = append(modules, m)
		}
	}
	return modules
}

// IDs returns the sorted registered module ids.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.factories))
	for id := range r.factories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
