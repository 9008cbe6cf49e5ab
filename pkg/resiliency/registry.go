package resiliency

import (
	"sort"
	"sync"
)

// Registry holds one breaker per dependency name. Breakers are created lazily
// on first use with the registry's default config; a failing integration can
// therefore never starve an unrelated one.
type Registry struct {
	mu       sync.RWMutex
	config   Config
	breakers map[string]*CircuitBreaker
}

// NewRegistry builds a registry handing out breakers with the given defaults.
func NewRegistry(config Config) *Registry {
	return &Registry{
		config:   config,
		breakers: make(map[string]*CircuitBreaker),
	}
}

// Get returns the breaker for the named dependency, creating it if needed.
func (r *Registry) Get(name string) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[name]; ok {
		return cb
	}
	cb = NewCircuitBreaker(name, r.config)
	r.breakers[name] = cb
	return cb
}

// Snapshots reports every breaker's state, sorted by dependency name.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Snapshot, 0, len(r.breakers))
	for _, cb := range r.breakers {
		out = append(out, cb.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
