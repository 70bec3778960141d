package recordstore

import (
	"fmt"
	"sync"
)

// Factory builds the Base for a base id.
type Factory func(baseID string) (Base, error)

// Registry hands out one Base per base id, built lazily on first use and
// reused for the lifetime of the process.  Each key has its own
// construction lock so that a slow backend does not block lookups of other
// bases.  A failed construction is not remembered; the next call retries.
type Registry struct {
	factory Factory

	mu      sync.Mutex
	entries map[string]*registryEntry
}

type registryEntry struct {
	mu   sync.Mutex
	base Base
}

// NewRegistry returns an empty registry backed by factory.
func NewRegistry(factory Factory) *Registry {
	if factory == nil {
		panic("nil factory passed to NewRegistry")
	}
	return &Registry{factory: factory, entries: make(map[string]*registryEntry)}
}

// Base returns the memoized Base for id, constructing it when needed.
func (r *Registry) Base(id string) (Base, error) {
	if id == "" {
		return nil, fmt.Errorf("record store: empty base id")
	}
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		e = &registryEntry{}
		r.entries[id] = e
	}
	r.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.base != nil {
		return e.base, nil
	}
	b, err := r.factory(id)
	if err != nil {
		return nil, fmt.Errorf("record store: init base %s: %w", Redact(id), err)
	}
	e.base = b
	return b, nil
}

// Len reports how many bases have been constructed.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		e.mu.Lock()
		if e.base != nil {
			n++
		}
		e.mu.Unlock()
	}
	return n
}

// Redact shortens a base id for log output ("appXXXX...").
func Redact(id string) string {
	if len(id) <= 7 {
		return id
	}
	return id[:7] + "..."
}
