package gateway

import (
	"sort"
	"strings"
	"sync"
)

// Registry maps gateway slugs to adapters.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

// NewRegistry creates a registry holding the given adapters.
func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.Register(a)
	}
	return r
}

// NewRegistryFromEnv registers every gateway the platform ships with.
func NewRegistryFromEnv() *Registry {
	return NewRegistry(
		NewPaystackFromEnv(),
		NewFlutterwaveFromEnv(),
		NewMidtransFromEnv(),
		NewBankTransferFromEnv(),
	)
}

// Register adds or replaces the adapter for its slug.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[strings.ToLower(a.Slug())] = a
}

// Get looks up an adapter by slug.
func (r *Registry) Get(slug string) (Adapter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[strings.ToLower(strings.TrimSpace(slug))]
	return a, ok
}

// Slugs returns the registered slugs in sorted order.
func (r *Registry) Slugs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.adapters))
	for slug := range r.adapters {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}
