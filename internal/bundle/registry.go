package bundle

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps bundle locations to bundles registered at startup.
type Registry struct {
	mu      sync.RWMutex
	bundles map[string]Bundle
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{bundles: make(map[string]Bundle)}
}

// Register adds or replaces the bundle at location
func (r *Registry) Register(location string, b Bundle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bundles[location] = b
}

// Open is an Opener over the registered bundles.
func (r *Registry) Open(location string) (Bundle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bundles[location]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBundle, location)
	}
	return b, nil
}

// Locations returns the registered locations, sorted
func (r *Registry) Locations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	locs := make([]string, 0, len(r.bundles))
	for loc := range r.bundles {
		locs = append(locs, loc)
	}
	sort.Strings(locs)
	return locs
}
