package flights

import (
	"slices"
	"sync"
)

// Registry remembers the marker handle of every identifier currently on the map
type Registry struct {
	mu      sync.RWMutex
	entries map[string]MarkerHandle
}

// NewRegistry creates an empty marker registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]MarkerHandle)}
}

func (r *Registry) Get(id string) (MarkerHandle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.entries[id]
	return h, ok
}

func (r *Registry) Set(id string, handle MarkerHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[id] = handle
}

func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Len returns the number of tracked markers
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// IDs returns the tracked identifiers in sorted order
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
