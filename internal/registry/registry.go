// Package registry maps live connection identifiers to the display name each
// connection announced.
package registry

import "sync"

// Registry is safe for concurrent use. The zero value is not usable; call New.
type Registry struct {
	mu    sync.RWMutex
	names map[string]string
}

func New() *Registry {
	return &Registry{names: make(map[string]string)}
}

// Set records name for id, overwriting any previous entry.
func (r *Registry) Set(id, name string) {
	r.mu.Lock()
	r.names[id] = name
	r.mu.Unlock()
}

// Get returns the name registered for id.
func (r *Registry) Get(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.names[id]
	return name, ok
}

// Delete removes id and returns the name it held, if any.
func (r *Registry) Delete(id string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.names[id]
	delete(r.names, id)
	return name, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}
