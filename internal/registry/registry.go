package registry

import (
	"sort"
	"sync"
	"time"

	"github.com/muurk/playerclient/pkg/device"
)

// Entry is one subscribed device.
type Entry struct {
	Handler device.Handler
	Mode    device.Access // granted mode
	Driver  string
	Since   time.Time
}

// Registry maps device keys to entries. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[device.Key]*Entry
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[device.Key]*Entry)}
}

// Put installs e under its handler's key and returns the entry it replaced.
func (r *Registry) Put(e *Entry) (replaced *Entry) {
	key := e.Handler.Key()
	r.mu.Lock()
	defer r.mu.Unlock()
	replaced = r.entries[key]
	r.entries[key] = e
	return replaced
}

// Get returns the entry for key.
func (r *Registry) Get(key device.Key) (*Entry, bool) {
	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()
	return e, ok
}

// Handler returns the handler for key, or nil.
func (r *Registry) Handler(key device.Key) device.Handler {
	if e, ok := r.Get(key); ok {
		return e.Handler
	}
	return nil
}

// Remove deletes key and returns the removed entry.
func (r *Registry) Remove(key device.Key) (*Entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	delete(r.entries, key)
	return e, ok
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Keys returns the subscribed keys ordered by code, then index.
func (r *Registry) Keys() []device.Key {
	r.mu.RLock()
	keys := make([]device.Key, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	r.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Code != keys[j].Code {
			return keys[i].Code < keys[j].Code
		}
		return keys[i].Index < keys[j].Index
	})
	return keys
}

// Clear removes every entry.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.entries = make(map[device.Key]*Entry)
	r.mu.Unlock()
}
