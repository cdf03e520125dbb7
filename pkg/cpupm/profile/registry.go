package profile

import (
	"sync"
)

// Registry is an ordered collection of profiles. Names are not unique; Get
// returns the first match, so built-ins shadow user profiles of the same name.
type Registry struct {
	mu       sync.RWMutex
	profiles []Profile
}

// NewRegistry returns a registry holding the built-ins followed by extra.
func NewRegistry(extra ...Profile) *Registry {
	r := &Registry{}
	r.Reset(extra...)
	return r
}

// Reset replaces the contents with the built-ins followed by extra.
func (r *Registry) Reset(extra ...Profile) {
	profiles := Builtins()
	for _, p := range extra {
		profiles = append(profiles, p.Clone())
	}

	r.mu.Lock()
	r.profiles = profiles
	r.mu.Unlock()
}

// Get returns the first profile named name.
func (r *Registry) Get(name string) (Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.profiles {
		if p.Name == name {
			return p.Clone(), true
		}
	}
	return Profile{}, false
}

// Add appends p.
func (r *Registry) Add(p Profile) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.profiles = append(r.profiles, p.Clone())
}

// Remove deletes every profile named name and reports how many were removed.
func (r *Registry) Remove(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.profiles[:0]
	for _, p := range r.profiles {
		if p.Name != name {
			kept = append(kept, p)
		}
	}
	removed := len(r.profiles) - len(kept)
	clear(r.profiles[len(kept):])
	r.profiles = kept
	return removed
}

// List returns a copy of every profile in order.
func (r *Registry) List() []Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Profile, len(r.profiles))
	for i, p := range r.profiles {
		out[i] = p.Clone()
	}
	return out
}

// Len returns the number of profiles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.profiles)
}
