package core

import (
	"sort"
	"sync"
)

// Registry holds the recordings that have an outstanding delayed-upload timer.
// It is the only mutable state shared between the scheduler and the
// inspection surface.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*PendingUpload
	nextGen uint64
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*PendingUpload)}
}

// Add stores entry, replacing (and stopping) whatever was pending for the same path.
func (r *Registry) Add(entry PendingUpload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putLocked(entry)
}

func (r *Registry) putLocked(entry PendingUpload) {
	if old, ok := r.entries[entry.LocalPath]; ok && old.timer != nil {
		old.timer.Stop()
	}
	if entry.Generation > r.nextGen {
		r.nextGen = entry.Generation
	}
	e := entry
	r.entries[entry.LocalPath] = &e
}

// Supersede invalidates any pending entry for path and installs a fresh one.
// arm is called under the lock with the new generation and must return the
// timer that will eventually call Claim with it.
func (r *Registry) Supersede(entry PendingUpload, arm func(gen uint64) Timer) (gen uint64, replaced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, replaced = r.entries[entry.LocalPath]
	r.nextGen++
	entry.Generation = r.nextGen
	entry.timer = arm(entry.Generation)
	r.putLocked(entry)
	return entry.Generation, replaced
}

// Claim removes the entry for path only if it still carries generation gen.
// A false result means the caller's timer is stale and must do nothing.
func (r *Registry) Claim(path string, gen uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[path]
	if !ok || e.Generation != gen {
		return false
	}
	delete(r.entries, path)
	return true
}

func (r *Registry) Remove(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[path]; ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(r.entries, path)
	}
}

// Lookup returns a copy of the pending entry for path.
func (r *Registry) Lookup(path string) (PendingUpload, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[path]
	if !ok {
		return PendingUpload{}, false
	}
	return *e, true
}

// Snapshot returns the pending paths in lexical order.
func (r *Registry) Snapshot() []string {
	r.mu.RLock()
	paths := make([]string, 0, len(r.entries))
	for p := range r.entries {
		paths = append(paths, p)
	}
	r.mu.RUnlock()

	sort.Strings(paths)
	return paths
}

// Pending returns copies of all pending entries ordered by path.
func (r *Registry) Pending() []PendingUpload {
	r.mu.RLock()
	out := make([]PendingUpload, 0, len(r.entries))
	for _, e := range r.entries {
		c := *e
		c.timer = nil
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].LocalPath < out[j].LocalPath })
	return out
}

func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Drain stops every timer and empties the registry.
func (r *Registry) Drain() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	paths := make([]string, 0, len(r.entries))
	for p, e := range r.entries {
		if e.timer != nil {
			e.timer.Stop()
		}
		paths = append(paths, p)
	}
	r.entries = make(map[string]*PendingUpload)
	sort.Strings(paths)
	return paths
}
