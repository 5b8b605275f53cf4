// Package session tracks which conversations have a live generation.
package session

import (
	"sync"
	"sync/atomic"
)

// Handle is the registry entry of one running turn.
type Handle struct {
	id       string
	registry *Registry
	live     atomic.Bool
	stopOnce sync.Once
	stopped  chan struct{}
}

// ID returns the conversation id the handle was started for.
func (h *Handle) ID() string { return h.id }

// Live reports whether the turn may keep emitting chunks.
func (h *Handle) Live() bool { return h.live.Load() }

// Stopped is closed once the handle stops being live.
func (h *Handle) Stopped() <-chan struct{} { return h.stopped }

// End stops the handle and removes it from its registry if it is still
// the current entry for its id. A superseded handle never removes its
// successor.
func (h *Handle) End() {
	h.registry.release(h)
	h.flip()
}

func (h *Handle) flip() {
	h.live.Store(false)
	h.stopOnce.Do(func() { close(h.stopped) })
}

// Registry maps conversation ids to live generation handles.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Handle
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Handle)}
}

// Start marks id live and returns its handle.
// A prior entry for id is overwritten and stops being live.
func (r *Registry) Start(id string) *Handle {
	h := &Handle{id: id, registry: r, stopped: make(chan struct{})}
	h.live.Store(true)

	r.mu.Lock()
	prev := r.sessions[id]
	r.sessions[id] = h
	r.mu.Unlock()

	if prev != nil {
		prev.flip()
	}
	return h
}

// IsLive reports whether id has a live entry.
func (r *Registry) IsLive(id string) bool {
	r.mu.Lock()
	h := r.sessions[id]
	r.mu.Unlock()
	return h != nil && h.Live()
}

// Stop flips id to not-live and removes it.
// It returns false when no entry exists.
func (r *Registry) Stop(id string) bool {
	r.mu.Lock()
	h, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	h.flip()
	return true
}

// End removes the entry for id. Removing an absent id is a no-op.
func (r *Registry) End(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	r.mu.Unlock()
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *Registry) release(h *Handle) {
	r.mu.Lock()
	if r.sessions[h.id] == h {
		delete(r.sessions, h.id)
	}
	r.mu.Unlock()
}
