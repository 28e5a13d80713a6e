// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package mediaplayer

import (
	"sync"

	"github.com/google/uuid"
)

// Registry tracks the live State for every media-player block instance
// currently running, keyed by (flow id, block id). A flow restart
// re-registers under the same Key with a fresh InstanceID, which is what
// lets StartPositionTimer detect and retire stale timers from the
// previous instance (spec §4.9, §5).
type Registry struct {
	mu    sync.RWMutex
	items map[Key]*State
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{items: map[Key]*State{}}
}

// Register installs s as the current instance for its (FlowID, BlockID).
// Any previously-registered instance for that key is replaced, which is
// exactly the signal StartPositionTimer watches for.
func (r *Registry) Register(s *State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[Key{FlowID: s.FlowID, BlockID: s.BlockID}] = s
}

// Unregister removes the instance for key, but only if the registered
// instance still matches instanceID (guards against a stop racing a
// concurrent restart that has already installed a newer instance).
func (r *Registry) Unregister(key Key, instanceID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.items[key]; ok && cur.InstanceID == instanceID {
		delete(r.items, key)
	}
}

// Get returns the currently-registered instance for key, if any.
func (r *Registry) Get(key Key) (*State, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.items[key]
	return s, ok
}

// Contains reports whether key currently has a registered instance.
func (r *Registry) Contains(key Key) bool {
	_, ok := r.Get(key)
	return ok
}

// ForFlow returns every instance currently registered under flowID, for
// bulk teardown when a flow stops.
func (r *Registry) ForFlow(flowID string) []*State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*State
	for k, s := range r.items {
		if k.FlowID == flowID {
			out = append(out, s)
		}
	}
	return out
}
