package saltyrtc

import (
	"encoding/hex"
	"sync"
)

// Registry is the server-wide map from initiator public key to Path,
// grounded on server.py's Paths class: lazy creation, reaping on empty.
type Registry struct {
	mu    sync.Mutex
	paths map[PublicKey]*Path
}

func NewRegistry() *Registry {
	return &Registry{paths: make(map[PublicKey]*Path)}
}

// Get returns the Path for key, creating it if this is the first
// reference.
func (r *Registry) Get(key PublicKey) *Path {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.paths[key]; ok {
		return p
	}
	p := newPath(key, hex.EncodeToString(key[:]))
	r.paths[key] = p
	return p
}

// Clean removes path from the registry if it is currently empty. Safe to
// call even if path was already removed or replaced.
func (r *Registry) Clean(path *Path) {
	if !path.Empty() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.paths[path.Key()] == path {
		delete(r.paths, path.Key())
	}
}

// Len returns the number of live paths.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.paths)
}

// Snapshot returns a point-in-time view of every live path's occupancy,
// for the /debug/paths endpoint. It exposes no secrets: only the path's
// hex key and slot counts.
func (r *Registry) Snapshot() []PathSnapshot {
	r.mu.Lock()
	paths := make([]*Path, 0, len(r.paths))
	for _, p := range r.paths {
		paths = append(paths, p)
	}
	r.mu.Unlock()

	snaps := make([]PathSnapshot, 0, len(paths))
	for _, p := range paths {
		snaps = append(snaps, PathSnapshot{
			Hex:       p.Hex(),
			Initiator: p.GetInitiator() != nil,
			Responders: len(p.ResponderIDs()),
		})
	}
	return snaps
}

// PathSnapshot is the read-only occupancy summary of a Path.
type PathSnapshot struct {
	Hex        string `json:"path"`
	Initiator  bool   `json:"initiator"`
	Responders int    `json:"responders"`
}
