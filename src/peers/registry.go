package peers

import (
	"errors"
	"sort"
	"sync"
	"time"
)

// ErrPeerExists is returned by Insert when a connected entry already exists
// for the address.
var ErrPeerExists = errors.New("peer already registered")

// Registry maps network addresses to PeerInfo. It is safe for concurrent use.
// There is at most one entry per address, and critical sections never perform
// I/O.
type Registry struct {
	mu    sync.RWMutex
	peers map[string]*PeerInfo
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		peers: make(map[string]*PeerInfo),
	}
}

// Insert registers info under info.Addr. An entry that is no longer connected
// is replaced; a connected one is kept and ErrPeerExists is returned.
func (r *Registry) Insert(info *PeerInfo) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.peers[info.Addr]; ok && existing.Connected {
		return ErrPeerExists
	}

	cp := *info
	r.peers[info.Addr] = &cp
	return nil
}

// Remove deletes the entry for addr, reporting whether there was one.
func (r *Registry) Remove(addr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.peers[addr]; !ok {
		return false
	}
	delete(r.peers, addr)
	return true
}

// MarkDisconnected flags the entry for addr as no longer connected. The entry
// stays in the registry until the next Sweep.
func (r *Registry) MarkDisconnected(addr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[addr]
	if !ok {
		return false
	}
	p.Connected = false
	return true
}

// Touch records activity on the connection to addr.
func (r *Registry) Touch(addr string, t time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.peers[addr]
	if !ok {
		return false
	}
	if t.After(p.LastActivity) {
		p.LastActivity = t
	}
	return true
}

// Get returns a copy of the entry for addr.
func (r *Registry) Get(addr string) (PeerInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.peers[addr]
	if !ok {
		return PeerInfo{}, false
	}
	return *p, true
}

// Len returns the number of entries, connected or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.peers)
}

// Connected returns the number of connected entries.
func (r *Registry) Connected() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, p := range r.peers {
		if p.Connected {
			n++
		}
	}
	return n
}

// ConnectedBy returns the number of connected entries in the given direction.
func (r *Registry) ConnectedBy(direction Direction) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, p := range r.peers {
		if p.Connected && p.Direction == direction {
			n++
		}
	}
	return n
}

// Snapshot returns a copy of every entry, ordered by address.
func (r *Registry) Snapshot() []PeerInfo {
	r.mu.RLock()
	res := make([]PeerInfo, 0, len(r.peers))
	for _, p := range r.peers {
		res = append(res, *p)
	}
	r.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool { return res[i].Addr < res[j].Addr })
	return res
}

// Sweep removes every entry that is no longer connected and returns the
// removed addresses, sorted.
func (r *Registry) Sweep() []string {
	r.mu.Lock()
	var removed []string
	for addr, p := range r.peers {
		if !p.Connected {
			delete(r.peers, addr)
			removed = append(removed, addr)
		}
	}
	r.mu.Unlock()

	sort.Strings(removed)
	return removed
}
