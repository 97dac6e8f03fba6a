package peermail

import (
	"fmt"
	"sort"
	"sync"
)

// Peer is a directory entry.
type Peer struct {
	ID      AgentID
	Keys    PublicKeys
	Address string
	Handle  string
}

// Validate checks that the keys are well formed and hash to ID.
func (p Peer) Validate() error {
	if err := p.Keys.Validate(); err != nil {
		return fmt.Errorf("peer %s: %w", p.ID.Short(), err)
	}
	if AgentIDOf(p.Keys) != p.ID {
		return fmt.Errorf("peer %s: keys do not match id", p.ID.Short())
	}
	return nil
}

// StaticDirectory is an in-memory Directory seeded from configuration and
// extended with peers learned from authenticated calls.
type StaticDirectory struct {
	mu    sync.RWMutex
	peers map[AgentID]Peer
}

// NewStaticDirectory creates a directory holding peers. Every peer must
// pass Validate.
func NewStaticDirectory(peers ...Peer) (*StaticDirectory, error) {
	d := &StaticDirectory{peers: make(map[AgentID]Peer, len(peers))}
	for _, p := range peers {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		d.peers[p.ID] = p
	}
	return d, nil
}

// Lookup returns the peer with the given id.
func (d *StaticDirectory) Lookup(id AgentID) (Peer, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.peers[id]
	return p, ok
}

// Learn records or refreshes a peer. Entries whose keys do not hash to
// their id are ignored. Empty address or handle keep the known values.
func (d *StaticDirectory) Learn(p Peer) bool {
	if p.Validate() != nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if old, ok := d.peers[p.ID]; ok {
		if p.Address == "" {
			p.Address = old.Address
		}
		if p.Handle == "" {
			p.Handle = old.Handle
		}
	}
	d.peers[p.ID] = p
	return true
}

// Peers returns all known peers sorted by id.
func (d *StaticDirectory) Peers() []Peer {
	d.mu.RLock()
	out := make([]Peer, 0, len(d.peers))
	for _, p := range d.peers {
		out = append(out, p)
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
