package saltyrtc

import "sync"

// Path is one rendezvous room: an initiator slot plus ResponderSlots
// responder slots, keyed by the initiator's permanent public key (spec
// §3/§4.3). Access is serialised by a mutex, the concurrency model's
// sanctioned alternative to an actor for a parallel Go implementation.
type Path struct {
	mu sync.Mutex

	key PublicKey
	hex string

	initiator *PathClient
	responders [ResponderSlots]*PathClient
}

func newPath(key PublicKey, hex string) *Path {
	return &Path{key: key, hex: hex}
}

// Key returns the Path's identifying initiator public key.
func (p *Path) Key() PublicKey { return p.key }

// Hex returns the lowercase-hex rendering of Key, as it appears in the
// WebSocket URL and in events.
func (p *Path) Hex() string { return p.hex }

// GetInitiator returns the current initiator occupant, or nil.
func (p *Path) GetInitiator() *PathClient {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initiator
}

// SetInitiator unconditionally installs client in the initiator slot,
// returning whoever previously occupied it (nil if the slot was empty).
// The caller must asynchronously close the displaced client with
// CloseDropByInitiator (spec §4.3, §4.5 "initiator takeover").
func (p *Path) SetInitiator(client *PathClient) (previous *PathClient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	previous = p.initiator
	p.initiator = client
	client.SetID(AddressInitiator)
	return previous
}

// AddResponder scans responder slots in ascending address order and
// installs client in the first empty one, returning its assigned address.
// It returns SlotsFullError if none are free.
func (p *Path) AddResponder(client *PathClient) (Address, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i := range p.responders {
		if p.responders[i] == nil {
			addr := Address(i) + AddressResponderFirst
			p.responders[i] = client
			client.SetID(addr)
			return addr, nil
		}
	}
	return 0, SlotsFullError(errFull)
}

// GetResponder returns the occupant of responder slot id, or nil if id is
// out of range or unoccupied.
func (p *Path) GetResponder(id Address) *PathClient {
	if !id.IsResponder() {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.responders[id.slotIndex()]
}

// ResponderIDs returns the addresses of every currently occupied responder
// slot, in ascending order.
func (p *Path) ResponderIDs() []Address {
	p.mu.Lock()
	defer p.mu.Unlock()
	var ids []Address
	for i, c := range p.responders {
		if c != nil {
			ids = append(ids, Address(i)+AddressResponderFirst)
		}
	}
	return ids
}

// RemoveClient evicts client from whichever slot it occupies, but only if
// that slot still references it by identity — a successor that has
// already taken over is left untouched (spec §4.3, §9 "initiator takeover
// without dangling references").
func (p *Path) RemoveClient(client *PathClient) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initiator == client {
		p.initiator = nil
	}
	for i, c := range p.responders {
		if c == client {
			p.responders[i] = nil
		}
	}
}

// Empty reports whether every slot is unoccupied. As a best-effort side
// effect it prunes slots whose occupant's transport has already
// terminated but whose removal is still pending (spec §4.3).
func (p *Path) Empty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reapLocked()
	if p.initiator != nil {
		return false
	}
	for _, c := range p.responders {
		if c != nil {
			return false
		}
	}
	return true
}

func (p *Path) reapLocked() {
	if p.initiator != nil && isDone(p.initiator) {
		p.initiator = nil
	}
	for i, c := range p.responders {
		if c != nil && isDone(c) {
			p.responders[i] = nil
		}
	}
}

func isDone(c *PathClient) bool {
	select {
	case <-c.Done():
		return true
	default:
		return false
	}
}

var errFull = fullError{}

type fullError struct{}

func (fullError) Error() string { return "no free responder slot" }
