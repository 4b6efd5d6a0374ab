package saltyrtc

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func newTestClient(t *testing.T) *PathClient {
	t.Helper()
	perm, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	c, err := NewPathClient(newFakeTransport(), perm, PublicKey{}, zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestPathSetInitiatorDisplacesPrevious(t *testing.T) {
	key := PublicKey{9}
	p := newPath(key, "feed")
	first := newTestClient(t)
	second := newTestClient(t)

	if prev := p.SetInitiator(first); prev != nil {
		t.Fatalf("expected no previous initiator, got %v", prev)
	}
	if first.ID() != AddressInitiator {
		t.Fatalf("first.ID() = %v, want AddressInitiator", first.ID())
	}
	prev := p.SetInitiator(second)
	if prev != first {
		t.Fatal("expected first to be displaced")
	}
	if p.GetInitiator() != second {
		t.Fatal("expected second to be current initiator")
	}
}

func TestPathAddResponderAssignsFirstFreeSlot(t *testing.T) {
	p := newPath(PublicKey{}, "feed")
	c1 := newTestClient(t)
	addr1, err := p.AddResponder(c1)
	if err != nil {
		t.Fatalf("AddResponder: %v", err)
	}
	if addr1 != AddressResponderFirst {
		t.Fatalf("addr1 = %#x, want %#x", addr1, AddressResponderFirst)
	}
	if c1.ID() != addr1 {
		t.Fatalf("client ID not set to assigned slot")
	}
}

func TestPathAddResponderFullReturnsSlotsFullError(t *testing.T) {
	p := newPath(PublicKey{}, "feed")
	for i := 0; i < ResponderSlots; i++ {
		if _, err := p.AddResponder(newTestClient(t)); err != nil {
			t.Fatalf("AddResponder #%d: %v", i, err)
		}
	}
	_, err := p.AddResponder(newTestClient(t))
	var serr *Error
	if err == nil {
		t.Fatal("expected error when no slots remain")
	}
	if !errors.As(err, &serr) || serr.Kind != KindSlotsFullError {
		t.Fatalf("expected SlotsFullError, got %v", err)
	}
}

func TestPathRemoveClientOnlyRemovesCurrentOccupant(t *testing.T) {
	p := newPath(PublicKey{}, "feed")
	first := newTestClient(t)
	second := newTestClient(t)
	p.SetInitiator(first)
	p.SetInitiator(second)

	// first was already displaced; removing it must not touch second.
	p.RemoveClient(first)
	if p.GetInitiator() != second {
		t.Fatal("removing a displaced client must not evict its successor")
	}
	p.RemoveClient(second)
	if p.GetInitiator() != nil {
		t.Fatal("expected initiator slot empty after removing current occupant")
	}
}

func TestRegistryGetIsIdempotentAndCleanReaps(t *testing.T) {
	r := NewRegistry()
	key := PublicKey{1, 2, 3}
	p1 := r.Get(key)
	p2 := r.Get(key)
	if p1 != p2 {
		t.Fatal("Get must return the same Path for the same key")
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
	r.Clean(p1)
	if r.Len() != 0 {
		t.Fatalf("Clean must reap an empty path, Len() = %d", r.Len())
	}
}
