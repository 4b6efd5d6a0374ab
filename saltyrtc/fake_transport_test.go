package saltyrtc

import (
	"context"
	"errors"
	"sync"
)

// fakeTransport is an in-memory Transport used by every test in this
// package that needs to drive PathClient/worker logic without a real
// network connection.
type fakeTransport struct {
	mu          sync.Mutex
	outbox      [][]byte
	inbox       chan []byte
	sentCh      chan []byte
	closed      bool
	closeCode   CloseCode
	closeReason string
	done        chan struct{}
	pingErr     error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbox:  make(chan []byte, 16),
		sentCh: make(chan []byte, 16),
		done:   make(chan struct{}),
	}
}

func (f *fakeTransport) Send(ctx context.Context, data []byte) error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return errors.New("fakeTransport: send on closed transport")
	}
	cp := append([]byte(nil), data...)
	f.outbox = append(f.outbox, cp)
	f.mu.Unlock()
	f.sentCh <- cp
	return nil
}

func (f *fakeTransport) Receive(ctx context.Context) ([]byte, error) {
	select {
	case b, ok := <-f.inbox:
		if !ok {
			return nil, errors.New("fakeTransport: closed")
		}
		return b, nil
	case <-f.done:
		return nil, errors.New("fakeTransport: closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeTransport) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeTransport) Close(code CloseCode, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		f.closeCode = code
		f.closeReason = reason
		close(f.done)
	}
	return nil
}

func (f *fakeTransport) Done() <-chan struct{} { return f.done }

// push delivers a frame as if received from the peer.
func (f *fakeTransport) push(b []byte) { f.inbox <- b }

// sent returns every frame handed to Send so far, in order.
func (f *fakeTransport) sent() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.outbox...)
}
