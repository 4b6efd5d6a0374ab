package saltyrtc

import "context"

// Transport is the contract the protocol core consumes (spec §6). The
// WebSocket adapter (wstransport.go) is the production implementation;
// tests drive the state machine against a simple in-memory fake.
type Transport interface {
	// Send writes one frame. It must not be called concurrently with
	// itself; the task queue already guarantees at most one in-flight
	// Send per client.
	Send(ctx context.Context, data []byte) error
	// Receive reads the next frame, blocking until one arrives.
	Receive(ctx context.Context) ([]byte, error)
	// Ping issues a transport-level ping and blocks until the matching
	// pong arrives or ctx is done.
	Ping(ctx context.Context) error
	// Close closes the transport with the given close code and reason.
	Close(code CloseCode, reason string) error
	// Done is closed once the transport has terminated, by either side.
	Done() <-chan struct{}
}
