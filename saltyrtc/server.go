package saltyrtc

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DefaultRelayTimeout bounds how long a relaying worker waits for its peer's
// task queue to actually deliver a forwarded frame before giving up and
// synthesizing a send-error (spec §4.5-B "RELAY_TIMEOUT").
const DefaultRelayTimeout = 10 * time.Second

// ServerConfig configures a Server.
type ServerConfig struct {
	// Keys is the server's permanent key pairs, in preference order. The
	// first is the default used when a client-auth omits server_key.
	Keys []*KeyPair
	// Subprotocols is the set of subprotocol names the server accepts, in
	// preference order (most preferred first), used for downgrade
	// detection in client-auth (spec §4.4).
	Subprotocols []string
	RelayTimeout time.Duration
	Metrics      Observer
	Log          zerolog.Logger
}

// Server is the protocol orchestrator: the registry of Paths plus the
// server-wide configuration every connection worker needs. It is
// transport-agnostic; httpserver.go is what actually accepts WebSocket
// connections and calls ServeConnection.
type Server struct {
	keys         []*KeyPair
	subprotocols []string
	relayTimeout time.Duration
	metrics      Observer
	log          zerolog.Logger

	registry *Registry
	events   *eventBus

	mu      sync.Mutex
	workers map[*worker]struct{}
	closing bool
}

// NewServer constructs a Server ready to accept connections.
func NewServer(cfg ServerConfig) *Server {
	if cfg.RelayTimeout <= 0 {
		cfg.RelayTimeout = DefaultRelayTimeout
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NoopObserver
	}
	return &Server{
		keys:         cfg.Keys,
		subprotocols: cfg.Subprotocols,
		relayTimeout: cfg.RelayTimeout,
		metrics:      cfg.Metrics,
		log:          cfg.Log,
		registry:     NewRegistry(),
		events:       newEventBus(),
		workers:      make(map[*worker]struct{}),
	}
}

// Registry exposes the Path table, e.g. for the /debug/paths endpoint.
func (s *Server) Registry() *Registry { return s.registry }

// Metrics exposes the configured Observer, e.g. for wiring promhttp.
func (s *Server) Metrics() Observer { return s.metrics }

// Subprotocols returns the accepted subprotocol names in preference order,
// for the HTTP front door's WebSocket subprotocol negotiation.
func (s *Server) Subprotocols() []string { return s.subprotocols }

// OnEvent registers a fire-and-forget callback for one of the three event
// kinds the core raises (spec §6).
func (s *Server) OnEvent(kind EventKind, cb EventCallback) { s.events.On(kind, cb) }

func (s *Server) primaryKey() *KeyPair {
	if len(s.keys) == 0 {
		return nil
	}
	return s.keys[0]
}

// selectServerKey resolves a client-auth's optional server_key field to one
// of the server's configured permanent keys, defaulting to the primary one
// when the field is absent.
func (s *Server) selectServerKey(requested []byte) (*KeyPair, error) {
	if len(s.keys) == 0 {
		return nil, ServerKeyError(errors.New("server has no permanent keys configured"))
	}
	if requested == nil {
		return s.keys[0], nil
	}
	if len(requested) != KeyLength {
		return nil, ServerKeyError(fmt.Errorf("server_key must be %d bytes, got %d", KeyLength, len(requested)))
	}
	for _, k := range s.keys {
		if bytes.Equal(k.Public[:], requested) {
			return k, nil
		}
	}
	return nil, ServerKeyError(errors.New("requested server permanent key is not configured"))
}

// trackWorker registers w as live, refusing if the server is shutting down.
func (s *Server) trackWorker(w *worker) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closing {
		return false
	}
	s.workers[w] = struct{}{}
	return true
}

func (s *Server) untrackWorker(w *worker) {
	s.mu.Lock()
	delete(s.workers, w)
	s.mu.Unlock()
}

// LiveConnections returns the number of connections currently being served.
func (s *Server) LiveConnections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.workers)
}

// Shutdown enqueues a going-away close on every live connection's own task
// queue (so it is delivered only after any already-queued traffic drains)
// and waits for each to actually terminate, or for ctx to expire.
func (s *Server) Shutdown(ctx context.Context) {
	s.mu.Lock()
	s.closing = true
	ws := make([]*worker, 0, len(s.workers))
	for w := range s.workers {
		ws = append(ws, w)
	}
	s.mu.Unlock()

	for _, w := range ws {
		enqueueClose(w.client, CloseGoingAway)
	}
	for _, w := range ws {
		select {
		case <-w.client.Done():
		case <-ctx.Done():
			return
		}
	}
}
