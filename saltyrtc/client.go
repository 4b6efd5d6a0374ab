package saltyrtc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Role is a Client's negotiated role, resolved during the handshake.
type Role int

const (
	RoleUnknown Role = iota
	RoleInitiator
	RoleResponder
)

func (r Role) String() string {
	switch r {
	case RoleInitiator:
		return "initiator"
	case RoleResponder:
		return "responder"
	default:
		return "unknown"
	}
}

// DefaultKeepAliveInterval, DefaultKeepAliveTimeout and MinKeepAliveInterval
// are the keep-alive tunables of spec §3 ("default N; floor 1s").
const (
	DefaultKeepAliveInterval = 20 * time.Second
	DefaultKeepAliveTimeout  = 30 * time.Second
	MinKeepAliveInterval     = 1 * time.Second
)

// inboundFrame is the result of reading and partially validating one frame
// from a client's transport.
type inboundFrame struct {
	nonce nonce
	// raw is the frame's decrypted plaintext for server-addressed
	// (typed) frames, or the untouched opaque payload for relay frames.
	raw []byte
	// msg is non-nil only for server-addressed frames, which are always
	// fully decoded.
	msg Message
}

// PathClient is one connection's protocol state: the Go realization of
// spec §3's Client plus §4.1's per-direction cookie/CSN bookkeeping.
type PathClient struct {
	transport Transport
	log       zerolog.Logger
	metrics   Observer

	serverSessionKey   *KeyPair
	serverPermanentKey *KeyPair
	clientKey          PublicKey

	cookieOut    Cookie
	cookieOutSet bool
	cookieIn     Cookie
	cookieInSet  bool

	csnOut   csn
	csnIn    csn
	csnInSet bool

	role          Role
	id            Address
	authenticated bool

	keepAliveInterval time.Duration
	keepAliveTimeout  time.Duration

	queue *taskQueue
}

// NewPathClient constructs a fresh, unauthenticated client. defaultClientKey
// is the key client_key defaults to: for a connection that turns out to be
// the initiator this is already correct (it's the Path's own key); for a
// responder it is a provisional value replaced once client-hello arrives.
func NewPathClient(transport Transport, serverPermanentKey *KeyPair, defaultClientKey PublicKey, log zerolog.Logger, metrics Observer) (*PathClient, error) {
	sessionKey, err := GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("new client: %w", err)
	}
	initialCSN, err := randomInitialOut()
	if err != nil {
		return nil, fmt.Errorf("new client: %w", err)
	}
	if metrics == nil {
		metrics = NoopObserver
	}
	return &PathClient{
		transport:          transport,
		log:                log,
		metrics:            metrics,
		serverSessionKey:   sessionKey,
		serverPermanentKey: serverPermanentKey,
		clientKey:          defaultClientKey,
		csnOut:             initialCSN,
		keepAliveInterval:  DefaultKeepAliveInterval,
		keepAliveTimeout:   DefaultKeepAliveTimeout,
		queue:              newTaskQueue(),
	}
}

// SessionPublicKey returns this connection's fresh session public key, sent
// in server-hello.
func (c *PathClient) SessionPublicKey() PublicKey { return c.serverSessionKey.Public }

// SetClientKey replaces client_key once a responder's client-hello reveals
// its real permanent public key.
func (c *PathClient) SetClientKey(key PublicKey) { c.clientKey = key }

// ClientKey returns the peer's permanent public key.
func (c *PathClient) ClientKey() PublicKey { return c.clientKey }

// SetRole records the negotiated role.
func (c *PathClient) SetRole(r Role) { c.role = r }

// Role returns the negotiated role (RoleUnknown before handshake completes).
func (c *PathClient) Role() Role { return c.role }

// SetID assigns the client's own slot address, used as nonce destination on
// every subsequent frame the server sends it.
func (c *PathClient) SetID(id Address) { c.id = id }

// ID returns the client's own address (0x00 until authenticated).
func (c *PathClient) ID() Address { return c.id }

// SetAuthenticated marks the client authenticated (placed in a slot).
func (c *PathClient) SetAuthenticated(v bool) { c.authenticated = v }

// Authenticated reports whether the client has been placed in a slot.
func (c *PathClient) Authenticated() bool { return c.authenticated }

// SetKeepAliveInterval applies a client-requested ping_interval. A value
// below MinKeepAliveInterval is silently ignored and the current interval
// is kept.
func (c *PathClient) SetKeepAliveInterval(d time.Duration) {
	if d < MinKeepAliveInterval {
		return
	}
	c.keepAliveInterval = d
}

func (c *PathClient) KeepAliveInterval() time.Duration { return c.keepAliveInterval }
func (c *PathClient) KeepAliveTimeout() time.Duration  { return c.keepAliveTimeout }

// Queue returns the client's task queue (spec §4.5-A).
func (c *PathClient) Queue() *taskQueue { return c.queue }

// Log returns the client's sub-logger.
func (c *PathClient) Log() zerolog.Logger { return c.log }

// SetLog replaces the client's sub-logger, used once its slot address is
// known to scope subsequent logging the way the original's
// "path.<n>.client.<addr>" hierarchy does.
func (c *PathClient) SetLog(log zerolog.Logger) { c.log = log }

// Done signals transport termination.
func (c *PathClient) Done() <-chan struct{} { return c.transport.Done() }

// Ping issues a keep-alive ping, blocking until pong or ctx expiry.
func (c *PathClient) Ping(ctx context.Context) error { return c.transport.Ping(ctx) }

// CloseTransport closes the underlying transport.
func (c *PathClient) CloseTransport(code CloseCode, reason string) error {
	return c.transport.Close(code, reason)
}

// CookieOut returns cookie_out, generating it lazily on first use.
func (c *PathClient) CookieOut() (Cookie, error) {
	if c.cookieOutSet {
		return c.cookieOut, nil
	}
	ck, err := newCookie()
	if err != nil {
		return Cookie{}, err
	}
	c.cookieOut = ck
	c.cookieOutSet = true
	return ck, nil
}

// CookieIn returns cookie_in, the value learned from the client's first
// inbound frame. Only meaningful once that frame has been processed.
func (c *PathClient) CookieIn() Cookie { return c.cookieIn }

// checkCookieIn learns cookie_in on the first inbound frame, rejecting a
// value equal to cookie_out (invariant 2), and enforces equality on every
// frame thereafter.
func (c *PathClient) checkCookieIn(cookie Cookie) error {
	if !c.cookieInSet {
		if c.cookieOutSet && cookie == c.cookieOut {
			return ProtocolError(errors.New("cookie_in must not equal cookie_out"))
		}
		c.cookieIn = cookie
		c.cookieInSet = true
		return nil
	}
	if cookie != c.cookieIn {
		return ProtocolError(errors.New("cookie_in changed mid-connection"))
	}
	return nil
}

// checkCSNIn validates and advances csn_in for a server-addressed frame
// (invariants 3, 4, 5).
func (c *PathClient) checkCSNIn(got csn) error {
	if !c.csnInSet {
		if !checkInitial(got) {
			return ProtocolError(errors.New("initial csn_in has non-zero upper 16 bits"))
		}
		c.csnIn = got
		c.csnInSet = true
		return nil
	}
	if c.csnIn.isOverflow() {
		return ProtocolError(errors.New("csn_in has overflowed, no further frames accepted"))
	}
	expected := c.csnIn.next()
	if got != expected {
		return ProtocolError(fmt.Errorf("csn_in: expected %d, got %d", expected, got))
	}
	c.csnIn = expected
	return nil
}

func nonceArray(n nonce) *[24]byte {
	var arr [24]byte
	copy(arr[:], n.bytes())
	return &arr
}

// receiveFrame reads and validates the next frame from an already
// authenticated (or authenticating, post-first-frame) client. Frames
// addressed to the server are CSN-checked and decrypted; relay frames
// (destination != server) pass through opaque and uninspected.
func (c *PathClient) receiveFrame(ctx context.Context) (*inboundFrame, error) {
	raw, err := c.transport.Receive(ctx)
	if err != nil {
		return nil, Disconnected(err)
	}
	n, err := parseNonce(raw)
	if err != nil {
		return nil, ProtocolError(err)
	}
	if n.source != c.id {
		return nil, ProtocolError(fmt.Errorf("frame source %#x does not match client address %#x", n.source, c.id))
	}
	if err := c.checkCookieIn(n.cookie); err != nil {
		return nil, err
	}
	payload := raw[NonceLength:]
	if n.destination != AddressServer {
		return &inboundFrame{nonce: n, raw: payload}, nil
	}
	if err := c.checkCSNIn(n.csn); err != nil {
		return nil, err
	}
	plaintext, ok := openBox(payload, nonceArray(n), &c.clientKey, &c.serverSessionKey.Secret)
	if !ok {
		return nil, ProtocolError(errors.New("could not decrypt server-addressed frame"))
	}
	msg, err := DecodeMessage(plaintext)
	if err != nil {
		return nil, err
	}
	return &inboundFrame{nonce: n, raw: plaintext, msg: msg}, nil
}

// receiveFirst reads the single frame allowed in AWAIT_CLIENT: either an
// encrypted client-auth (initiator) or an unencrypted client-hello
// (responder). Which one it is can only be determined by attempting
// decryption with the default client_key: it succeeds iff this connection
// is in fact the initiator, since only the initiator's permanent key
// (already known from the path) makes the box open correctly.
func (c *PathClient) receiveFirst(ctx context.Context) (*inboundFrame, error) {
	raw, err := c.transport.Receive(ctx)
	if err != nil {
		return nil, Disconnected(err)
	}
	n, err := parseNonce(raw)
	if err != nil {
		return nil, ProtocolError(err)
	}
	if n.source != AddressServer {
		return nil, ProtocolError(fmt.Errorf("handshake frame source must be 0x00, got %#x", n.source))
	}
	if n.destination != AddressServer {
		return nil, ProtocolError(fmt.Errorf("handshake frame destination must be 0x00, got %#x", n.destination))
	}
	if err := c.checkCookieIn(n.cookie); err != nil {
		return nil, err
	}
	if err := c.checkCSNIn(n.csn); err != nil {
		return nil, err
	}
	payload := raw[NonceLength:]
	arr := nonceArray(n)
	if plaintext, ok := openBox(payload, arr, &c.clientKey, &c.serverSessionKey.Secret); ok {
		msg, err := DecodeMessage(plaintext)
		if err != nil {
			return nil, err
		}
		if msg.Kind() != MsgClientAuth {
			return nil, MessageFlowError(fmt.Errorf("expected client-auth, got %s", msg.Kind()))
		}
		return &inboundFrame{nonce: n, raw: plaintext, msg: msg}, nil
	}
	msg, err := DecodeMessage(payload)
	if err != nil {
		return nil, MessageFlowError(fmt.Errorf("first frame is neither a valid client-auth nor client-hello: %w", err))
	}
	if msg.Kind() != MsgClientHello {
		return nil, MessageFlowError(fmt.Errorf("expected client-hello, got %s", msg.Kind()))
	}
	return &inboundFrame{nonce: n, raw: payload, msg: msg}, nil
}

// buildFrame encodes msg as this client's current outbound frame: plaintext
// for server-hello, otherwise sealed under the session box. It advances
// csn_out.
func (c *PathClient) buildFrame(msg Message) ([]byte, error) {
	if c.csnOut.isOverflow() {
		return nil, InternalError(errors.New("csn_out has overflowed, no further frames can be sent"))
	}
	cookieOut, err := c.CookieOut()
	if err != nil {
		return nil, InternalError(err)
	}
	n := nonce{cookie: cookieOut, source: AddressServer, destination: c.id, csn: c.csnOut}
	plaintext, err := EncodeMessage(msg)
	if err != nil {
		return nil, InternalError(err)
	}
	var payload []byte
	if msg.Kind() == MsgServerHello {
		payload = plaintext
	} else {
		payload = sealBox(plaintext, nonceArray(n), &c.clientKey, &c.serverSessionKey.Secret)
	}
	c.csnOut = c.csnOut.next()
	frame := append(n.bytes(), payload...)
	return frame, nil
}

// Send encodes and transmits a typed message to this client.
func (c *PathClient) Send(ctx context.Context, msg Message) error {
	frame, err := c.buildFrame(msg)
	if err != nil {
		return err
	}
	if err := c.transport.Send(ctx, frame); err != nil {
		return Disconnected(err)
	}
	return nil
}

// sendRawFrame forwards an already-framed relay payload untouched: the
// server never reinterprets a peer-addressed frame's nonce or contents.
func (c *PathClient) sendRawFrame(ctx context.Context, frame []byte) error {
	if err := c.transport.Send(ctx, frame); err != nil {
		return Disconnected(err)
	}
	return nil
}

func addressesToBytes(addrs []Address) []byte {
	b := make([]byte, len(addrs))
	for i, a := range addrs {
		b[i] = byte(a)
	}
	return b
}

// SendServerAuth builds and sends server-auth. signed_keys is a second,
// inner seal of (server_session_public || client_permanent_public) under
// the server's permanent key, reusing the outer frame's nonce — safe
// because the two seals use disjoint key pairs.
func (c *PathClient) SendServerAuth(ctx context.Context, yourCookie Cookie, initiatorConnected *bool, responders []Address) error {
	if c.csnOut.isOverflow() {
		return InternalError(errors.New("csn_out has overflowed, no further frames can be sent"))
	}
	cookieOut, err := c.CookieOut()
	if err != nil {
		return InternalError(err)
	}
	n := nonce{cookie: cookieOut, source: AddressServer, destination: c.id, csn: c.csnOut}
	arr := nonceArray(n)

	inner := make([]byte, 0, KeyLength*2)
	inner = append(inner, c.serverSessionKey.Public[:]...)
	inner = append(inner, c.clientKey[:]...)
	signedKeys := sealBox(inner, arr, &c.clientKey, &c.serverPermanentKey.Secret)

	msg := &ServerAuth{
		Type:               string(MsgServerAuth),
		YourCookie:         append([]byte(nil), yourCookie[:]...),
		SignedKeys:         signedKeys,
		InitiatorConnected: initiatorConnected,
		Responders:         addressesToBytes(responders),
	}
	plaintext, err := EncodeMessage(msg)
	if err != nil {
		return InternalError(err)
	}
	payload := sealBox(plaintext, arr, &c.clientKey, &c.serverSessionKey.Secret)
	c.csnOut = c.csnOut.next()
	frame := append(n.bytes(), payload...)
	if err := c.transport.Send(ctx, frame); err != nil {
		return Disconnected(err)
	}
	return nil
}
