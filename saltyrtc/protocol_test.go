package saltyrtc

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// handshakeHarness drives one connection's handshake manually, playing the
// role of a real SaltyRTC client against a real worker/Server.
type handshakeHarness struct {
	t         *testing.T
	transport *fakeTransport
	perm      *KeyPair // the simulated peer's own permanent key pair
	cookieIn  Cookie   // this simulated peer's cookie_out, i.e. the server's cookie_in
	csnOut    csn

	serverSessionKey PublicKey
	serverCookie     Cookie // server's cookie_out == this client's cookie_in
}

func newHandshakeHarness(t *testing.T, perm *KeyPair) *handshakeHarness {
	t.Helper()
	var cookie Cookie
	copy(cookie[:], []byte("client-cookie-0123456789"))
	return &handshakeHarness{
		t:         t,
		transport: newFakeTransport(),
		perm:      perm,
		cookieIn:  cookie,
	}
}

// readServerHello consumes the first frame the server sends and records its
// session key and cookie.
func (h *handshakeHarness) readServerHello() {
	h.t.Helper()
	raw := h.nextSent()
	n, err := parseNonce(raw)
	if err != nil {
		h.t.Fatalf("parse server-hello nonce: %v", err)
	}
	// DecodeMessage only accepts client-sent kinds, so decode directly.
	var hello ServerHello
	if err := msgpack.Unmarshal(raw[NonceLength:], &hello); err != nil {
		h.t.Fatalf("decode server-hello: %v", err)
	}
	if hello.Type != string(MsgServerHello) {
		h.t.Fatalf("expected server-hello, got %q", hello.Type)
	}
	copy(h.serverSessionKey[:], hello.Key)
	h.serverCookie = n.cookie
}

// sendClientAuth builds and pushes an encrypted client-auth frame, as an
// initiator's first frame or a responder's second frame would look.
func (h *handshakeHarness) sendClientAuth(subprotocol string) {
	h.t.Helper()
	auth := &ClientAuth{
		Type:         string(MsgClientAuth),
		YourCookie:   append([]byte(nil), h.serverCookie[:]...),
		Subprotocols: []string{subprotocol},
	}
	h.sendEncrypted(auth)
}

// sendEncrypted pushes msg as a handshake-time frame, source and
// destination both 0x00 — valid only before the client has been assigned
// a slot address (client-auth, sent as the initiator's first frame or the
// responder's second).
func (h *handshakeHarness) sendEncrypted(msg Message) {
	h.t.Helper()
	h.sendControl(AddressServer, msg)
}

// sendControl pushes msg as a post-handshake, server-addressed control
// frame (e.g. drop-responder) from own, the caller's assigned slot address.
func (h *handshakeHarness) sendControl(own Address, msg Message) {
	h.t.Helper()
	plaintext, err := EncodeMessage(msg)
	if err != nil {
		h.t.Fatalf("encode %s: %v", msg.Kind(), err)
	}
	n := nonce{cookie: h.cookieIn, source: own, destination: AddressServer, csn: h.csnOut}
	h.csnOut = h.csnOut.next()
	ciphertext := sealBox(plaintext, nonceArray(n), &h.serverSessionKey, &h.perm.Secret)
	h.transport.push(append(n.bytes(), ciphertext...))
}

func (h *handshakeHarness) nextSent() []byte {
	h.t.Helper()
	select {
	case b := <-h.transport.sentCh:
		return b
	case <-time.After(time.Second):
		h.t.Fatal("timed out waiting for a frame to be sent")
		return nil
	}
}

// readServerAuth consumes and decrypts the server's server-auth reply.
func (h *handshakeHarness) readServerAuth() *ServerAuth {
	h.t.Helper()
	raw := h.nextSent()
	n, err := parseNonce(raw)
	if err != nil {
		h.t.Fatalf("parse server-auth nonce: %v", err)
	}
	plaintext, ok := openBox(raw[NonceLength:], nonceArray(n), &h.serverSessionKey, &h.perm.Secret)
	if !ok {
		h.t.Fatal("could not decrypt server-auth")
	}
	msg, err := peekType(plaintext)
	if err != nil || msg != MsgServerAuth {
		h.t.Fatalf("expected server-auth, got kind=%v err=%v", msg, err)
	}
	var auth ServerAuth
	if err := msgpack.Unmarshal(plaintext, &auth); err != nil {
		h.t.Fatalf("decode server-auth: %v", err)
	}
	return &auth
}

// sendRelay pushes a raw relay frame as if sent from own (the harness's
// assigned address) to dest, carrying payload verbatim — relay frames are
// never encrypted by the server, so the harness does not seal them either.
func (h *handshakeHarness) sendRelay(own, dest Address, payload []byte) {
	h.t.Helper()
	n := nonce{cookie: h.cookieIn, source: own, destination: dest, csn: h.csnOut}
	h.csnOut = h.csnOut.next()
	h.transport.push(append(n.bytes(), payload...))
}

// readEncrypted consumes the next sent frame, decrypts it under the
// session box, and decodes its "type" field and full body into dst (a
// pointer to one of the client-received message structs).
func (h *handshakeHarness) readEncrypted(dst interface{}) (MessageType, nonce) {
	h.t.Helper()
	raw := h.nextSent()
	n, err := parseNonce(raw)
	if err != nil {
		h.t.Fatalf("parse nonce: %v", err)
	}
	plaintext, ok := openBox(raw[NonceLength:], nonceArray(n), &h.serverSessionKey, &h.perm.Secret)
	if !ok {
		h.t.Fatal("could not decrypt frame")
	}
	kind, err := peekType(plaintext)
	if err != nil {
		h.t.Fatalf("peek type: %v", err)
	}
	if err := msgpack.Unmarshal(plaintext, dst); err != nil {
		h.t.Fatalf("decode %s: %v", kind, err)
	}
	return kind, n
}

func testServer(t *testing.T) (*Server, *KeyPair) {
	t.Helper()
	srvKey, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate server key: %v", err)
	}
	srv := NewServer(ServerConfig{
		Keys:         []*KeyPair{srvKey},
		Subprotocols: []string{"v1.saltyrtc.org"},
		RelayTimeout: 2 * time.Second,
		Log:          zerolog.Nop(),
	})
	return srv, srvKey
}

func TestHandshakeInitiatorSucceedsAndReturnsEmptyResponderList(t *testing.T) {
	initKey, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate initiator key: %v", err)
	}
	srv, _ := testServer(t)
	pathHex := hex.EncodeToString(initKey.Public[:])

	h := newHandshakeHarness(t, initKey)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ServeConnection(ctx, srv, h.transport, pathHex, "v1.saltyrtc.org")

	h.readServerHello()
	h.sendClientAuth("v1.saltyrtc.org")
	auth := h.readServerAuth()

	if len(auth.Responders) != 0 {
		t.Fatalf("expected no responders yet, got %v", auth.Responders)
	}
	if len(auth.SignedKeys) == 0 {
		t.Fatal("expected non-empty signed_keys")
	}
	if string(auth.YourCookie) != string(h.cookieIn[:]) {
		t.Fatal("server-auth your_cookie does not echo the client's cookie")
	}

	path := srv.Registry().Get(initKey.Public)
	if path.GetInitiator() == nil {
		t.Fatal("expected initiator to occupy the path's initiator slot")
	}
}

func TestHandshakeInitiatorTakeoverClosesPredecessor(t *testing.T) {
	initKey, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate initiator key: %v", err)
	}
	srv, _ := testServer(t)
	pathHex := hex.EncodeToString(initKey.Public[:])

	h1 := newHandshakeHarness(t, initKey)
	ctx1, cancel1 := context.WithCancel(context.Background())
	defer cancel1()
	go ServeConnection(ctx1, srv, h1.transport, pathHex, "v1.saltyrtc.org")
	h1.readServerHello()
	h1.sendClientAuth("v1.saltyrtc.org")
	h1.readServerAuth()

	h2 := newHandshakeHarness(t, initKey)
	ctx2, cancel2 := context.WithCancel(context.Background())
	defer cancel2()
	go ServeConnection(ctx2, srv, h2.transport, pathHex, "v1.saltyrtc.org")
	h2.readServerHello()
	h2.sendClientAuth("v1.saltyrtc.org")
	h2.readServerAuth()

	select {
	case <-h1.transport.done:
	case <-time.After(time.Second):
		t.Fatal("displaced initiator was never closed")
	}
	if h1.transport.closeCode != CloseDropByInitiator {
		t.Fatalf("displaced initiator closed with %v, want CloseDropByInitiator", h1.transport.closeCode)
	}
}

func TestHandshakeRejectsUnknownSubprotocol(t *testing.T) {
	initKey, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate initiator key: %v", err)
	}
	srv, _ := testServer(t)
	pathHex := hex.EncodeToString(initKey.Public[:])

	h := newHandshakeHarness(t, initKey)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ServeConnection(ctx, srv, h.transport, pathHex, "v1.saltyrtc.org")
	h.readServerHello()
	h.sendClientAuth("some-other-protocol")

	select {
	case <-h.transport.done:
	case <-time.After(time.Second):
		t.Fatal("expected connection to be closed after an unrecognised subprotocol")
	}
	if h.transport.closeCode != CloseHandshakeError {
		t.Fatalf("closed with %v, want CloseHandshakeError", h.transport.closeCode)
	}
}

// connectPair brings up one initiator and one responder on the same path
// and drains the announcement each receives about the other, returning both
// harnesses ready for relay traffic.
func connectPair(t *testing.T, srv *Server) (initiator, responder *handshakeHarness) {
	t.Helper()
	initKey, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate initiator key: %v", err)
	}
	pathHex := hex.EncodeToString(initKey.Public[:])

	hi := newHandshakeHarness(t, initKey)
	go ServeConnection(context.Background(), srv, hi.transport, pathHex, "v1.saltyrtc.org")
	hi.readServerHello()
	hi.sendClientAuth("v1.saltyrtc.org")
	hi.readServerAuth()

	respKey, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate responder key: %v", err)
	}
	hr := newHandshakeHarness(t, respKey)
	go ServeConnection(context.Background(), srv, hr.transport, pathHex, "v1.saltyrtc.org")
	hr.readServerHello()
	// A responder's first frame is an unencrypted client-hello.
	hello, err := EncodeMessage(&ClientHello{Type: string(MsgClientHello), Key: append([]byte(nil), respKey.Public[:]...)})
	if err != nil {
		t.Fatalf("encode client-hello: %v", err)
	}
	helloNonce := nonce{cookie: hr.cookieIn, source: AddressServer, destination: AddressServer, csn: hr.csnOut}
	hr.csnOut = hr.csnOut.next()
	hr.transport.push(append(helloNonce.bytes(), hello...))
	hr.sendClientAuth("v1.saltyrtc.org")
	auth := hr.readServerAuth()
	if auth.InitiatorConnected == nil || !*auth.InitiatorConnected {
		t.Fatal("expected server-auth to report the initiator already connected")
	}

	var newResponder NewResponder
	kind, _ := hi.readEncrypted(&newResponder)
	if kind != MsgNewResponder {
		t.Fatalf("expected new-responder, got %v", kind)
	}
	if Address(newResponder.ID) != AddressResponderFirst {
		t.Fatalf("responder announced with id %#x, want %#x", newResponder.ID, AddressResponderFirst)
	}
	return hi, hr
}

func TestRelayForwardsFrameBetweenInitiatorAndResponder(t *testing.T) {
	srv, _ := testServer(t)
	hi, hr := connectPair(t, srv)

	payload := []byte("candidate line")
	hr.sendRelay(AddressResponderFirst, AddressInitiator, payload)

	raw := hi.nextSent()
	n, err := parseNonce(raw)
	if err != nil {
		t.Fatalf("parse nonce: %v", err)
	}
	if n.source != AddressResponderFirst || n.destination != AddressInitiator {
		t.Fatalf("unexpected relay nonce %+v", n)
	}
	if string(raw[NonceLength:]) != string(payload) {
		t.Fatalf("relay payload = %q, want %q", raw[NonceLength:], payload)
	}
}

func TestRelayToMissingResponderSynthesizesSendError(t *testing.T) {
	srv, _ := testServer(t)
	hi, _ := connectPair(t, srv)

	// AddressResponderFirst+1 is a free slot: nothing occupies it.
	hi.sendRelay(AddressInitiator, AddressResponderFirst+1, []byte("unreachable"))

	var sendErr SendError
	kind, _ := hi.readEncrypted(&sendErr)
	if kind != MsgSendError {
		t.Fatalf("expected send-error, got %v", kind)
	}
}

func TestDropResponderEvictsNamedSlot(t *testing.T) {
	srv, _ := testServer(t)
	hi, hr := connectPair(t, srv)

	dr := &DropResponder{Type: string(MsgDropResponder), ID: byte(AddressResponderFirst)}
	hi.sendControl(AddressInitiator, dr)

	select {
	case <-hr.transport.done:
	case <-time.After(time.Second):
		t.Fatal("dropped responder was never closed")
	}
	if hr.transport.closeCode != CloseDropByInitiator {
		t.Fatalf("responder closed with %v, want CloseDropByInitiator", hr.transport.closeCode)
	}
}
