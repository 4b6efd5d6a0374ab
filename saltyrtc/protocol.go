package saltyrtc

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// worker drives one connection's handshake and, once authenticated, its
// three post-handshake activities (spec §4.4, §4.5). It is grounded on
// server.py's ServerProtocol.
type worker struct {
	srv        *Server
	client     *PathClient
	path       *Path
	log        zerolog.Logger
	negotiated string // the subprotocol string the transport actually negotiated
}

// ServeConnection is the server orchestrator's per-connection entry point
// (spec §4.6): it resolves the Path named by pathHex, constructs a Client,
// drives its handshake, and — on success — runs the connection until one
// of its three activities ends it. It returns once the connection is
// fully torn down.
func ServeConnection(ctx context.Context, srv *Server, transport Transport, pathHex, negotiatedSubprotocol string) {
	key, err := decodePathHex(pathHex)
	if err != nil {
		transport.Close(CloseProtocolError, "bad path")
		srv.events.Raise(Event{Kind: EventDisconnected, CloseCode: CloseProtocolError})
		return
	}
	path := srv.registry.Get(key)
	plog := PathLogger(srv.log, path.Hex())

	client, err := NewPathClient(transport, srv.primaryKey(), path.Key(), plog, srv.metrics)
	if err != nil {
		transport.Close(CloseInternalError, "internal error")
		return
	}
	w := &worker{srv: srv, client: client, path: path, log: plog, negotiated: negotiatedSubprotocol}

	if !srv.trackWorker(w) {
		client.CloseTransport(CloseGoingAway, "server shutting down")
		return
	}
	defer srv.untrackWorker(w)

	if err := w.handshake(ctx); err != nil {
		w.terminate(err)
		return
	}
	w.run(ctx)
}

func decodePathHex(s string) (PublicKey, error) {
	var key PublicKey
	if len(s) != KeyLength*2 {
		return key, fmt.Errorf("path must be %d hex characters, got %d", KeyLength*2, len(s))
	}
	for _, r := range s {
		if !((r >= '0' && r <= '9') || (r >= 'a' && r <= 'f')) {
			return key, fmt.Errorf("path must be lowercase hex")
		}
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return key, fmt.Errorf("path is not valid hex: %w", err)
	}
	copy(key[:], b)
	return key, nil
}

// handshake runs GREETING through AUTHENTICATED (spec §4.4).
func (w *worker) handshake(ctx context.Context) error {
	c := w.client
	if err := c.Send(ctx, NewServerHello(c.SessionPublicKey())); err != nil {
		return err
	}
	first, err := c.receiveFirst(ctx)
	if err != nil {
		return err
	}
	switch m := first.msg.(type) {
	case *ClientAuth:
		c.SetRole(RoleInitiator)
		return w.handshakeInitiator(ctx, m)
	case *ClientHello:
		var key PublicKey
		copy(key[:], m.Key)
		c.SetClientKey(key)
		c.SetRole(RoleResponder)
		second, err := c.receiveFrame(ctx)
		if err != nil {
			return err
		}
		auth, ok := second.msg.(*ClientAuth)
		if !ok {
			return MessageFlowError(fmt.Errorf("expected client-auth after client-hello, got %v", second.msg))
		}
		return w.handshakeResponder(ctx, auth)
	default:
		return MessageFlowError(fmt.Errorf("unexpected first message kind %T", m))
	}
}

// authenticateCommon implements _handle_client_auth: cookie check,
// subprotocol/downgrade check, server key selection, optional keep-alive
// override. Shared by both the initiator and responder handshake paths.
func (w *worker) authenticateCommon(auth *ClientAuth) error {
	c := w.client
	cookieOut, err := c.CookieOut()
	if err != nil {
		return InternalError(err)
	}
	if !ConstantTimeEqual(auth.YourCookie, cookieOut[:]) {
		return ProtocolError(errors.New("client-auth: your_cookie does not match"))
	}
	if err := w.checkSubprotocol(auth.Subprotocols); err != nil {
		return err
	}
	key, err := w.srv.selectServerKey(auth.ServerKey)
	if err != nil {
		return err
	}
	c.serverPermanentKey = key
	if auth.PingInterval != nil {
		c.SetKeepAliveInterval(time.Duration(*auth.PingInterval) * time.Second)
	}
	return nil
}

// checkSubprotocol validates that the already-negotiated subprotocol
// appears in the client's offered list, and that the client did not offer
// a subprotocol the server prefers more than the negotiated one (spec
// §4.4's downgrade detection).
func (w *worker) checkSubprotocol(offered []string) error {
	found := false
	for _, s := range offered {
		if s == w.negotiated {
			found = true
			break
		}
	}
	if !found {
		return DowngradeError(fmt.Errorf("client-auth subprotocols do not include negotiated %q", w.negotiated))
	}
	negotiatedRank := rankOf(w.srv.subprotocols, w.negotiated)
	for _, s := range offered {
		if r := rankOf(w.srv.subprotocols, s); r >= 0 && r < negotiatedRank {
			return DowngradeError(fmt.Errorf("client offered %q, more preferred than negotiated %q", s, w.negotiated))
		}
	}
	return nil
}

func rankOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}

// handshakeInitiator completes AUTHENTICATED for an initiator: claims the
// initiator slot (displacing any predecessor), announces to existing
// responders, and replies with server-auth.
func (w *worker) handshakeInitiator(ctx context.Context, auth *ClientAuth) error {
	c := w.client
	if err := w.authenticateCommon(auth); err != nil {
		return err
	}
	previous := w.path.SetInitiator(c)
	c.SetAuthenticated(true)
	w.log = ClientLogger(w.log, c.ID())
	c.SetLog(w.log)
	if previous != nil {
		enqueueClose(previous, CloseDropByInitiator)
	}
	for _, rid := range w.path.ResponderIDs() {
		if r := w.path.GetResponder(rid); r != nil {
			enqueueSend(r, NewNewInitiator())
		}
	}
	if err := c.SendServerAuth(ctx, c.CookieIn(), nil, w.path.ResponderIDs()); err != nil {
		return err
	}
	w.srv.metrics.Handshake(HandshakeResultInitiator)
	w.srv.events.Raise(Event{Kind: EventInitiatorConnected, PathHex: w.path.Hex()})
	Notice(w.log).Msg("initiator authenticated")
	return nil
}

// handshakeResponder completes AUTHENTICATED for a responder: claims a
// free responder slot, announces to the initiator if present, and replies
// with server-auth.
func (w *worker) handshakeResponder(ctx context.Context, auth *ClientAuth) error {
	c := w.client
	if err := w.authenticateCommon(auth); err != nil {
		return err
	}
	if _, err := w.path.AddResponder(c); err != nil {
		return err
	}
	c.SetAuthenticated(true)
	w.log = ClientLogger(w.log, c.ID())
	c.SetLog(w.log)
	initiator := w.path.GetInitiator()
	connected := initiator != nil
	if initiator != nil {
		enqueueSend(initiator, NewNewResponder(c.ID()))
	}
	if err := c.SendServerAuth(ctx, c.CookieIn(), &connected, nil); err != nil {
		return err
	}
	w.srv.metrics.Handshake(HandshakeResultResponder)
	w.srv.events.Raise(Event{Kind: EventResponderConnected, PathHex: w.path.Hex()})
	Notice(w.log).Bool("initiator_connected", connected).Msg("responder authenticated")
	return nil
}

// enqueueSend queues a typed message send as a task on c's own queue —
// the only path to c's transport write side (spec §4.5-A, §5).
func enqueueSend(c *PathClient, msg Message) {
	c.Queue().Enqueue(func(ctx context.Context) error {
		return c.Send(ctx, msg)
	})
}

// enqueueClose queues a close-with-code on c's own queue.
func enqueueClose(c *PathClient, code CloseCode) {
	c.Queue().Enqueue(func(ctx context.Context) error {
		c.CloseTransport(code, code.String())
		return nil
	})
}

// activityResult is one of the three post-handshake activities' outcome.
type activityResult struct {
	name string
	err  error
}

// run drives the three post-handshake activities (spec §4.5) until the
// first of them terminates, then tears the connection down.
func (w *worker) run(ctx context.Context) {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan activityResult, 3)
	go func() { done <- activityResult{"task", w.taskLoop(connCtx)} }()
	go func() {
		var err error
		if w.client.Role() == RoleInitiator {
			err = w.initiatorReceiveLoop(connCtx)
		} else {
			err = w.responderReceiveLoop(connCtx)
		}
		done <- activityResult{"receive", err}
	}()
	go func() { done <- activityResult{"keepalive", w.keepAliveLoop(connCtx)} }()

	var final activityResult
	remaining := 3
	for remaining > 0 {
		r := <-done
		remaining--
		if r.name == "task" && r.err == nil {
			// Early clean exit of the drain activity is non-fatal
			// (spec §4.5-A); keep waiting for the other two.
			continue
		}
		final = r
		cancel()
		break
	}
	for remaining > 0 {
		<-done
		remaining--
	}
	w.terminate(final.err)
}

// taskLoop is activity A: drain the task queue, running each task to
// completion and swallowing its cancellation (spec §4.5-A, §5).
func (w *worker) taskLoop(ctx context.Context) error {
	for {
		t, ok, err := w.client.Queue().Dequeue(ctx)
		if err != nil {
			return nil // context cancelled by another activity's decision
		}
		if !ok {
			return nil // queue closed cleanly
		}
		if terr := t(ctx); terr != nil {
			if errors.Is(terr, context.Canceled) {
				continue
			}
			return terr
		}
	}
}

// initiatorReceiveLoop is activity B for an initiator: expects relay
// frames addressed to a responder, or a drop-responder control message.
func (w *worker) initiatorReceiveLoop(ctx context.Context) error {
	for {
		frame, err := w.client.receiveFrame(ctx)
		if err != nil {
			return err
		}
		if frame.msg != nil {
			dr, ok := frame.msg.(*DropResponder)
			if !ok {
				return MessageFlowError(fmt.Errorf("initiator sent unexpected control message %T", frame.msg))
			}
			if err := w.handleDropResponder(dr); err != nil {
				return err
			}
			continue
		}
		if !frame.nonce.destination.IsResponder() {
			return ProtocolError(fmt.Errorf("initiator relay destination %#x is not a responder slot", frame.nonce.destination))
		}
		w.relay(ctx, frame, w.path.GetResponder(frame.nonce.destination))
	}
}

// responderReceiveLoop is activity B for a responder: only relay frames
// addressed to the initiator are permitted.
func (w *worker) responderReceiveLoop(ctx context.Context) error {
	for {
		frame, err := w.client.receiveFrame(ctx)
		if err != nil {
			return err
		}
		if frame.msg != nil {
			return MessageFlowError(fmt.Errorf("responder sent unexpected control message %T", frame.msg))
		}
		if frame.nonce.destination != AddressInitiator {
			return ProtocolError(fmt.Errorf("responder relay destination must be the initiator, got %#x", frame.nonce.destination))
		}
		w.relay(ctx, frame, w.path.GetInitiator())
	}
}

// handleDropResponder validates and actions a drop-responder control
// message (spec §4.5-B).
func (w *worker) handleDropResponder(dr *DropResponder) error {
	code := CloseDropByInitiator
	if dr.Reason != nil {
		code = CloseCode(*dr.Reason)
		if !ValidDropReason(code) {
			return ProtocolError(fmt.Errorf("drop-responder: %d is not a valid reason", code))
		}
	}
	target := w.path.GetResponder(Address(dr.ID))
	if target == nil {
		return nil
	}
	enqueueClose(target, code)
	return nil
}

// relay forwards one peer-addressed frame verbatim to target, synthesizing
// a send-error back to the sender on a missing target, a failed send, or a
// RELAY_TIMEOUT expiry (spec §4.5-B).
func (w *worker) relay(ctx context.Context, frame *inboundFrame, target *PathClient) {
	id := frame.nonce.frameID()
	if target == nil {
		enqueueSend(w.client, NewSendError(id))
		w.srv.metrics.Relay(RelayResultNoTarget)
		return
	}
	fullFrame := append(frame.nonce.bytes(), frame.raw...)
	result := make(chan error, 1)
	target.Queue().Enqueue(func(taskCtx context.Context) error {
		err := target.sendRawFrame(taskCtx, fullFrame)
		select {
		case result <- err:
		default:
		}
		return err
	})

	relayCtx, cancel := context.WithTimeout(ctx, w.srv.relayTimeout)
	defer cancel()
	select {
	case err := <-result:
		if err != nil {
			enqueueSend(w.client, NewSendError(id))
			w.srv.metrics.Relay(RelayResultError)
			return
		}
		w.srv.metrics.Relay(RelayResultOK)
		Trace(w.log).Uint8("to", uint8(target.ID())).Msg("relayed frame")
	case <-relayCtx.Done():
		enqueueSend(w.client, NewSendError(id))
		w.srv.metrics.Relay(RelayResultTimeout)
	}
}

// keepAliveLoop is activity C: ping on an interval, fatally timing out if
// no pong arrives in time (spec §4.5-C).
func (w *worker) keepAliveLoop(ctx context.Context) error {
	for {
		select {
		case <-time.After(w.client.KeepAliveInterval()):
		case <-ctx.Done():
			return nil
		}
		pingCtx, cancel := context.WithTimeout(ctx, w.client.KeepAliveTimeout())
		err := w.client.Ping(pingCtx)
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil // connection already being torn down by another activity
			}
			return classifyKeepAliveError(err)
		}
	}
}

// terminate maps the deciding activity's error to a close code, closes the
// transport, removes the client from its slot, reaps an empty path, and
// raises the disconnected event (spec §4.5, §7).
func (w *worker) terminate(err error) {
	code := CloseNormal
	var serr *Error
	if err != nil {
		if errors.As(err, &serr) {
			code = serr.Code
		} else {
			code = CloseInternalError
		}
	}
	w.client.CloseTransport(code, code.String())
	w.client.Queue().Close()
	if w.client.Authenticated() {
		w.path.RemoveClient(w.client)
		w.srv.registry.Clean(w.path)
	}
	w.srv.metrics.Disconnect(code)
	w.srv.events.Raise(Event{Kind: EventDisconnected, PathHex: w.path.Hex(), CloseCode: code})
	if serr != nil && serr.Kind != KindDisconnected {
		w.log.Warn().Err(err).Str("close", code.String()).Msg("connection terminated with error")
		return
	}
	w.log.Debug().Str("close", code.String()).Msg("connection closed")
}
