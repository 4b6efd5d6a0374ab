package saltyrtc

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// MessageType names one of the handshake/control message kinds. It is the
// "type" field present in every typed (server-addressed) frame.
type MessageType string

const (
	MsgServerHello   MessageType = "server-hello"
	MsgClientHello   MessageType = "client-hello"
	MsgClientAuth    MessageType = "client-auth"
	MsgServerAuth    MessageType = "server-auth"
	MsgNewInitiator  MessageType = "new-initiator"
	MsgNewResponder  MessageType = "new-responder"
	MsgDropResponder MessageType = "drop-responder"
	MsgSendError     MessageType = "send-error"
)

// Message is any decoded or about-to-be-encoded typed (server-addressed)
// payload. Raw relay frames (destination != server) never become a
// Message; they are forwarded as opaque bytes.
type Message interface {
	Kind() MessageType
}

// ServerHello is the server's greeting, sent unencrypted as the very first
// frame on a connection.
type ServerHello struct {
	Type string `msgpack:"type"`
	Key  []byte `msgpack:"key"`
}

func (*ServerHello) Kind() MessageType { return MsgServerHello }

// NewServerHello builds a ServerHello carrying the connection's fresh
// session public key.
func NewServerHello(sessionKey PublicKey) *ServerHello {
	return &ServerHello{Type: string(MsgServerHello), Key: append([]byte(nil), sessionKey[:]...)}
}

// ClientHello is a responder's unencrypted first frame, conveying its
// permanent public key.
type ClientHello struct {
	Type string `msgpack:"type"`
	Key  []byte `msgpack:"key"`
}

func (*ClientHello) Kind() MessageType { return MsgClientHello }

// ClientAuth is the encrypted frame that authenticates a peer (either an
// initiator's first frame, or a responder's second).
type ClientAuth struct {
	Type         string   `msgpack:"type"`
	YourCookie   []byte   `msgpack:"your_cookie"`
	Subprotocols []string `msgpack:"subprotocols"`
	PingInterval *uint32  `msgpack:"ping_interval,omitempty"`
	ServerKey    []byte   `msgpack:"server_key,omitempty"`
}

func (*ClientAuth) Kind() MessageType { return MsgClientAuth }

// ServerAuth is the server's reply completing a peer's authentication.
type ServerAuth struct {
	Type               string `msgpack:"type"`
	YourCookie         []byte `msgpack:"your_cookie"`
	SignedKeys         []byte `msgpack:"signed_keys"`
	InitiatorConnected *bool  `msgpack:"initiator_connected,omitempty"`
	Responders         []byte `msgpack:"responders,omitempty"`
}

func (*ServerAuth) Kind() MessageType { return MsgServerAuth }

// NewInitiator announces a freshly authenticated initiator to an
// already-connected responder. It carries no fields beyond its type.
type NewInitiator struct {
	Type string `msgpack:"type"`
}

func (*NewInitiator) Kind() MessageType { return MsgNewInitiator }

func NewNewInitiator() *NewInitiator { return &NewInitiator{Type: string(MsgNewInitiator)} }

// NewResponder announces a freshly authenticated responder to the
// initiator.
type NewResponder struct {
	Type string `msgpack:"type"`
	ID   byte   `msgpack:"id"`
}

func (*NewResponder) Kind() MessageType { return MsgNewResponder }

func NewNewResponder(id Address) *NewResponder {
	return &NewResponder{Type: string(MsgNewResponder), ID: byte(id)}
}

// DropResponder is sent by the initiator to ask the server to evict a
// responder, optionally with a reason close code.
type DropResponder struct {
	Type   string  `msgpack:"type"`
	ID     byte    `msgpack:"id"`
	Reason *uint16 `msgpack:"reason,omitempty"`
}

func (*DropResponder) Kind() MessageType { return MsgDropResponder }

// SendError notifies a sender that a previously submitted relay frame
// could not be delivered.
type SendError struct {
	Type string `msgpack:"type"`
	ID   []byte `msgpack:"id"`
}

func (*SendError) Kind() MessageType { return MsgSendError }

func NewSendError(id [8]byte) *SendError {
	return &SendError{Type: string(MsgSendError), ID: append([]byte(nil), id[:]...)}
}

// EncodeMessage marshals any typed message to its msgpack representation.
func EncodeMessage(m Message) ([]byte, error) {
	b, err := msgpack.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", m.Kind(), err)
	}
	return b, nil
}

// peekType decodes just enough of a msgpack map to read its "type" field,
// used to dispatch DecodeMessage to the right concrete struct.
func peekType(b []byte) (MessageType, error) {
	var probe struct {
		Type string `msgpack:"type"`
	}
	if err := msgpack.Unmarshal(b, &probe); err != nil {
		return "", fmt.Errorf("decode message envelope: %w", err)
	}
	if probe.Type == "" {
		return "", fmt.Errorf("message missing type field")
	}
	return MessageType(probe.Type), nil
}

// DecodeMessage decodes a server-addressed typed frame's plaintext payload.
// Only the message kinds a server can legally receive are handled:
// client-hello, client-auth, and drop-responder.
func DecodeMessage(b []byte) (Message, error) {
	kind, err := peekType(b)
	if err != nil {
		return nil, ProtocolError(err)
	}
	switch kind {
	case MsgClientHello:
		var m ClientHello
		if err := msgpack.Unmarshal(b, &m); err != nil {
			return nil, ProtocolError(fmt.Errorf("decode client-hello: %w", err))
		}
		if len(m.Key) != KeyLength {
			return nil, ProtocolError(fmt.Errorf("client-hello: key must be %d bytes, got %d", KeyLength, len(m.Key)))
		}
		return &m, nil
	case MsgClientAuth:
		var m ClientAuth
		if err := msgpack.Unmarshal(b, &m); err != nil {
			return nil, ProtocolError(fmt.Errorf("decode client-auth: %w", err))
		}
		if len(m.YourCookie) != cookieLength {
			return nil, ProtocolError(fmt.Errorf("client-auth: your_cookie must be %d bytes, got %d", cookieLength, len(m.YourCookie)))
		}
		if m.ServerKey != nil && len(m.ServerKey) != KeyLength {
			return nil, ProtocolError(fmt.Errorf("client-auth: server_key must be %d bytes, got %d", KeyLength, len(m.ServerKey)))
		}
		return &m, nil
	case MsgDropResponder:
		var m DropResponder
		if err := msgpack.Unmarshal(b, &m); err != nil {
			return nil, ProtocolError(fmt.Errorf("decode drop-responder: %w", err))
		}
		return &m, nil
	default:
		return nil, MessageFlowError(fmt.Errorf("unexpected message type %q from client", kind))
	}
}
