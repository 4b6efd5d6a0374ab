package saltyrtc

import "testing"

func TestEncodeDecodeClientHello(t *testing.T) {
	key := PublicKey{1, 2, 3}
	m := &ClientHello{Type: string(MsgClientHello), Key: append([]byte(nil), key[:]...)}
	b, err := EncodeMessage(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeMessage(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded.(*ClientHello)
	if !ok {
		t.Fatalf("decoded to %T, want *ClientHello", decoded)
	}
	if string(got.Key) != string(key[:]) {
		t.Fatalf("key mismatch")
	}
}

func TestDecodeClientHelloBadKeyLength(t *testing.T) {
	m := &ClientHello{Type: string(MsgClientHello), Key: []byte{1, 2, 3}}
	b, err := EncodeMessage(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeMessage(b); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestDecodeRejectsServerOnlyMessage(t *testing.T) {
	m := NewServerHello(PublicKey{})
	b, err := EncodeMessage(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := DecodeMessage(b); err == nil {
		t.Fatal("expected error decoding a server-only message kind from a client")
	}
}

func TestNewSendErrorCarriesFrameID(t *testing.T) {
	id := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	m := NewSendError(id)
	if string(m.ID) != string(id[:]) {
		t.Fatalf("send-error id mismatch")
	}
}
