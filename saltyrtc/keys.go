package saltyrtc

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/nacl/box"
)

// KeyLength is the size in bytes of a NaCl box public or secret key.
const KeyLength = 32

// PublicKey and SecretKey are NaCl box key halves.
type PublicKey [KeyLength]byte
type SecretKey [KeyLength]byte

// KeyPair is a public/secret key pair, used for both session keys
// (generated fresh per connection) and permanent keys (long-lived,
// configured by the operator).
type KeyPair struct {
	Public PublicKey
	Secret SecretKey
}

// GenerateKeyPair creates a fresh NaCl box key pair, used for a
// connection's server_session_key (spec §3).
func GenerateKeyPair() (*KeyPair, error) {
	pub, sec, err := box.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate key pair: %w", err)
	}
	kp := &KeyPair{}
	copy(kp.Public[:], pub[:])
	copy(kp.Secret[:], sec[:])
	return kp, nil
}

// KeyPairFromSecret reconstructs the public half of a previously generated
// secret key, for loading an operator-configured permanent key (the serve
// command's hex-encoded -key flag).
func KeyPairFromSecret(secret SecretKey) *KeyPair {
	var pub [KeyLength]byte
	curve25519.ScalarBaseMult(&pub, (*[KeyLength]byte)(&secret))
	return &KeyPair{Public: PublicKey(pub), Secret: secret}
}

// sealBox authenticated-encrypts message to peerPublic using ownSecret and
// the given 24-byte nonce, returning ciphertext with a 16-byte Poly1305 tag
// appended (box.Overhead).
func sealBox(message []byte, n *[24]byte, peerPublic *PublicKey, ownSecret *SecretKey) []byte {
	pub := (*[KeyLength]byte)(peerPublic)
	sec := (*[KeyLength]byte)(ownSecret)
	return box.Seal(nil, message, n, pub, sec)
}

// openBox authenticated-decrypts ciphertext sealed by sealBox. The bool is
// false if authentication failed.
func openBox(ciphertext []byte, n *[24]byte, peerPublic *PublicKey, ownSecret *SecretKey) ([]byte, bool) {
	pub := (*[KeyLength]byte)(peerPublic)
	sec := (*[KeyLength]byte)(ownSecret)
	return box.Open(nil, ciphertext, n, pub, sec)
}

// ConstantTimeEqual compares two byte slices in constant time, matching
// the original server's util.consteq used to validate your_cookie.
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}
