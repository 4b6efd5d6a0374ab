package saltyrtc

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

const (
	cookieLength = 16
	// NonceLength is the fixed size of the nonce that precedes every
	// frame's payload: cookie(16) || source(1) || destination(1) || csn(6).
	NonceLength = cookieLength + 1 + 1 + 6
)

// Cookie is the 16-byte per-connection-per-direction value that binds a
// conversation (spec §4.1).
type Cookie [cookieLength]byte

// newCookie draws 16 random bytes.
func newCookie() (Cookie, error) {
	var c Cookie
	if _, err := rand.Read(c[:]); err != nil {
		return c, fmt.Errorf("generate cookie: %w", err)
	}
	return c, nil
}

// csn is the 48-bit combined sequence number, plus a sentinel value
// (csnOverflow) distinct from every representable 48-bit number. All 64
// bits are set in the sentinel; a real CSN never needs more than 48.
type csn uint64

const csnMax = 1 << 48

// csnOverflow is the terminal tag a csn transitions into once it cannot
// advance without exceeding csnMax (spec §9 "Overflow sentinel").
const csnOverflow csn = ^csn(0)

// isOverflow reports whether c is the overflow sentinel.
func (c csn) isOverflow() bool { return c == csnOverflow }

// next returns the CSN that follows c, or the overflow sentinel if
// incrementing would cross csnMax.
func (c csn) next() csn {
	if c.isOverflow() {
		return csnOverflow
	}
	n := c + 1
	if n >= csnMax {
		return csnOverflow
	}
	return n
}

// randomInitialOut draws a CSN suitable for initializing csn_out: a 32-bit
// random value in the low half, upper 16 bits zero (spec §3).
func randomInitialOut() (csn, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("generate initial csn: %w", err)
	}
	return csn(binary.BigEndian.Uint32(b[:])), nil
}

// checkInitial validates the first inbound CSN: its upper 16 bits must be
// zero (spec §4.1(b), invariant 4).
func checkInitial(c csn) bool {
	return c < (1 << 32)
}

// nonce is the 24-byte value prefixing every frame's payload.
type nonce struct {
	cookie      Cookie
	source      Address
	destination Address
	csn         csn
}

// bytes encodes the nonce as cookie(16) || source(1) || destination(1) ||
// csn(6, big-endian).
func (n nonce) bytes() []byte {
	buf := make([]byte, NonceLength)
	copy(buf[:cookieLength], n.cookie[:])
	buf[cookieLength] = byte(n.source)
	buf[cookieLength+1] = byte(n.destination)
	putUint48(buf[cookieLength+2:], uint64(n.csn))
	return buf
}

// frameID returns the 8 bytes of the nonce immediately following the
// cookie: source || destination || csn. This is the value carried in a
// send-error message's id field (spec §4.5-B).
func (n nonce) frameID() [8]byte {
	var id [8]byte
	id[0] = byte(n.source)
	id[1] = byte(n.destination)
	putUint48(id[2:], uint64(n.csn))
	return id
}

// parseNonce decodes the first NonceLength bytes of buf. It returns an
// error if buf is shorter than NonceLength.
func parseNonce(buf []byte) (nonce, error) {
	var n nonce
	if len(buf) < NonceLength {
		return n, fmt.Errorf("nonce: short frame (%d bytes)", len(buf))
	}
	copy(n.cookie[:], buf[:cookieLength])
	n.source = Address(buf[cookieLength])
	n.destination = Address(buf[cookieLength+1])
	n.csn = csn(getUint48(buf[cookieLength+2 : NonceLength]))
	return n, nil
}

func putUint48(b []byte, v uint64) {
	b[0] = byte(v >> 40)
	b[1] = byte(v >> 32)
	b[2] = byte(v >> 24)
	b[3] = byte(v >> 16)
	b[4] = byte(v >> 8)
	b[5] = byte(v)
}

func getUint48(b []byte) uint64 {
	return uint64(b[0])<<40 | uint64(b[1])<<32 | uint64(b[2])<<24 |
		uint64(b[3])<<16 | uint64(b[4])<<8 | uint64(b[5])
}
