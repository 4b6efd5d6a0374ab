package saltyrtc

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind distinguishes the error taxonomy of spec §7. It is not a Go
// error type itself; Error carries one alongside a close code and the
// underlying cause.
type ErrorKind string

const (
	KindDisconnected     ErrorKind = "disconnected"
	KindProtocolError    ErrorKind = "protocol-error"
	KindMessageFlowError ErrorKind = "message-flow-error"
	KindDowngradeError   ErrorKind = "downgrade-error"
	KindSlotsFullError   ErrorKind = "slots-full-error"
	KindServerKeyError   ErrorKind = "server-key-error"
	KindPingTimeoutError ErrorKind = "ping-timeout-error"
	KindInternalError    ErrorKind = "internal-error"
)

// Error is the taxonomy from spec §7: a Kind for programmatic dispatch, the
// CloseCode that should be sent on the wire, and the underlying cause.
type Error struct {
	Kind ErrorKind
	Code CloseCode
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s (close %d): %v", e.Kind, e.Code, e.Err)
	}
	return fmt.Sprintf("%s (close %d)", e.Kind, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, code CloseCode, err error) *Error {
	return &Error{Kind: kind, Code: code, Err: err}
}

// Disconnected wraps a transport-level termination. It is not a failure;
// callers treat it as clean termination of the connection's worker.
func Disconnected(err error) *Error { return newError(KindDisconnected, CloseNormal, err) }

// ProtocolError reports a malformed frame: bad shape, bad cookie, bad CSN,
// bad address.
func ProtocolError(err error) *Error {
	return newError(KindProtocolError, CloseHandshakeError, err)
}

// MessageFlowError reports a message that is well-formed but unexpected at
// the current state.
func MessageFlowError(err error) *Error {
	return newError(KindMessageFlowError, CloseHandshakeError, err)
}

// DowngradeError reports a detected subprotocol downgrade attempt.
func DowngradeError(err error) *Error {
	return newError(KindDowngradeError, CloseHandshakeError, err)
}

// SlotsFullError reports that a Path has no free responder slot.
func SlotsFullError(err error) *Error {
	return newError(KindSlotsFullError, ClosePathFull, err)
}

// ServerKeyError reports that a requested server permanent key is missing,
// or no server permanent key is configured at all.
func ServerKeyError(err error) *Error {
	return newError(KindServerKeyError, CloseInvalidKey, err)
}

// PingTimeoutError reports that no pong arrived within the keep-alive
// timeout.
func PingTimeoutError(err error) *Error {
	return newError(KindPingTimeoutError, CloseTimeout, err)
}

// InternalError reports a server-side invariant violation.
func InternalError(err error) *Error {
	return newError(KindInternalError, CloseInternalError, err)
}

// classifyContext maps the two stdlib context sentinels to a timeout/abort
// shaped Error, falling back to a caller-chosen default. It mirrors the
// "check context first, then domain sentinels" structure common to the
// classify-style helpers used elsewhere in this codebase.
func classifyContext(err error, onDeadline, onCancel func(error) *Error) (*Error, bool) {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return onDeadline(err), true
	case errors.Is(err, context.Canceled):
		return onCancel(err), true
	default:
		return nil, false
	}
}

// classifyRelayError turns a failure awaiting a relayed send into the
// close/kind pair used to decide whether to synthesize a send-error
// (always) and whether the relaying worker itself should terminate (never,
// relay failures are expected and handled locally).
func classifyRelayError(err error) *Error {
	if se, ok := classifyContext(err, InternalError, InternalError); ok {
		return se
	}
	var asErr *Error
	if errors.As(err, &asErr) {
		return asErr
	}
	return InternalError(err)
}

// classifyKeepAliveError turns a keep-alive failure into the PingTimeout
// error when caused by a deadline, otherwise treats it as a plain
// disconnect.
func classifyKeepAliveError(err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return PingTimeoutError(err)
	}
	return Disconnected(err)
}
