package saltyrtc

import "github.com/rs/zerolog"

// The Python original distinguishes two logger levels, notice and trace,
// that carry no behavioural meaning of their own (spec §9, Open Question).
// zerolog already has a built-in TraceLevel below Debug; it has no level
// between Info and Warn for notice (zerolog.Level is a small integer with
// no room to splice one in), so notice is logged at Info with an extra
// field marking it, which is enough to filter on without inventing a level
// the rest of the zerolog ecosystem (and its formatters) doesn't know.
const noticeMarker = "notice"

// Trace logs at zerolog's built-in TraceLevel.
func Trace(log zerolog.Logger) *zerolog.Event { return log.Trace() }

// Notice logs at Info, tagged so it can be told apart from routine info
// logging if an operator wants to.
func Notice(log zerolog.Logger) *zerolog.Event { return log.Info().Str("notice", noticeMarker) }

// PathLogger returns a sub-logger scoped to a path, matching the original
// server's hierarchical logger name "path.<hex-prefix>".
func PathLogger(base zerolog.Logger, pathHex string) zerolog.Logger {
	prefix := pathHex
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return base.With().Str("path", prefix).Logger()
}

// ClientLogger returns a sub-logger scoped to one client on a path. Its
// "client" field is the role of addr (server, initiator or responder), not
// the numeric address.
func ClientLogger(pathLog zerolog.Logger, addr Address) zerolog.Logger {
	return pathLog.With().Str("client", addressLabel(addr)).Logger()
}

func addressLabel(addr Address) string {
	switch {
	case addr.IsServer():
		return "server"
	case addr.IsInitiator():
		return "initiator"
	default:
		return "responder"
	}
}
