package saltyrtc

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"nhooyr.io/websocket"
)

// HTTPServerConfig configures the front door: WebSocket upgrade dispatch
// plus the small set of ancillary endpoints a deployment needs (spec's
// ambient-stack expansion). Grounded on cmd/ww/server.go's handler/relay
// split: one dispatch function, Upgrade header picks the WebSocket path.
type HTTPServerConfig struct {
	Server     *Server
	ICEServers ICEServerConfig
	// Now defaults to time.Now; overridable for deterministic tests of the
	// TURN credential endpoint.
	Now func() time.Time
	// InfoPage is served, gzip-compressed, for any request that isn't a
	// WebSocket upgrade or one of the ancillary endpoints below.
	InfoPage []byte
}

// NewHandler builds the complete HTTP front door.
func NewHandler(cfg HTTPServerConfig) http.Handler {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	info := gziphandler.GzipHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(cfg.InfoPage)
	}))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ice-servers", func(w http.ResponseWriter, r *http.Request) {
		serveICEServers(w, cfg.ICEServers, cfg.Now())
	})
	mux.HandleFunc("/debug/paths", func(w http.ResponseWriter, r *http.Request) {
		serveDebugPaths(w, cfg.Server)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			serveRelay(w, r, cfg.Server)
			return
		}
		info.ServeHTTP(w, r)
	})
	return mux
}

// serveRelay upgrades the request to a WebSocket, negotiates the
// subprotocol, and hands the connection off to the protocol core.
func serveRelay(w http.ResponseWriter, r *http.Request, srv *Server) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The protocol carries no user session state for an origin check
		// to protect; every connection is anonymous until its own
		// handshake authenticates it.
		InsecureSkipVerify: true,
		Subprotocols:       srv.Subprotocols(),
	})
	if err != nil {
		return
	}
	negotiated := conn.Subprotocol()
	if negotiated == "" || rankOf(srv.Subprotocols(), negotiated) < 0 {
		conn.Close(websocket.StatusCode(CloseProtocolError), "no matching subprotocol")
		return
	}

	pathHex := strings.TrimPrefix(r.URL.Path, "/")
	transport := newWSTransport(conn)
	ServeConnection(r.Context(), srv, transport, pathHex, negotiated)
}

func serveICEServers(w http.ResponseWriter, cfg ICEServerConfig, now time.Time) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(cfg.ICEServers(now))
}

func serveDebugPaths(w http.ResponseWriter, srv *Server) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(srv.Registry().Snapshot())
}
