package main

import (
	"context"
	"crypto/tls"
	"encoding/hex"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/acme/autocert"

	"github.com/saltyrtc/saltyrtc-server-go/internal/wordlist"
	"github.com/saltyrtc/saltyrtc-server-go/saltyrtc"
)

const defaultSubprotocol = "v1.saltyrtc.org"

const infoPage = `<!doctype html>
<meta charset=utf-8>
<title>SaltyRTC signalling server</title>
<p>This is a SaltyRTC signalling server. Connect over WebSocket at
<code>/&lt;path&gt;</code> with subprotocol <code>v1.saltyrtc.org</code>.
`

// serve runs the signalling server until terminated (spec's HTTP/WS front
// door, grounded on cmd/ww/server.go's server() flag and listener setup).
func serve(log zerolog.Logger, args ...string) {
	set := flag.NewFlagSet(args[0], flag.ExitOnError)
	set.Usage = func() {
		fmt.Fprintf(set.Output(), "run the saltyrtc signalling server\n\nusage: %s %s\n\nflags:\n", os.Args[0], args[0])
		set.PrintDefaults()
	}
	httpAddr := set.String("http", ":8765", "http listen address")
	httpsAddr := set.String("https", "", "https listen address (enables TLS via Let's Encrypt when set)")
	hosts := set.String("hosts", "", "comma separated hostnames to request Let's Encrypt certs for")
	certCache := set.String("cert-cache", os.Getenv("HOME")+"/.saltyrtc-certs", "directory to cache Let's Encrypt certificates in")
	keyHex := set.String("key", "", "hex-encoded server permanent secret key (generates an ephemeral one if empty)")
	stunList := set.String("stun", "stun:stun.l.google.com:19302", "comma separated STUN server URLs to advertise")
	turnServer := set.String("turn", "", "TURN server URL to advertise")
	turnSecret := set.String("turn-secret", "", "shared secret for HMAC-based ephemeral TURN credentials")
	subprotocol := set.String("subprotocol", defaultSubprotocol, "WebSocket subprotocol to accept")
	relayTimeout := set.Duration("relay-timeout", saltyrtc.DefaultRelayTimeout, "how long a relay waits for peer delivery before synthesizing send-error")
	set.Parse(args[1:])

	if *turnServer != "" && *turnSecret == "" {
		fatalf("cannot use a TURN server without -turn-secret")
	}

	keys := []*saltyrtc.KeyPair{loadOrGenerateKey(log, *keyHex)}

	// The /metrics endpoint serves the default registry.
	metrics := saltyrtc.NewPrometheusObserver(prometheus.DefaultRegisterer)

	srv := saltyrtc.NewServer(saltyrtc.ServerConfig{
		Keys:         keys,
		Subprotocols: []string{*subprotocol},
		RelayTimeout: *relayTimeout,
		Metrics:      metrics,
		Log:          log,
	})
	srv.OnEvent(saltyrtc.EventInitiatorConnected, func(ev saltyrtc.Event) {
		log.Info().Str("path", ev.PathHex).Msg("initiator connected")
	})
	srv.OnEvent(saltyrtc.EventResponderConnected, func(ev saltyrtc.Event) {
		log.Info().Str("path", ev.PathHex).Msg("responder connected")
	})
	srv.OnEvent(saltyrtc.EventDisconnected, func(ev saltyrtc.Event) {
		log.Debug().Str("path", ev.PathHex).Str("close", ev.CloseCode.String()).Msg("client disconnected")
	})

	handler := saltyrtc.NewHandler(saltyrtc.HTTPServerConfig{
		Server: srv,
		ICEServers: saltyrtc.ICEServerConfig{
			STUNServers: strings.Split(*stunList, ","),
			TURNServer:  *turnServer,
			TURNSecret:  *turnSecret,
		},
		InfoPage: []byte(infoPage),
	})

	httpServer := &http.Server{
		Addr:         *httpAddr,
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Minute,
		IdleTimeout:  20 * time.Second,
	}

	var httpsServer *http.Server
	if *httpsAddr != "" {
		m := &autocert.Manager{
			Cache:      autocert.DirCache(*certCache),
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(strings.Split(*hosts, ",")...),
		}
		httpServer.Handler = m.HTTPHandler(handler)
		httpsServer = &http.Server{
			Addr:         *httpsAddr,
			Handler:      handler,
			TLSConfig:    &tls.Config{GetCertificate: m.GetCertificate},
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Minute,
			IdleTimeout:  20 * time.Second,
		}
		go func() {
			log.Info().Str("addr", *httpsAddr).Msg("listening (https)")
			if err := httpsServer.ListenAndServeTLS("", ""); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("https server stopped")
			}
		}()
	}

	go func() {
		log.Info().Str("addr", *httpAddr).Msg("listening (http)")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server stopped")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	srv.Shutdown(shutdownCtx)
	httpServer.Shutdown(shutdownCtx)
	if httpsServer != nil {
		httpsServer.Shutdown(shutdownCtx)
	}
}

func loadOrGenerateKey(log zerolog.Logger, keyHex string) *saltyrtc.KeyPair {
	if keyHex == "" {
		kp, err := saltyrtc.GenerateKeyPair()
		if err != nil {
			fatalf("generate ephemeral server key: %v", err)
		}
		log.Warn().
			Str("public_key", hex.EncodeToString(kp.Public[:])).
			Msg("no -key given, generated an ephemeral server key; it will change on restart")
		return kp
	}
	b, err := hex.DecodeString(keyHex)
	if err != nil || len(b) != saltyrtc.KeyLength {
		fatalf("-key must be %d hex-encoded bytes", saltyrtc.KeyLength)
	}
	var secret saltyrtc.SecretKey
	copy(secret[:], b)
	kp := saltyrtc.KeyPairFromSecret(secret)
	log.Info().
		Str("public_key", hex.EncodeToString(kp.Public[:])).
		Str("public_key_words", wordlist.Render(kp.Public[:])).
		Msg("loaded server permanent key")
	return kp
}
