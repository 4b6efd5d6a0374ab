package saltyrtc

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/pion/webrtc/v3"
)

// TURNCredentialTTL is how long an HMAC-based ephemeral TURN credential
// advertised by ICEServers remains valid.
const TURNCredentialTTL = 24 * time.Hour

// ICEServerConfig configures the /ice-servers endpoint: a fixed list of
// STUN servers, plus an optional TURN server advertised with a fresh
// HMAC-signed ephemeral credential per request.
type ICEServerConfig struct {
	STUNServers []string
	TURNServer  string
	TURNSecret  string
}

// ICEServers returns the STUN entries plus, if a TURN server is
// configured, one entry with an ephemeral username/credential pair
// generated per the TURN REST API convention used by
// draft-uberti-behave-turn-rest-00: username is a credential expiry
// timestamp, credential is HMAC-SHA1(secret, username).
func (cfg ICEServerConfig) ICEServers(now time.Time) []webrtc.ICEServer {
	var servers []webrtc.ICEServer
	if cfg.TURNServer != "" {
		username := fmt.Sprintf("%d:saltyrtc", now.Add(TURNCredentialTTL).Unix())
		mac := hmac.New(sha1.New, []byte(cfg.TURNSecret))
		mac.Write([]byte(username))
		servers = append(servers, webrtc.ICEServer{
			URLs:       []string{cfg.TURNServer},
			Username:   username,
			Credential: base64.StdEncoding.EncodeToString(mac.Sum(nil)),
		})
	}
	for _, s := range cfg.STUNServers {
		if s == "" {
			continue
		}
		servers = append(servers, webrtc.ICEServer{URLs: []string{s}})
	}
	return servers
}
