package saltyrtc

import (
	"testing"
	"time"
)

func TestICEServersIncludesSTUNOnly(t *testing.T) {
	cfg := ICEServerConfig{STUNServers: []string{"stun:stun.example.org", ""}}
	servers := cfg.ICEServers(time.Unix(0, 0))
	if len(servers) != 1 {
		t.Fatalf("expected 1 STUN entry (blank filtered), got %d", len(servers))
	}
	if servers[0].URLs[0] != "stun:stun.example.org" {
		t.Fatalf("unexpected STUN URL %v", servers[0].URLs)
	}
}

func TestICEServersTURNCredentialIsDeterministicForFixedClock(t *testing.T) {
	cfg := ICEServerConfig{TURNServer: "turn:turn.example.org", TURNSecret: "s3cr3t"}
	now := time.Unix(1_700_000_000, 0)
	a := cfg.ICEServers(now)
	b := cfg.ICEServers(now)
	if len(a) != 1 || len(b) != 1 {
		t.Fatalf("expected exactly one TURN entry")
	}
	if a[0].Username != b[0].Username || a[0].Credential != b[0].Credential {
		t.Fatal("same clock reading should produce the same ephemeral credential")
	}
	later := cfg.ICEServers(now.Add(time.Hour))
	if later[0].Username == a[0].Username {
		t.Fatal("credential username should change as the clock advances")
	}
}
