package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/saltyrtc/saltyrtc-server-go/internal/wordlist"
	"github.com/saltyrtc/saltyrtc-server-go/saltyrtc"
)

// keygen generates a fresh server permanent key pair and prints it: the
// secret half is what -key on the serve command expects, the public half
// (hex and as pronounceable words) is what gets handed to clients.
func keygen(log zerolog.Logger, args ...string) {
	set := flag.NewFlagSet(args[0], flag.ExitOnError)
	set.Usage = func() {
		fmt.Fprintf(set.Output(), "generate a new server permanent key pair\n\nusage: %s %s\n\nflags:\n", os.Args[0], args[0])
		set.PrintDefaults()
	}
	set.Parse(args[1:])

	kp, err := saltyrtc.GenerateKeyPair()
	if err != nil {
		fatalf("generate key pair: %v", err)
	}
	out := set.Output()
	fmt.Fprintf(out, "secret key (keep this private, pass to `serve -key`):\n  %s\n\n", hex.EncodeToString(kp.Secret[:]))
	fmt.Fprintf(out, "public key:\n  %s\n  %s\n", hex.EncodeToString(kp.Public[:]), wordlist.Render(kp.Public[:]))
}
