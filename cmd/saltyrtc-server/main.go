// Command saltyrtc-server runs a SaltyRTC signalling/relay server.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

var subcmds = map[string]func(log zerolog.Logger, args ...string){
	"serve":  serve,
	"keygen": keygen,
	"qr":     qrcmd,
}

func usage() {
	w := flag.CommandLine.Output()
	fmt.Fprintf(w, "saltyrtc-server runs a SaltyRTC signalling server.\n\n")
	fmt.Fprintf(w, "usage:\n\n  %s <command> [flags]\n\ncommands:\n", os.Args[0])
	for name := range subcmds {
		fmt.Fprintf(w, "  %s\n", name)
	}
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}
	cmd, ok := subcmds[flag.Arg(0)]
	if !ok {
		usage()
		os.Exit(2)
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	cmd(log, flag.Args()...)
}

func fatalf(format string, v ...interface{}) {
	fmt.Fprintf(flag.CommandLine.Output(), format+"\n", v...)
	os.Exit(1)
}
