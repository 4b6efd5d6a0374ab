package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"rsc.io/qr"
)

// qrcmd prints a path URL as a terminal QR code, for an operator standing
// up a demo initiator who wants to hand the URL to a phone camera
// (grounded on cmd/ww/main.go's printcode()).
func qrcmd(log zerolog.Logger, args ...string) {
	set := flag.NewFlagSet(args[0], flag.ExitOnError)
	set.Usage = func() {
		fmt.Fprintf(set.Output(), "print a path URL as a terminal QR code\n\nusage: %s %s <url>\n\nflags:\n", os.Args[0], args[0])
		set.PrintDefaults()
	}
	set.Parse(args[1:])
	if set.NArg() != 1 {
		set.Usage()
		os.Exit(2)
	}
	printQR(set.Output(), set.Arg(0))
}

func printQR(out interface{ Write([]byte) (int, error) }, url string) {
	code, err := qr.Encode(url, qr.L)
	if err != nil {
		fatalf("encode QR code: %v", err)
	}
	for y := 0; y < code.Size; y += 2 {
		for x := 0; x < code.Size; x++ {
			switch {
			case code.Black(x, y) && code.Black(x, y+1):
				fmt.Fprint(out, " ")
			case code.Black(x, y):
				fmt.Fprint(out, "▄")
			case code.Black(x, y+1):
				fmt.Fprint(out, "▀")
			default:
				fmt.Fprint(out, "█")
			}
		}
		fmt.Fprint(out, "\n")
	}
}
