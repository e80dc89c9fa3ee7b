// Command rdtsend reads lines from stdin (or a file) and streams them
// reliably to an rdtrecv peer over UDP, pipelining under a sliding
// window and retransmitting on timeout or NACK.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/iocat/rdt-udt/internal/rdtlog"
	"github.com/iocat/rdt-udt/rdt"
)

var (
	srcPort    = flag.Int("s", 0, "local UDP port to send from (required)")
	dstPort    = flag.Int("d", 0, "remote UDP port to send to (required)")
	addr       = flag.String("addr", rdt.DefaultHost, "remote host to send to")
	window     = flag.Int("window", rdt.DefaultWindowSize, "sliding window size")
	retry      = flag.Duration("retry", rdt.DefaultRetry, "retransmit sweep interval")
	linkDelay  = flag.Duration("link-delay", rdt.DefaultLinkDelay, "slot age before a packet is considered lost")
	maxRetries = flag.Int("max-retries", 0, "give up on a slot after this many retransmits (0 = unlimited)")
	inPath     = flag.String("in", "", "read input from this file instead of stdin")
	verbose    = flag.Bool("v", false, "enable debug logging")
)

func main() {
	flag.Parse()
	log := rdtlog.New("sender", *verbose)

	if *srcPort == 0 || *dstPort == 0 {
		log.Fatal("both -s (local port) and -d (remote port) are required")
	}
	if flag.NArg() > 0 {
		log.WithField("args", flag.Args()).Warn("ignoring unexpected positional arguments")
	}

	in := os.Stdin
	if *inPath != "" {
		f, err := os.Open(*inPath)
		if err != nil {
			log.WithError(err).Fatalf("open input file %s", *inPath)
		}
		defer f.Close()
		in = f
	}

	local, err := net.ResolveUDPAddr("udp", fmt.Sprintf(":%d", *srcPort))
	if err != nil {
		log.WithError(err).Fatal("resolve local address")
	}
	remote, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", *addr, *dstPort))
	if err != nil {
		log.WithError(err).Fatal("resolve remote address")
	}
	// The engine addresses every send with an explicit dst via WriteTo,
	// which fails with ErrWriteToConnected on a connected socket; open
	// an unconnected one instead, exactly like cmd/rdtrecv.
	conn, err := net.ListenUDP("udp", local)
	if err != nil {
		log.WithError(err).Fatal("listen udp")
	}
	defer conn.Close()

	sender := rdt.NewSender(conn, remote, *window, log)
	sender.Retry = *retry
	sender.LinkDelay = *linkDelay
	sender.MaxRetries = *maxRetries

	start := time.Now()
	if err := sender.Run(in); err != nil {
		log.WithError(err).Fatal("sender exited with error")
	}
	log.WithField("elapsed", time.Since(start)).Debug("transfer complete")
}
