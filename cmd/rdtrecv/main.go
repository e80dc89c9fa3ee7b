// Command rdtrecv listens for an rdtsend peer over UDP, reorders
// incoming packets, and writes the reconstructed line stream to
// stdout (or a file).
package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"github.com/iocat/rdt-udt/internal/rdtlog"
	"github.com/iocat/rdt-udt/rdt"
)

var (
	srcPort = flag.Int("s", 0, "local UDP port to listen on (required)")
	dstPort = flag.Int("d", 0, "peer UDP port to reply to (required)")
	addr    = flag.String("addr", rdt.DefaultHost, "peer host to reply to")
	buffer  = flag.Int("buffer", rdt.DefaultBufferSize, "reorder buffer size")
	outPath = flag.String("out", "", "write output to this file instead of stdout")
	verbose = flag.Bool("v", false, "enable debug logging")
)

func main() {
	flag.Parse()
	log := rdtlog.New("receiver", *verbose)

	if *srcPort == 0 || *dstPort == 0 {
		log.Fatal("both -s (local port) and -d (peer port) are required")
	}
	if flag.NArg() > 0 {
		log.WithField("args", flag.Args()).Warn("ignoring unexpected positional arguments")
	}

	out := os.Stdout
	if *outPath != "" {
		f, err := os.Create(*outPath)
		if err != nil {
			log.WithError(err).Fatalf("create output file %s", *outPath)
		}
		defer f.Close()
		out = f
	}

	local, err := net.ResolveUDPAddr("udp", fmt.Sprintf(":%d", *srcPort))
	if err != nil {
		log.WithError(err).Fatal("resolve local address")
	}
	conn, err := net.ListenUDP("udp", local)
	if err != nil {
		log.WithError(err).Fatal("listen udp")
	}
	defer conn.Close()

	dst, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", *addr, *dstPort))
	if err != nil {
		log.WithError(err).Fatal("resolve peer address")
	}

	receiver := rdt.NewReceiver(conn, dst, *buffer, log)
	if err := receiver.Run(out); err != nil {
		log.WithError(err).Fatal("receiver exited with error")
	}
}
