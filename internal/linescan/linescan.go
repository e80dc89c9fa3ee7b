// Package linescan pumps newline-delimited lines from an io.Reader
// onto a channel, the goroutine that stands in for the original's
// non-blocking stdin readiness source. Pump is meant to be one more
// select case in an event loop, not a synchronous reader.
package linescan

import (
	"bufio"
	"io"
)

// MaxLineBytes is the largest raw line Pump will hand back in one
// Line, matching the original client's fgets(input_line, MAXLINE, ...)
// buffer size. Longer lines are truncated here, before any
// protocol-level payload truncation happens downstream.
const MaxLineBytes = 500

// Line is one unit of input handed to the event loop: either a line of
// data, or an EOF marker once the underlying reader is exhausted.
type Line struct {
	Data []byte
	EOF  bool
}

// Pump reads newline-terminated lines from r and sends them on out,
// followed by a single Line{EOF: true} once r is exhausted. It blocks
// on each send, so the caller must keep draining out. Pump returns
// after sending the EOF marker.
func Pump(r io.Reader, out chan<- Line) {
	reader := bufio.NewReaderSize(r, MaxLineBytes)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			if len(line) > MaxLineBytes {
				line = line[:MaxLineBytes]
			}
			out <- Line{Data: append([]byte(nil), line...)}
		}
		if err != nil {
			out <- Line{EOF: true}
			return
		}
	}
}
