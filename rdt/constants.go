// Package rdt implements the sender and receiver engines of the
// reliable data transfer protocol: pipelined delivery over an
// unreliable datagram transport, using protocol/codec for framing,
// protocol/sendwindow for the outstanding-packet window, and
// protocol/recvbuffer for reordering on the receive side.
package rdt

import "time"

const (
	// DefaultWindowSize is the sender's sliding window capacity, W.
	DefaultWindowSize = 5
	// DefaultBufferSize is the receiver's reorder buffer capacity, B.
	DefaultBufferSize = 16

	// DefaultRetry is the cadence of the sender's retransmit sweep.
	DefaultRetry = 150 * time.Millisecond
	// DefaultLinkDelay is the slot age past which a packet is
	// considered lost and is retransmitted.
	DefaultLinkDelay = 600 * time.Millisecond

	// EndBursts is how many times the sender repeats its END packet,
	// since there is no acknowledgement for END itself.
	EndBursts = 5
	// EndBurstDelay separates consecutive END packets in a burst.
	EndBurstDelay = 150 * time.Microsecond

	// DefaultSenderSrcPort and DefaultSenderDstPort are rdtsend's
	// loopback default ports.
	DefaultSenderSrcPort = 4030
	DefaultSenderDstPort = 4040
	// DefaultReceiverSrcPort and DefaultReceiverDstPort are rdtrecv's
	// loopback default ports.
	DefaultReceiverSrcPort = 4040
	DefaultReceiverDstPort = 4030

	// DefaultHost is the loopback address both sides default to.
	DefaultHost = "127.0.0.1"
)
