package rdt

import (
	"io"
	"net"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/iocat/rdt-udt/internal/linescan"
	"github.com/iocat/rdt-udt/protocol/codec"
	"github.com/iocat/rdt-udt/protocol/sendwindow"
)

// Sender reads lines from an input source, frames them as RDT data
// packets, and pipelines them to a peer across PacketConn under a
// sliding window, retransmitting on timeout or NACK.
//
// A Sender is driven entirely from the goroutine that calls Run: the
// datagram reader and line pump below feed it through channels, but
// nothing outside Run ever touches the window or retry bookkeeping.
// That single-owner discipline is what lets those fields go
// unsynchronized, the Go rendering of the original's "mask the timer
// signal around the critical section" approach.
type Sender struct {
	// Retry is the cadence of the retransmit sweep.
	Retry time.Duration
	// LinkDelay is the slot age past which a packet is retransmitted.
	LinkDelay time.Duration
	// MaxRetries caps how many times a single slot is retransmitted
	// before the sender gives up on it. Zero means unlimited, matching
	// the original's "retransmit indefinitely" default.
	MaxRetries int

	conn PacketConn
	dst  net.Addr

	window  *sendwindow.Window
	cntSeq  uint32
	retries map[uint32]int

	log *logrus.Entry

	sent, retransmitted, gaveUp, acked, nacked uint64
}

// NewSender creates a Sender that writes to dst over conn using a
// window of windowSize outstanding packets.
func NewSender(conn PacketConn, dst net.Addr, windowSize int, log *logrus.Entry) *Sender {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Sender{
		Retry:     DefaultRetry,
		LinkDelay: DefaultLinkDelay,
		conn:      conn,
		dst:       dst,
		window:    sendwindow.New(windowSize),
		retries:   make(map[uint32]int),
		log:       log,
	}
}

// Run drains in line by line until EOF, pipelining data packets under
// the sliding window, then drains the window and sends the END burst.
// It returns once teardown completes or an unrecoverable send error
// occurs.
func (s *Sender) Run(in io.Reader) error {
	lines := make(chan linescan.Line)
	go linescan.Pump(in, lines)

	datagrams := make(chan []byte)
	done := make(chan struct{})
	defer close(done)
	go s.readLoop(datagrams, done)

	ticker := time.NewTicker(s.Retry)
	defer ticker.Stop()

	var eof bool
	for {
		// Readiness on the line source is only in the wait set while
		// the window has room: stdin-gated backpressure. A nil channel
		// is never selectable, which is exactly "not in the wait set".
		var lineCh <-chan linescan.Line
		if !eof && s.window.Available() {
			lineCh = lines
		}

		select {
		case line := <-lineCh:
			if line.EOF {
				eof = true
				s.log.Debug("input EOF reached, draining outstanding window")
				continue
			}
			if err := s.sendLine(line.Data); err != nil {
				return err
			}

		case data := <-datagrams:
			if err := s.handleDatagram(data); err != nil {
				return err
			}

		case now := <-ticker.C:
			if err := s.resendExpired(now); err != nil {
				return err
			}
		}

		if eof && s.window.Empty() {
			break
		}
	}

	if err := s.teardown(); err != nil {
		return err
	}
	s.window.Reset()
	s.log.WithFields(logrus.Fields{
		"sent":          s.sent,
		"retransmitted": s.retransmitted,
		"gave_up":       s.gaveUp,
		"acked":         s.acked,
		"nacked":        s.nacked,
	}).Info("sender finished")
	return nil
}

// readLoop is the sole goroutine that calls conn.ReadFrom, handing
// each datagram to Run's select loop. It exits when done is closed or
// the connection errors (typically because the caller closed it). It
// stays parked in ReadFrom between the close of done and the caller
// closing conn, which is harmless since Run only returns at process
// shutdown, but it means readLoop cannot itself observe done until
// something unblocks the read.
func (s *Sender) readLoop(out chan<- []byte, done <-chan struct{}) {
	buf := make([]byte, codec.MaxPacket)
	for {
		n, _, err := s.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-done:
			default:
				s.log.WithError(err).Debug("datagram read loop exiting")
			}
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		select {
		case out <- data:
		case <-done:
			return
		}
	}
}

func (s *Sender) sendLine(line []byte) error {
	payload := line
	if len(payload) > codec.MaxPayload {
		payload = payload[:codec.MaxPayload]
	}
	seq := s.cntSeq
	raw := codec.Encode(seq, 0, payload)
	if _, err := s.conn.WriteTo(raw, s.dst); err != nil {
		return errors.Wrapf(err, "send data packet seq=%d", seq)
	}
	now := time.Now()
	s.window.MarkSent(seq, now)
	if !s.window.Store(seq, raw) {
		// Available() was checked before this call, so Store should
		// never fail here; treat it as a programming error, not a
		// recoverable protocol condition.
		s.log.Panicf("window rejected seq=%d despite Available() == true", seq)
	}
	s.sent++
	s.cntSeq++
	return nil
}

func (s *Sender) handleDatagram(data []byte) error {
	pkt, err := codec.Decode(data)
	if err != nil {
		s.log.WithError(err).Debug("malformed datagram, resending oldest outstanding slot")
		if seq, raw, ok := s.window.Oldest(); ok {
			if sent, err := s.retransmit(seq, raw); err != nil {
				return err
			} else if sent {
				s.window.MarkSent(seq, time.Now())
			}
		}
		return nil
	}
	switch {
	case pkt.Flags.Has(codec.FlagACK):
		s.acked++
		s.window.Remove(pkt.Sequence)
		delete(s.retries, pkt.Sequence)

	case pkt.Flags.Has(codec.FlagNACK):
		s.nacked++
		if raw, ok := s.window.Get(pkt.Sequence); ok {
			sent, err := s.retransmit(pkt.Sequence, raw)
			if err != nil {
				return err
			}
			if sent {
				s.window.MarkSent(pkt.Sequence, time.Now())
			}
		}
		s.window.RemoveThrough(pkt.Sequence)

	default:
		s.log.WithField("flags", pkt.Flags).Debug("ignoring datagram with unexpected flags")
	}
	return nil
}

func (s *Sender) resendExpired(now time.Time) error {
	for _, seq := range s.window.Expired(now, s.LinkDelay) {
		raw, ok := s.window.Get(seq)
		if !ok {
			continue
		}
		sent, err := s.retransmit(seq, raw)
		if err != nil {
			return err
		}
		if sent {
			s.window.MarkSent(seq, now)
		}
	}
	return nil
}

// retransmit resends raw for seq, honoring MaxRetries. It reports
// whether the packet was actually put back on the wire. A send
// failure from the datagram layer is fatal, per the same policy
// sendLine and teardown already apply.
func (s *Sender) retransmit(seq uint32, raw []byte) (bool, error) {
	if s.MaxRetries > 0 {
		s.retries[seq]++
		if s.retries[seq] > s.MaxRetries {
			s.log.WithField("seq", seq).Warn("giving up on slot after exceeding max retries")
			s.window.Remove(seq)
			delete(s.retries, seq)
			s.gaveUp++
			return false, nil
		}
	}
	if _, err := s.conn.WriteTo(raw, s.dst); err != nil {
		return false, errors.Wrapf(err, "retransmit seq=%d", seq)
	}
	s.retransmitted++
	return true, nil
}

// teardown sends the END packet EndBursts times, spaced EndBurstDelay
// apart, compensating for there being no acknowledgement of END.
func (s *Sender) teardown() error {
	end := codec.Encode(0, codec.FlagEND, nil)
	for i := 0; i < EndBursts; i++ {
		if _, err := s.conn.WriteTo(end, s.dst); err != nil {
			return errors.Wrap(err, "send END packet")
		}
		time.Sleep(EndBurstDelay)
	}
	return nil
}
