package rdt

import (
	"io"
	"net"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/iocat/rdt-udt/protocol/codec"
	"github.com/iocat/rdt-udt/protocol/recvbuffer"
)

// Receiver accepts datagrams on a PacketConn, reorders them through a
// RecvBuffer, and writes the contiguous stream to an output sink. It
// acknowledges every validated packet and NACKs malformed ones.
type Receiver struct {
	conn PacketConn
	dst  net.Addr // where ACK/NACK replies are sent; learned if nil

	buffer *recvbuffer.Buffer
	log    *logrus.Entry

	received, acksSent, nacksSent uint64
}

// NewReceiver creates a Receiver that replies on conn. If dst is nil,
// the address of the first datagram received becomes the reply
// destination, matching a sender that may not be listening until it
// sends its first packet.
func NewReceiver(conn PacketConn, dst net.Addr, bufferSize int, log *logrus.Entry) *Receiver {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Receiver{
		conn:   conn,
		dst:    dst,
		buffer: recvbuffer.New(bufferSize),
		log:    log,
	}
}

// Run reads datagrams until a validated END packet arrives (or the
// connection errors, typically because the caller closed it), writing
// the reordered stream to out as it drains.
func (r *Receiver) Run(out io.Writer) error {
	buf := make([]byte, codec.MaxPacket)
	for {
		n, addr, err := r.conn.ReadFrom(buf)
		if err != nil {
			return errors.Wrap(err, "read datagram")
		}
		if r.dst == nil {
			r.dst = addr
		}
		r.received++

		data := make([]byte, n)
		copy(data, buf[:n])

		pkt, err := codec.Decode(data)
		if err != nil {
			r.log.WithError(err).Debug("malformed datagram")
			if sendErr := r.sendNACK(r.buffer.FirstBlank()); sendErr != nil {
				return sendErr
			}
			continue
		}

		if pkt.Flags.Has(codec.FlagEND) {
			r.log.Debug("received END, terminating")
			break
		}

		if !r.buffer.IsBuffered(pkt.Sequence) {
			for _, payload := range r.buffer.Insert(pkt.Sequence, pkt.Payload) {
				if _, err := out.Write(payload); err != nil {
					return errors.Wrap(err, "write to output sink")
				}
			}
		}

		if err := r.sendACK(pkt.Sequence); err != nil {
			return err
		}
	}

	r.buffer.Reset()
	r.log.WithFields(logrus.Fields{
		"received": r.received,
		"acked":    r.acksSent,
		"nacked":   r.nacksSent,
	}).Info("receiver finished")
	return nil
}

func (r *Receiver) sendACK(seq uint32) error {
	raw := codec.Encode(seq, codec.FlagACK, nil)
	if _, err := r.conn.WriteTo(raw, r.dst); err != nil {
		return errors.Wrapf(err, "send ACK seq=%d", seq)
	}
	r.acksSent++
	return nil
}

func (r *Receiver) sendNACK(seq uint32) error {
	raw := codec.Encode(seq, codec.FlagNACK, nil)
	if _, err := r.conn.WriteTo(raw, r.dst); err != nil {
		return errors.Wrapf(err, "send NACK seq=%d", seq)
	}
	r.nacksSent++
	return nil
}
