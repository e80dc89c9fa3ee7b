// Package codec implements the RDT wire format: a 10-byte fixed header
// (checksum, sequence, length, flags) followed by up to 80 bytes of
// payload, and the RFC 1071 checksum that protects it.
package codec

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

const (
	// HeaderSize is the number of bytes in the fixed header, not
	// counting the payload.
	HeaderSize = 10
	// MaxPayload is the largest payload a data packet may carry.
	// Longer lines are truncated by the caller before Encode is called.
	MaxPayload = 80
	// MaxPacket is the largest a wire packet can ever be.
	MaxPacket = HeaderSize + MaxPayload
)

// Flags is a bitset over the packet flag field.
type Flags uint16

const (
	// FlagACK marks a packet as an acknowledgement of Sequence.
	FlagACK Flags = 1 << 0
	// FlagNACK marks a packet as a negative acknowledgement requesting
	// retransmission of Sequence and releasing every sequence before it.
	FlagNACK Flags = 1 << 1
	// FlagEND marks the end of a transfer.
	FlagEND Flags = 1 << 2
)

// Has reports whether flags contains every bit in want.
func (f Flags) Has(want Flags) bool {
	return f&want == want
}

// Packet is the decoded, in-memory form of an RDT datagram.
type Packet struct {
	Sequence uint32
	Flags    Flags
	Payload  []byte
}

// ErrShortPacket is returned by Decode when the datagram is too short to
// contain a valid header, or its length field overruns the buffer.
var ErrShortPacket = errors.New("codec: packet shorter than header")

// ErrChecksum is returned by Decode when the checksum field does not
// match the recomputed RFC 1071 sum of the bytes that follow it.
var ErrChecksum = errors.New("codec: checksum mismatch")

// Encode writes the fixed header and payload, then computes and fills in
// the checksum. The caller is responsible for truncating payload to
// MaxPayload bytes; Encode does not truncate.
func Encode(seq uint32, flags Flags, payload []byte) []byte {
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[2:6], seq)
	binary.BigEndian.PutUint16(buf[6:8], uint16(len(payload)))
	binary.BigEndian.PutUint16(buf[8:10], uint16(flags))
	copy(buf[HeaderSize:], payload)
	binary.BigEndian.PutUint16(buf[0:2], checksum(buf[2:]))
	return buf
}

// Decode validates and parses a received datagram. The returned
// Packet's Payload aliases a fresh copy, not the input slice.
func Decode(datagram []byte) (Packet, error) {
	if len(datagram) < HeaderSize {
		return Packet{}, errors.Wrapf(ErrShortPacket, "got %d bytes, want at least %d", len(datagram), HeaderSize)
	}
	if !verifyChecksum(datagram) {
		return Packet{}, errors.WithStack(ErrChecksum)
	}
	length := int(binary.BigEndian.Uint16(datagram[6:8]))
	if length > len(datagram)-HeaderSize {
		return Packet{}, errors.Wrapf(ErrShortPacket, "length field %d exceeds buffer", length)
	}
	payload := make([]byte, length)
	copy(payload, datagram[HeaderSize:HeaderSize+length])
	return Packet{
		Sequence: binary.BigEndian.Uint32(datagram[2:6]),
		Flags:    Flags(binary.BigEndian.Uint16(datagram[8:10])),
		Payload:  payload,
	}, nil
}

// verifyChecksum recomputes the RFC 1071 sum over datagram[2:] and
// compares it against the field stored at datagram[0:2].
func verifyChecksum(datagram []byte) bool {
	if len(datagram) < 2 {
		return false
	}
	want := binary.BigEndian.Uint16(datagram[0:2])
	return checksum(datagram[2:]) == want
}

// checksum implements RFC 1071: accumulate 16-bit words, fold carries
// into the low 16 bits, then take the one's complement. A trailing odd
// byte is treated as the high byte of a final word, matching the
// original C implementation's cast of the tail byte through a zero-pad.
func checksum(b []byte) uint16 {
	var sum uint32
	i := 0
	for ; i+1 < len(b); i += 2 {
		sum += uint32(binary.BigEndian.Uint16(b[i : i+2]))
	}
	if i < len(b) {
		sum += uint32(b[i]) << 8
	}
	for sum>>16 != 0 {
		sum = (sum & 0xFFFF) + (sum >> 16)
	}
	return ^uint16(sum)
}
