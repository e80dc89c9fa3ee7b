// Package recvbuffer implements the receiver-side reorder buffer: a
// fixed-capacity ring that accepts out-of-order payloads and drains a
// contiguous run starting at the lowest not-yet-emitted sequence.
//
// Buffer performs no I/O; the caller is responsible for writing
// drained payloads to the output sink, keeping this package a pure
// data structure in the style of the window types it shares a lineage
// with.
package recvbuffer

// Buffer is the receiver's fixed-size reorder ring.
type Buffer struct {
	capacity uint32
	data     [][]byte
	firstSeq uint32
	lastSeq  uint32
}

// New creates a Buffer with room for capacity out-of-order payloads.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		panic("recvbuffer: capacity must be positive")
	}
	return &Buffer{
		capacity: uint32(capacity),
		data:     make([][]byte, capacity),
	}
}

// IsBuffered reports whether seq has already been emitted, or is
// currently held waiting on a gap ahead of it.
func (b *Buffer) IsBuffered(seq uint32) bool {
	if seq < b.firstSeq {
		return true
	}
	return seq <= b.lastSeq && b.data[seq%b.capacity] != nil
}

// FirstBlank returns the lowest sequence number not yet emitted, the
// value carried in a NACK's sequence field.
func (b *Buffer) FirstBlank() uint32 {
	return b.firstSeq
}

// Insert takes ownership of a copy of payload at seq, then drains and
// returns every payload that becomes part of the contiguous run
// starting at firstSeq. Insert is a silent no-op (returns nil) when
// seq is outside the window or the slot is already occupied; callers
// are expected to have already consulted IsBuffered.
func (b *Buffer) Insert(seq uint32, payload []byte) [][]byte {
	if seq < b.firstSeq || seq >= b.firstSeq+b.capacity {
		return nil
	}
	idx := seq % b.capacity
	if b.data[idx] != nil {
		return nil
	}
	stored := make([]byte, len(payload))
	copy(stored, payload)
	b.data[idx] = stored
	if seq > b.lastSeq {
		b.lastSeq = seq
	}

	var drained [][]byte
	for b.firstSeq <= b.lastSeq {
		idx := b.firstSeq % b.capacity
		if b.data[idx] == nil {
			break
		}
		drained = append(drained, b.data[idx])
		b.data[idx] = nil
		b.firstSeq++
	}
	return drained
}

// Reset releases every buffered payload, mirroring destroyBuffer in
// the original implementation.
func (b *Buffer) Reset() {
	for i := range b.data {
		b.data[i] = nil
	}
}
