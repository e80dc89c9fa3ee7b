// Package sendwindow implements the sender-side sliding window: a
// fixed-capacity ring of in-flight packet buffers and their last-sent
// timestamps, indexed by sequence number modulo capacity.
//
// A Window is not safe for concurrent use. It is designed to be owned
// by a single event loop goroutine, the way the original C
// implementation owned it from a single thread and only masked a
// signal handler around it; here there simply is no second goroutine
// that touches it.
package sendwindow

import "time"

// Window is the sender's fixed-size array of in-flight packet buffers.
type Window struct {
	capacity uint32
	slots    [][]byte
	sentAt   []time.Time
	firstSeq uint32
	lastSeq  uint32
}

// New creates a Window with room for capacity in-flight packets.
func New(capacity int) *Window {
	if capacity <= 0 {
		panic("sendwindow: capacity must be positive")
	}
	return &Window{
		capacity: uint32(capacity),
		slots:    make([][]byte, capacity),
		sentAt:   make([]time.Time, capacity),
	}
}

// Available reports whether a new sequence number can be reserved,
// i.e. whether the window has room for one more in-flight packet.
func (w *Window) Available() bool {
	return w.firstSeq+w.capacity > w.lastSeq+1
}

// Empty reports whether every slot is unoccupied.
func (w *Window) Empty() bool {
	for _, s := range w.slots {
		if s != nil {
			return false
		}
	}
	return true
}

func (w *Window) inRange(seq uint32) bool {
	return seq >= w.firstSeq && seq < w.firstSeq+w.capacity
}

// Store takes ownership of raw, a fully encoded datagram, at the slot
// for seq. It fails (returns false) if seq is outside [firstSeq,
// firstSeq+capacity) or the slot is already occupied.
func (w *Window) Store(seq uint32, raw []byte) bool {
	if !w.inRange(seq) {
		return false
	}
	idx := seq % w.capacity
	if w.slots[idx] != nil {
		return false
	}
	w.slots[idx] = raw
	if seq > w.lastSeq {
		w.lastSeq = seq
	}
	return true
}

// Get returns the stored datagram for seq without transferring
// ownership, for retransmission.
func (w *Window) Get(seq uint32) ([]byte, bool) {
	if !w.inRange(seq) {
		return nil, false
	}
	raw := w.slots[seq%w.capacity]
	return raw, raw != nil
}

// Oldest returns the datagram at firstSeq, if the window holds one.
// The sender falls back to resending it when an incoming datagram
// fails validation and there is no sequence number to address a NACK
// reply to.
func (w *Window) Oldest() (uint32, []byte, bool) {
	raw, ok := w.Get(w.firstSeq)
	return w.firstSeq, raw, ok
}

// Remove frees the slot for seq, then slides firstSeq forward across
// any now-contiguous run of empty slots. It reports whether seq was
// occupied.
func (w *Window) Remove(seq uint32) bool {
	if !w.inRange(seq) {
		return false
	}
	idx := seq % w.capacity
	if w.slots[idx] == nil {
		return false
	}
	w.slots[idx] = nil
	w.sentAt[idx] = time.Time{}
	w.slide()
	return true
}

func (w *Window) slide() {
	for w.firstSeq <= w.lastSeq {
		if w.slots[w.firstSeq%w.capacity] != nil {
			break
		}
		w.firstSeq++
	}
}

// RemoveThrough releases every sequence strictly before seq, the
// go-back-N cumulative acknowledgement driven by a NACK. Sequences
// already released (by a prior Remove or slide) are skipped; the walk
// stops once firstSeq catches up with lastSeq so a NACK referencing a
// sequence beyond anything in flight cannot spin forever.
func (w *Window) RemoveThrough(seq uint32) {
	for w.firstSeq < seq && w.firstSeq <= w.lastSeq {
		if !w.Remove(w.firstSeq) {
			break
		}
	}
}

// MarkSent records the time a packet occupying seq's slot was put on
// the wire, independent of whether Store has been called for it yet -
// mirroring the original's unconditional timestamp write at send time.
func (w *Window) MarkSent(seq uint32, now time.Time) {
	w.sentAt[seq%w.capacity] = now
}

// Expired walks occupied slots starting at firstSeq and returns the
// sequence numbers whose last-sent timestamp is older than linkDelay.
// It stops at the first slot that is either empty or not yet expired,
// since slots beyond it were sent no earlier.
func (w *Window) Expired(now time.Time, linkDelay time.Duration) []uint32 {
	var expired []uint32
	for i := uint32(0); i < w.capacity; i++ {
		seq := w.firstSeq + i
		if seq > w.lastSeq {
			break
		}
		idx := seq % w.capacity
		if w.slots[idx] == nil {
			break
		}
		age := now.Sub(w.sentAt[idx])
		if age < 0 {
			age = -age
		}
		if age <= linkDelay {
			break
		}
		expired = append(expired, seq)
	}
	return expired
}

// Reset releases every occupied slot, mirroring destroyWindow in the
// original implementation. It does not reset firstSeq/lastSeq, since a
// Window is discarded rather than reused once Reset is called.
func (w *Window) Reset() {
	for i := range w.slots {
		w.slots[i] = nil
		w.sentAt[i] = time.Time{}
	}
}
