package rdt

import (
	"encoding/binary"
	"net"
	"sync"
)

// memAddr is a trivial net.Addr for the in-memory conn pair below.
type memAddr string

func (memAddr) Network() string  { return "mem" }
func (a memAddr) String() string { return string(a) }

// transformFunc rewrites a datagram as it crosses the link: returning
// nil drops it, one element passes it through (possibly corrupted),
// and more than one element delivers duplicates or reorders relative
// to other calls.
type transformFunc func(from string, data []byte) [][]byte

// lossyConn is one end of an in-memory PacketConn pair. WriteTo pushes
// through an optional transformFunc before landing in the peer's
// inbox, letting tests script drops, duplication, reordering and
// corruption deterministically instead of relying on a real flaky
// network.
type lossyConn struct {
	name   string
	addr   net.Addr
	peer   *lossyConn
	inbox  chan []byte
	closed chan struct{}

	mu        sync.Mutex
	transform transformFunc
}

// newLossyPair creates two connected ends. transform is applied to
// every datagram written by either end (from is "a" or "b"); pass nil
// for a lossless link.
func newLossyPair(transform transformFunc) (*lossyConn, *lossyConn) {
	a := &lossyConn{name: "a", addr: memAddr("a"), inbox: make(chan []byte, 256), closed: make(chan struct{})}
	b := &lossyConn{name: "b", addr: memAddr("b"), inbox: make(chan []byte, 256), closed: make(chan struct{})}
	a.peer, b.peer = b, a
	a.transform, b.transform = transform, transform
	return a, b
}

func (c *lossyConn) WriteTo(p []byte, _ net.Addr) (int, error) {
	cp := append([]byte(nil), p...)
	outs := [][]byte{cp}
	c.mu.Lock()
	t := c.transform
	c.mu.Unlock()
	if t != nil {
		outs = t(c.name, cp)
	}
	for _, o := range outs {
		select {
		case c.peer.inbox <- o:
		case <-c.peer.closed:
		}
	}
	return len(p), nil
}

func (c *lossyConn) ReadFrom(p []byte) (int, net.Addr, error) {
	select {
	case data := <-c.inbox:
		return copy(p, data), c.peer.addr, nil
	case <-c.closed:
		return 0, nil, errClosed
	}
}

func (c *lossyConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

var errClosed = &net.OpError{Op: "read", Err: errAlreadyClosed{}}

type errAlreadyClosed struct{}

func (errAlreadyClosed) Error() string { return "lossyconn: closed" }

func seqOf(data []byte) uint32   { return binary.BigEndian.Uint32(data[2:6]) }
func flagsOf(data []byte) uint16 { return binary.BigEndian.Uint16(data[8:10]) }
