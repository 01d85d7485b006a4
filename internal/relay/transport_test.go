package relay

import (
	"errors"
	"net"
	"net/netip"
	"sync"
)

// errEndOfScript terminates a scripted run once every queued datagram
// has been processed.
var errEndOfScript = errors.New("end of script")

type inbound struct {
	from net.Addr
	data []byte
	err  error
}

type outbound struct {
	to   netip.AddrPort
	data []byte
}

// memConn is an in-memory Transport. Reads are served from inbox in order;
// writes are recorded.
type memConn struct {
	local net.Addr
	inbox chan inbound

	mu       sync.Mutex
	sent     []outbound
	writeErr error

	done      chan struct{}
	closeOnce sync.Once
}

func newMemConn(size int) *memConn {
	return &memConn{
		local: net.UDPAddrFromAddrPort(netip.MustParseAddrPort("127.0.0.1:9000")),
		inbox: make(chan inbound, size),
		done:  make(chan struct{}),
	}
}

func (c *memConn) push(from string, data []byte) {
	c.inbox <- inbound{
		from: net.UDPAddrFromAddrPort(netip.MustParseAddrPort(from)),
		data: data,
	}
}

func (c *memConn) pushErr(err error) {
	c.inbox <- inbound{err: err}
}

func (c *memConn) ReadFrom(p []byte) (int, net.Addr, error) {
	select {
	case <-c.done:
		return 0, nil, net.ErrClosed
	default:
	}

	select {
	case pkt := <-c.inbox:
		if pkt.err != nil {
			return 0, nil, pkt.err
		}
		return copy(p, pkt.data), pkt.from, nil
	case <-c.done:
		return 0, nil, net.ErrClosed
	}
}

func (c *memConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeErr != nil {
		return 0, c.writeErr
	}
	c.sent = append(c.sent, outbound{
		to:   addr.(*net.UDPAddr).AddrPort(),
		data: append([]byte(nil), p...),
	})
	return len(p), nil
}

func (c *memConn) LocalAddr() net.Addr {
	return c.local
}

func (c *memConn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

func (c *memConn) sentPackets() []outbound {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]outbound(nil), c.sent...)
}

// scriptedSource replays fixed draws, cycling when exhausted.
type scriptedSource struct {
	draws []float64
	i     int
}

func (s *scriptedSource) Float64() float64 {
	v := s.draws[s.i%len(s.draws)]
	s.i++
	return v
}

// panicConn panics on the first read.
type panicConn struct {
	*memConn
}

func (c *panicConn) ReadFrom(p []byte) (int, net.Addr, error) {
	panic("socket exploded")
}
