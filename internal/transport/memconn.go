package transport

import (
	"fmt"
	"net"
	"sync"
	"time"
)

// MemNetwork is a shared registry of in-memory sockets, letting tests run
// several Server instances in one process without touching a real NIC: a
// mutex-guarded map from "host:port" strings to inbox queues. Endpoints
// satisfy net.PacketConn directly, so they plug into Server via WithConn.
type MemNetwork struct {
	mu     sync.Mutex
	lookup map[string]*MemConn
}

// NewMemNetwork returns an empty registry.
func NewMemNetwork() *MemNetwork {
	return &MemNetwork{lookup: make(map[string]*MemConn)}
}

// Listen creates a new endpoint bound to addr ("host:port") on this
// network. addr must be unique within the network.
func (n *MemNetwork) Listen(addr string) (*MemConn, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, exists := n.lookup[addr]; exists {
		return nil, fmt.Errorf("transport: memnetwork: address %q already in use", addr)
	}
	c := &MemConn{
		network: n,
		local:   &memAddr{addr: addr},
		inbox:   make(chan memDatagram, 64),
		closed:  make(chan struct{}),
	}
	n.lookup[addr] = c
	return c, nil
}

func (n *MemNetwork) deliver(to string, dg memDatagram) bool {
	n.mu.Lock()
	c, ok := n.lookup[to]
	n.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case c.inbox <- dg:
		return true
	case <-c.closed:
		return false
	}
}

func (n *MemNetwork) remove(addr string) {
	n.mu.Lock()
	delete(n.lookup, addr)
	n.mu.Unlock()
}

type memAddr struct{ addr string }

func (a *memAddr) Network() string { return "mem" }
func (a *memAddr) String() string  { return a.addr }

type memDatagram struct {
	from string
	data []byte
}

// MemConn is a net.PacketConn backed by a MemNetwork instead of a kernel
// socket, so Server.Run can drive it with the exact same dispatch loop
// used over real UDP.
type MemConn struct {
	network *MemNetwork
	local   *memAddr
	inbox   chan memDatagram

	closeOnce sync.Once
	closed    chan struct{}

	mu       sync.Mutex
	deadline time.Time
}

var _ net.PacketConn = (*MemConn)(nil)

func (c *MemConn) ReadFrom(p []byte) (int, net.Addr, error) {
	timer := c.deadlineTimer()
	if timer != nil {
		defer timer.Stop()
	}
	var timeoutCh <-chan time.Time
	if timer != nil {
		timeoutCh = timer.C
	}
	select {
	case dg := <-c.inbox:
		n := copy(p, dg.data)
		return n, &memAddr{addr: dg.from}, nil
	case <-timeoutCh:
		return 0, nil, memTimeoutError{}
	case <-c.closed:
		return 0, nil, net.ErrClosed
	}
}

// WriteTo keys the destination by addr.String(), so both *memAddr and the
// *net.UDPAddr destinations the server builds route to the same endpoint
// as long as the target was Listened under that exact "host:port" string.
// Sending to an address nobody listens on silently loses the datagram,
// like UDP.
func (c *MemConn) WriteTo(p []byte, addr net.Addr) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	c.network.deliver(addr.String(), memDatagram{from: c.local.addr, data: cp})
	return len(p), nil
}

func (c *MemConn) Close() error {
	c.closeOnce.Do(func() {
		c.network.remove(c.local.addr)
		close(c.closed)
	})
	return nil
}

func (c *MemConn) LocalAddr() net.Addr { return c.local }

func (c *MemConn) SetDeadline(t time.Time) error {
	c.mu.Lock()
	c.deadline = t
	c.mu.Unlock()
	return nil
}

func (c *MemConn) SetReadDeadline(t time.Time) error { return c.SetDeadline(t) }
func (c *MemConn) SetWriteDeadline(time.Time) error  { return nil }

func (c *MemConn) deadlineTimer() *time.Timer {
	c.mu.Lock()
	d := c.deadline
	c.mu.Unlock()
	if d.IsZero() {
		return nil
	}
	return time.NewTimer(time.Until(d))
}

type memTimeoutError struct{}

func (memTimeoutError) Error() string   { return "transport: memconn: i/o timeout" }
func (memTimeoutError) Timeout() bool   { return true }
func (memTimeoutError) Temporary() bool { return true }

var _ net.Error = memTimeoutError{}
