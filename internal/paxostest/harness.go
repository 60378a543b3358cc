// Package paxostest boots full engines on real loopback UDP sockets and
// drives them the way an external client does, so end-to-end scenarios
// exercise the same datagram path production runs on. Sockets are bound
// at port 0 first and their real ports become the shared peer list, which
// keeps the ballot-seed sort identical on every node without reserving
// fixed ports.
package paxostest

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/paxoslabs/engine/internal/paxos"
	"github.com/paxoslabs/engine/internal/transport"
	"github.com/paxoslabs/engine/internal/wire"
)

// ErrProposeTimeout is returned by Propose when no acknowledgement
// arrives before the client's deadline.
var ErrProposeTimeout = errors.New("paxostest: propose timed out")

// Learn is one on_learn firing, tagged with the node that observed it.
type Learn struct {
	Node       int
	InstanceID int64
	Value      interface{}
}

// Cluster is a set of engines running in-process over loopback UDP.
type Cluster struct {
	Peers   []string
	Engines []*paxos.Engine

	// Learns receives every on_learn firing from every node.
	Learns chan Learn
}

// StartCluster boots n engines that all share the same peer list and
// runs each server loop under an errgroup until the test ends.
func StartCluster(t *testing.T, n int) *Cluster {
	t.Helper()

	conns := make([]net.PacketConn, n)
	peers := make([]string, n)
	for i := range conns {
		conn, err := net.ListenPacket("udp", "127.0.0.1:0")
		require.NoError(t, err)
		conns[i] = conn
		peers[i] = conn.LocalAddr().String()
	}

	c := &Cluster{Peers: peers, Learns: make(chan Learn, 64)}

	ctx, cancel := context.WithCancel(context.Background())
	group, ctx := errgroup.WithContext(ctx)

	for i := range conns {
		node := i
		host, port, err := transport.ParseEndpoint(peers[node])
		require.NoError(t, err)

		engine, err := paxos.NewEngine(paxos.EngineConfig{
			Host:  host,
			Port:  port,
			Peers: peers,
			OnLearn: func(instanceID int64, value interface{}) {
				c.Learns <- Learn{Node: node, InstanceID: instanceID, Value: value}
			},
		}, transport.WithConn(conns[node]))
		require.NoError(t, err)
		c.Engines = append(c.Engines, engine)
	}

	for _, engine := range c.Engines {
		engine := engine
		group.Go(func() error { return engine.Server.Run(ctx) })
	}

	t.Cleanup(func() {
		cancel()
		for _, engine := range c.Engines {
			engine.Server.Close()
		}
		require.NoError(t, group.Wait())
	})
	return c
}

// LeaderIndex returns the node whose proposer leads the cluster: the one
// with the smallest address in the shared sort.
func (c *Cluster) LeaderIndex() int {
	leader := 0
	for i := 1; i < len(c.Peers); i++ {
		a := mustAddr(c.Peers[i])
		if a.Less(mustAddr(c.Peers[leader])) {
			leader = i
		}
	}
	return leader
}

func mustAddr(endpoint string) transport.Address {
	addr, err := transport.WithName(endpoint, paxos.NameProposer)
	if err != nil {
		panic(err)
	}
	return addr
}

// Propose acts as the external blocking client: it sends one propose
// datagram to node's proposer and waits for the acknowledgement or the
// timeout, whichever comes first.
func (c *Cluster) Propose(t *testing.T, node int, value interface{}, timeout time.Duration) error {
	t.Helper()
	return ProposeTo(t, c.Peers[node], value, timeout)
}

// ProposeTo is Propose against an arbitrary endpoint, reachable or not.
func ProposeTo(t *testing.T, endpoint string, value interface{}, timeout time.Duration) error {
	t.Helper()

	host, port, err := transport.ParseEndpoint(endpoint)
	require.NoError(t, err)

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	server, err := transport.NewServer("127.0.0.1", 0, transport.WithConn(conn))
	require.NoError(t, err)

	result := make(chan error, 1)
	server.Queue(transport.QueueRequest{
		Sender:     "client",
		Recipient:  transport.Address{Host: host, Port: port, Name: paxos.NameProposer},
		Body:       wire.Propose(value),
		Timeout:    timeout,
		OnResponse: func(wire.Body) { result <- nil },
		OnTimeout:  func() { result <- ErrProposeTimeout },
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = server.Run(ctx)
	}()

	err = <-result
	cancel()
	server.Close()
	<-done
	return err
}

// WaitLearns collects count learn events or fails the test after the
// deadline.
func (c *Cluster) WaitLearns(t *testing.T, count int, timeout time.Duration) []Learn {
	t.Helper()

	deadline := time.After(timeout)
	learns := make([]Learn, 0, count)
	for len(learns) < count {
		select {
		case l := <-c.Learns:
			learns = append(learns, l)
		case <-deadline:
			t.Fatalf("saw %d of %d expected learns before the deadline", len(learns), count)
		}
	}
	return learns
}

// RequireNoLearns asserts the cluster stays silent for the given window.
func (c *Cluster) RequireNoLearns(t *testing.T, window time.Duration) {
	t.Helper()

	select {
	case l := <-c.Learns:
		t.Fatalf("unexpected learn: node %d instance %d value %v", l.Node, l.InstanceID, l.Value)
	case <-time.After(window):
	}
}
