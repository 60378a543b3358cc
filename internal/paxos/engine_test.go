package paxos

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/paxoslabs/engine/internal/transport"
)

func TestNewEngineRejectsBadPeer(t *testing.T) {
	t.Parallel()

	_, err := NewEngine(EngineConfig{
		Host:  "127.0.0.1",
		Port:  9000,
		Peers: []string{"127.0.0.1:9000", "not-an-endpoint"},
	})
	require.Error(t, err)
}

// TestNewEngineWiresTrio binds a real ephemeral socket and checks one of
// each actor is registered, with the proposer reachable at the
// conventional name.
func TestNewEngineWiresTrio(t *testing.T) {
	t.Parallel()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	port := conn.LocalAddr().(*net.UDPAddr).Port

	engine, err := NewEngine(EngineConfig{
		Host:  "127.0.0.1",
		Port:  port,
		Peers: []string{conn.LocalAddr().String()},
	}, transport.WithConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { engine.Server.Close() })

	require.NotNil(t, engine.Proposer)
	require.NotNil(t, engine.Accepter)
	require.NotNil(t, engine.Learner)

	addr := engine.ProposerAddress()
	require.Equal(t, NameProposer, addr.Name)
	require.Equal(t, port, addr.Port)

	// A single-node cluster leads itself.
	require.True(t, engine.Proposer.isLeader())
}
