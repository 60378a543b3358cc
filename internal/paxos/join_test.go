package paxos

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/paxoslabs/engine/internal/transport"
	"github.com/paxoslabs/engine/internal/wire"
)

// TestProposerJoinHandshake drives the group-join exchange between two
// proposers: the joiner asks, the peer answers with its accepter list,
// and the joiner merges it without duplicating entries it already knows.
func TestProposerJoinHandshake(t *testing.T) {
	t.Parallel()

	established, establishedHandle := newTestProposer(9001, []int{9001}, []int{9001, 9002})
	joiner, joinerHandle := newTestProposer(9003, []int{9003}, []int{9002})

	joiner.JoinGroup(testAddr(9001, "proposer"))
	joins := joinerHandle.ofType(wire.TypeJoin)
	require.Len(t, joins, 1)

	established.HandleMessage(
		transport.RequestContext{Sender: testAddr(9003, "proposer")}, joins[0].Body)
	lists := establishedHandle.ofType(wire.TypeAccepterList)
	require.Len(t, lists, 1)
	require.Equal(t, testAddr(9003, "proposer"), lists[0].Recipient)

	joiner.HandleMessage(
		transport.RequestContext{Sender: testAddr(9001, "proposer")}, lists[0].Body)

	require.ElementsMatch(t, []transport.Address{
		testAddr(9002, "accepter"),
		testAddr(9001, "accepter"),
	}, joiner.accepters)
}

// TestAccepterJoinHandshake is the same exchange on the accepter side,
// trading learner lists.
func TestAccepterJoinHandshake(t *testing.T) {
	t.Parallel()

	established, establishedHandle := newTestAccepter([]int{9001, 9002})
	joiner, joinerHandle := newTestAccepter([]int{9002})

	joiner.JoinGroup(testAddr(9001, "accepter"))
	joins := joinerHandle.ofType(wire.TypeJoin)
	require.Len(t, joins, 1)

	established.HandleMessage(
		transport.RequestContext{Sender: testAddr(9003, "accepter")}, joins[0].Body)
	lists := establishedHandle.ofType(wire.TypeLearnerList)
	require.Len(t, lists, 1)

	joiner.HandleMessage(
		transport.RequestContext{Sender: testAddr(9001, "accepter")}, lists[0].Body)

	require.ElementsMatch(t, []transport.Address{
		testAddr(9002, "learner"),
		testAddr(9001, "learner"),
	}, joiner.learners)
}

// TestJoinListSurvivesWire: the list payload decodes identically whether
// it arrives as the native []string or the []interface{} a codec
// round-trip produces.
func TestJoinListSurvivesWire(t *testing.T) {
	t.Parallel()

	body := wire.Body{
		wire.FieldMessageType: wire.TypeAccepterList,
		fieldAccepterList:     encodeEndpoints([]transport.Address{testAddr(9005, "accepter")}),
	}

	data, err := wire.JSONCodec{}.Encode(wire.Envelope{
		Sender: "proposer", Recipient: "proposer", Body: body,
	})
	require.NoError(t, err)
	env, err := wire.JSONCodec{}.Decode(data)
	require.NoError(t, err)

	joiner, _ := newTestProposer(9003, []int{9003}, nil)
	joiner.HandleMessage(
		transport.RequestContext{Sender: testAddr(9001, "proposer")}, env.Body)

	require.Equal(t, []transport.Address{testAddr(9005, "accepter")}, joiner.accepters)
}
