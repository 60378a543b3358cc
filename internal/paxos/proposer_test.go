package paxos

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/paxoslabs/engine/internal/transport"
	"github.com/paxoslabs/engine/internal/wire"
)

// captureHandle records queued requests so handler tests can inspect the
// messages an actor produced without a running server.
type captureHandle struct {
	queued []transport.QueueRequest
}

func (h *captureHandle) Queue(req transport.QueueRequest) {
	h.queued = append(h.queued, req)
}

func (h *captureHandle) ofType(typ string) []transport.QueueRequest {
	var out []transport.QueueRequest
	for _, req := range h.queued {
		if req.Body.MessageType() == typ {
			out = append(out, req)
		}
	}
	return out
}

func (h *captureHandle) responses() []transport.QueueRequest {
	var out []transport.QueueRequest
	for _, req := range h.queued {
		if req.IsResponse {
			out = append(out, req)
		}
	}
	return out
}

func (h *captureHandle) reset() { h.queued = nil }

func testAddr(port int, name string) transport.Address {
	return transport.Address{Host: "127.0.0.1", Port: port, Name: name}
}

// newTestProposer builds a proposer at selfPort in a cluster of
// proposerPorts/accepterPorts, attached to a capture handle.
func newTestProposer(selfPort int, proposerPorts, accepterPorts []int) (*Proposer, *captureHandle) {
	proposers := make([]transport.Address, len(proposerPorts))
	for i, port := range proposerPorts {
		proposers[i] = testAddr(port, "proposer")
	}
	accepters := make([]transport.Address, len(accepterPorts))
	for i, port := range accepterPorts {
		accepters[i] = testAddr(port, "accepter")
	}

	p := NewProposer(ProposerConfig{
		Self:      testAddr(selfPort, "proposer"),
		Proposers: proposers,
		Accepters: accepters,
	})
	handle := &captureHandle{}
	p.Attach("proposer", handle)
	return p, handle
}

func clientCtx(id string) transport.RequestContext {
	return transport.RequestContext{
		Sender:      testAddr(9999, "client"),
		CallbackID:  id,
		HasCallback: true,
	}
}

// TestProposerLeaderPropose covers the leader path: a client propose
// allocates instance 1, broadcasts prepare at the seed ballot to every
// accepter, and immediately acks the client.
func TestProposerLeaderPropose(t *testing.T) {
	t.Parallel()

	p, handle := newTestProposer(9001, []int{9001, 9002, 9003}, []int{9001, 9002, 9003})

	p.HandleMessage(clientCtx("cb-1"), wire.Propose("v"))

	prepares := handle.ofType(wire.TypePrepare)
	require.Len(t, prepares, 3)
	for _, req := range prepares {
		require.Equal(t, "accepter", req.Recipient.Name)

		id, err := req.Body.Int64(wire.FieldInstanceID)
		require.NoError(t, err)
		require.EqualValues(t, 1, id)

		// 9001 sorts first, so its seed ballot is 0.
		ballot, err := req.Body.Int64(wire.FieldBallotID)
		require.NoError(t, err)
		require.EqualValues(t, 0, ballot)
	}

	acks := handle.responses()
	require.Len(t, acks, 1)
	require.Equal(t, "cb-1", acks[0].CallbackID)
	require.Equal(t, testAddr(9999, "client"), acks[0].Recipient)
}

// TestProposerForwardsToLeader covers the non-leader path: the propose
// travels to the leader with a callback, and the forwarder acks its own
// client only once the leader answers.
func TestProposerForwardsToLeader(t *testing.T) {
	t.Parallel()

	p, handle := newTestProposer(9003, []int{9001, 9002, 9003}, []int{9001, 9002, 9003})

	p.HandleMessage(clientCtx("cb-2"), wire.Propose("v"))

	forwards := handle.ofType(wire.TypePropose)
	require.Len(t, forwards, 1)
	fwd := forwards[0]
	require.Equal(t, testAddr(9001, "proposer"), fwd.Recipient)
	require.Greater(t, fwd.Timeout, time.Duration(0))
	require.NotNil(t, fwd.OnResponse)
	require.NotNil(t, fwd.OnTimeout)

	// No prepares, and no client ack before the leader responds.
	require.Empty(t, handle.ofType(wire.TypePrepare))
	require.Empty(t, handle.responses())

	fwd.OnResponse(wire.Body{})
	acks := handle.responses()
	require.Len(t, acks, 1)
	require.Equal(t, "cb-2", acks[0].CallbackID)
}

// TestProposerQuorumAccept walks promise counting: no accept below
// majority, one broadcast at majority, and no re-broadcast for duplicate
// or late promises (the quorum-reached latch plus set semantics).
func TestProposerQuorumAccept(t *testing.T) {
	t.Parallel()

	p, handle := newTestProposer(9001, []int{9001, 9002, 9003}, []int{9001, 9002, 9003})
	p.HandleMessage(clientCtx("cb-1"), wire.Propose("v"))
	handle.reset()

	promise := wire.Promise(1, 0, nil, nil, 1)

	p.HandleMessage(transport.RequestContext{Sender: testAddr(9001, "accepter")}, promise)
	require.Empty(t, handle.ofType(wire.TypeAccept))

	// A duplicate from the same accepter must not count twice.
	p.HandleMessage(transport.RequestContext{Sender: testAddr(9001, "accepter")}, promise)
	require.Empty(t, handle.ofType(wire.TypeAccept))

	p.HandleMessage(transport.RequestContext{Sender: testAddr(9002, "accepter")}, promise)
	accepts := handle.ofType(wire.TypeAccept)
	require.Len(t, accepts, 3)
	for _, req := range accepts {
		ballot, err := req.Body.Int64(wire.FieldBallotID)
		require.NoError(t, err)
		require.EqualValues(t, 0, ballot)
		require.Equal(t, "v", req.Body.Value(wire.FieldValue))
	}

	// The third promise arrives after the latch: no second broadcast.
	handle.reset()
	p.HandleMessage(transport.RequestContext{Sender: testAddr(9003, "accepter")}, promise)
	require.Empty(t, handle.ofType(wire.TypeAccept))
}

// TestProposerAdoptsHighestAccepted checks the classic pick-highest rule:
// when promisers report previously accepted values, the accept broadcast
// carries the pair with the largest accepted ballot, not the proposer's
// own value.
func TestProposerAdoptsHighestAccepted(t *testing.T) {
	t.Parallel()

	p, handle := newTestProposer(9001, []int{9001, 9002, 9003}, []int{9001, 9002, 9003})
	p.HandleMessage(clientCtx("cb-1"), wire.Propose("mine"))
	handle.reset()

	lowBallot := int64(1)
	highBallot := int64(4)
	p.HandleMessage(transport.RequestContext{Sender: testAddr(9001, "accepter")},
		wire.Promise(1, 0, &lowBallot, "older", 1))
	p.HandleMessage(transport.RequestContext{Sender: testAddr(9002, "accepter")},
		wire.Promise(1, 0, &highBallot, "newest", 1))

	accepts := handle.ofType(wire.TypeAccept)
	require.Len(t, accepts, 3)
	for _, req := range accepts {
		ballot, err := req.Body.Int64(wire.FieldBallotID)
		require.NoError(t, err)
		require.EqualValues(t, highBallot, ballot)
		require.Equal(t, "newest", req.Body.Value(wire.FieldValue))
	}
}

// TestProposerPromiseForUnknownInstance treats promises for instances it
// never prepared as no-ops, while still catching up the instance counter.
func TestProposerPromiseForUnknownInstance(t *testing.T) {
	t.Parallel()

	p, handle := newTestProposer(9001, []int{9001}, []int{9001})

	p.HandleMessage(transport.RequestContext{Sender: testAddr(9001, "accepter")},
		wire.Promise(7, 0, nil, nil, 7))
	require.Empty(t, handle.queued)

	// The next propose allocates past the observed highest instance.
	p.HandleMessage(clientCtx("cb-1"), wire.Propose("v"))
	prepares := handle.ofType(wire.TypePrepare)
	require.Len(t, prepares, 1)
	id, err := prepares[0].Body.Int64(wire.FieldInstanceID)
	require.NoError(t, err)
	require.EqualValues(t, 8, id)
}

// TestProposerNackReissues: a nack_prepare makes the proposer retry the
// failed instance's value on a fresh, larger instance id at its next
// disjoint ballot.
func TestProposerNackReissues(t *testing.T) {
	t.Parallel()

	p, handle := newTestProposer(9001, []int{9001, 9002, 9003}, []int{9001, 9002, 9003})
	p.HandleMessage(clientCtx("cb-1"), wire.Propose("v"))
	handle.reset()

	p.HandleMessage(transport.RequestContext{Sender: testAddr(9002, "accepter")},
		wire.NackPrepare(1, 1))

	prepares := handle.ofType(wire.TypePrepare)
	require.Len(t, prepares, 3)
	id, err := prepares[0].Body.Int64(wire.FieldInstanceID)
	require.NoError(t, err)
	require.EqualValues(t, 2, id)

	// Seed 0 in a 3-proposer cluster bumps to 3.
	ballot, err := prepares[0].Body.Int64(wire.FieldBallotID)
	require.NoError(t, err)
	require.EqualValues(t, 3, ballot)

	// The retried instance carries the original value forward once a
	// quorum promises it.
	handle.reset()
	promise := wire.Promise(2, 3, nil, nil, 2)
	p.HandleMessage(transport.RequestContext{Sender: testAddr(9001, "accepter")}, promise)
	p.HandleMessage(transport.RequestContext{Sender: testAddr(9002, "accepter")}, promise)
	accepts := handle.ofType(wire.TypeAccept)
	require.Len(t, accepts, 3)
	require.Equal(t, "v", accepts[0].Body.Value(wire.FieldValue))
}

// TestProposerAcceptedIgnored: accepted messages are counted by learners,
// not proposers.
func TestProposerAcceptedIgnored(t *testing.T) {
	t.Parallel()

	p, handle := newTestProposer(9001, []int{9001}, []int{9001})
	p.HandleMessage(transport.RequestContext{Sender: testAddr(9001, "accepter")},
		wire.Accepted(1, 0, "v"))
	require.Empty(t, handle.queued)
}
