package paxos

import "github.com/paxoslabs/engine/internal/transport"

// proposerInstance is a Proposer's per-instance record: the ballot it is
// driving, the value it is trying to get chosen, and the promise quorum
// it has collected so far.
type proposerInstance struct {
	ballotID                int64
	value                   interface{}
	quorum                  map[transport.Address]struct{}
	highestAcceptedBallotID *int64
	highestAcceptedValue    interface{}
	quorumReached           bool

	// client is the address that originally proposed this instance's
	// value. It is only copied onto the fresh instance when a nacked
	// instance is re-proposed; no notification is ever sent to it. The
	// client is acked when the propose is received, not when the value is
	// chosen.
	client transport.Address
}

func newProposerInstance(ballotID int64, value interface{}) *proposerInstance {
	return &proposerInstance{
		ballotID: ballotID,
		value:    value,
		quorum:   make(map[transport.Address]struct{}),
	}
}

// accepterInstance is an Accepter's per-instance record: the highest
// ballot it has promised or accepted, and the value (if any) it last
// accepted.
type accepterInstance struct {
	highestBallotID  int64
	hasAccepted      bool
	acceptedBallotID int64
	acceptedValue    interface{}
}

// newAccepterInstance seeds highestBallotID below any real ballot (which
// are always >= 0) so the first prepare for an instance is always
// accepted.
func newAccepterInstance() *accepterInstance {
	return &accepterInstance{highestBallotID: -1}
}

// learnerInstance is a Learner's per-instance record: the last value
// each Accepter reported, and a running count of Accepters currently
// reporting each distinct value.
type learnerInstance struct {
	accepters map[transport.Address]interface{}
	values    map[string]int
	learned   bool
}

func newLearnerInstance() *learnerInstance {
	return &learnerInstance{
		accepters: make(map[transport.Address]interface{}),
		values:    make(map[string]int),
	}
}
