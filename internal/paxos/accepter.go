package paxos

import (
	"log/slog"

	"github.com/paxoslabs/engine/internal/actor"
	"github.com/paxoslabs/engine/internal/transport"
	"github.com/paxoslabs/engine/internal/wire"
)

// AccepterConfig parameterizes an Accepter: the set of Learner addresses
// it broadcasts accepted values to.
type AccepterConfig struct {
	Self     transport.Address
	Learners []transport.Address
	Logger   *slog.Logger
}

// Accepter promises and accepts ballots. Its highest-ballot-id per
// instance never moves backwards, which is what makes Paxos safe.
type Accepter struct {
	*actor.Base

	self     transport.Address
	learners []transport.Address
	log      *slog.Logger

	highestInstanceID int64
	instances         map[int64]*accepterInstance
}

// NewAccepter constructs an Accepter and wires its message-type routes.
func NewAccepter(cfg AccepterConfig) *Accepter {
	a := &Accepter{
		Base:      actor.NewBase(cfg.Logger),
		self:      cfg.Self,
		learners:  append([]transport.Address(nil), cfg.Learners...),
		log:       cfg.Logger,
		instances: make(map[int64]*accepterInstance),
	}
	a.Handle(wire.TypePrepare, a.receivePrepare)
	a.Handle(wire.TypeAccept, a.receiveAccept)
	a.Handle(wire.TypeJoin, a.receiveJoin)
	a.Handle(wire.TypeLearnerList, a.receiveLearnerList)
	return a
}

func (a *Accepter) instance(id int64) *accepterInstance {
	rec, ok := a.instances[id]
	if !ok {
		rec = newAccepterInstance()
		a.instances[id] = rec
	}
	return rec
}

// receivePrepare promises a ballot at or above the instance's highest,
// reporting any previously accepted pair, and nacks anything lower.
func (a *Accepter) receivePrepare(ctx transport.RequestContext, body wire.Body) {
	instanceID, err := body.Int64(wire.FieldInstanceID)
	if err != nil {
		return
	}
	ballotID, err := body.Int64(wire.FieldBallotID)
	if err != nil {
		return
	}

	rec := a.instance(instanceID)
	if ballotID >= rec.highestBallotID {
		if instanceID > a.highestInstanceID {
			a.highestInstanceID = instanceID
		}
		rec.highestBallotID = ballotID

		var acceptedBallotPtr *int64
		if rec.hasAccepted {
			v := rec.acceptedBallotID
			acceptedBallotPtr = &v
		}
		a.Send(ctx.Sender, wire.Promise(instanceID, ballotID, acceptedBallotPtr, rec.acceptedValue, a.highestInstanceID))
		return
	}

	a.Send(ctx.Sender, wire.NackPrepare(instanceID, a.highestInstanceID))
}

// receiveAccept records an accepted value and fans it out to every
// Learner plus the requesting Proposer. The `>=` (not `>`) comparison
// lets a Proposer that promised at ballot b subsequently accept at the
// same b, as standard Paxos requires.
func (a *Accepter) receiveAccept(ctx transport.RequestContext, body wire.Body) {
	instanceID, err := body.Int64(wire.FieldInstanceID)
	if err != nil {
		return
	}
	ballotID, err := body.Int64(wire.FieldBallotID)
	if err != nil {
		return
	}
	value := body.Value(wire.FieldValue)

	rec := a.instance(instanceID)
	if ballotID < rec.highestBallotID {
		return
	}

	rec.highestBallotID = ballotID
	rec.hasAccepted = true
	rec.acceptedBallotID = ballotID
	rec.acceptedValue = value

	for _, learner := range a.learners {
		a.Send(learner, wire.Accepted(instanceID, ballotID, value))
	}
	a.Send(ctx.Sender, wire.Accepted(instanceID, ballotID, value))
}
