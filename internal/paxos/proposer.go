package paxos

import (
	"log/slog"
	"time"

	"github.com/paxoslabs/engine/internal/actor"
	"github.com/paxoslabs/engine/internal/transport"
	"github.com/paxoslabs/engine/internal/wire"
)

// ProposerConfig parameterizes a Proposer: the set of known Proposer
// addresses (used to derive ballot disjointness and the leader) and the
// set of Accepter addresses it prepares/accepts against.
type ProposerConfig struct {
	Self      transport.Address
	Proposers []transport.Address
	Accepters []transport.Address
	// ForwardTimeout bounds how long a non-leader Proposer waits for the
	// leader to answer a forwarded propose before giving up.
	ForwardTimeout time.Duration
	Logger         *slog.Logger
}

// Proposer drives instances of single-decree Paxos to a chosen value,
// one instance per accepted client propose.
type Proposer struct {
	*actor.Base

	self      transport.Address
	sorted    []transport.Address
	accepters []transport.Address
	seed      int64
	n         int64

	forwardTimeout time.Duration
	log            *slog.Logger

	currentInstanceID int64
	nextBallotID      int64
	instances         map[int64]*proposerInstance
}

// NewProposer constructs a Proposer and wires its message-type routes.
func NewProposer(cfg ProposerConfig) *Proposer {
	seed, sorted := ballotSeed(cfg.Self, cfg.Proposers)
	if cfg.ForwardTimeout <= 0 {
		cfg.ForwardTimeout = 2 * time.Second
	}
	p := &Proposer{
		Base:           actor.NewBase(cfg.Logger),
		self:           cfg.Self,
		sorted:         sorted,
		accepters:      append([]transport.Address(nil), cfg.Accepters...),
		seed:           seed,
		n:              int64(len(sorted)),
		forwardTimeout: cfg.ForwardTimeout,
		log:            cfg.Logger,
		nextBallotID:   seed,
		instances:      make(map[int64]*proposerInstance),
	}
	p.Handle(wire.TypePropose, p.receivePropose)
	p.Handle(wire.TypePromise, p.receivePromise)
	p.Handle(wire.TypeNackPrepare, p.receiveNackPrepare)
	p.Handle(wire.TypeAccepted, p.receiveAccepted)
	p.Handle(wire.TypeJoin, p.receiveJoin)
	p.Handle(wire.TypeAccepterList, p.receiveAccepterList)
	return p
}

func (p *Proposer) isLeader() bool {
	return p.self == leader(p.sorted)
}

func (p *Proposer) leaderAddr() transport.Address {
	a := leader(p.sorted)
	a.Name = "proposer"
	return a
}

func (p *Proposer) allocateInstance(value interface{}, client transport.Address) (int64, *proposerInstance) {
	p.currentInstanceID++
	id := p.currentInstanceID
	ballotID := p.nextBallotID
	p.nextBallotID += p.n
	rec := newProposerInstance(ballotID, value)
	rec.client = client
	p.instances[id] = rec
	return id, rec
}

// receivePropose handles a client propose. The leader allocates a fresh
// instance and starts the prepare round; any other proposer forwards the
// value to the leader and acks its client once the leader answers.
func (p *Proposer) receivePropose(ctx transport.RequestContext, body wire.Body) {
	value := body.Value(wire.FieldValue)

	if p.isLeader() {
		instanceID, rec := p.allocateInstance(value, ctx.Sender)
		p.sendPrepare(instanceID, rec)
		p.Respond(ctx, wire.Body{wire.FieldMessageType: wire.TypePropose})
		return
	}

	p.Request(p.leaderAddr(), wire.Propose(value), p.forwardTimeout,
		func(wire.Body) {
			p.Respond(ctx, wire.Body{wire.FieldMessageType: wire.TypePropose})
		},
		func() {
			if p.log != nil {
				p.log.Warn("proposer: forwarded propose timed out", "leader", p.leaderAddr())
			}
		},
	)
}

// sendPrepare broadcasts prepare(instance_id, ballot_id) to every known
// Accepter.
func (p *Proposer) sendPrepare(instanceID int64, rec *proposerInstance) {
	if len(p.accepters) == 0 {
		if p.log != nil {
			p.log.Warn("proposer: no known accepters, prepare not sent", "instance_id", instanceID)
		}
		return
	}
	for _, accepter := range p.accepters {
		p.Send(accepter, wire.Prepare(instanceID, rec.ballotID))
	}
}

func (p *Proposer) receivePromise(ctx transport.RequestContext, body wire.Body) {
	instanceID, err := body.Int64(wire.FieldInstanceID)
	if err != nil {
		return
	}
	highestInstanceID, _ := body.Int64(wire.FieldHighestInstance)
	if highestInstanceID > p.currentInstanceID {
		p.currentInstanceID = highestInstanceID
	}

	rec, ok := p.instances[instanceID]
	if !ok {
		return
	}

	acceptedBallotID, hasAccepted, err := body.OptionalInt64(wire.FieldAcceptedBallotID)
	if err == nil && hasAccepted {
		if rec.highestAcceptedBallotID == nil || acceptedBallotID > *rec.highestAcceptedBallotID {
			v := acceptedBallotID
			rec.highestAcceptedBallotID = &v
			rec.highestAcceptedValue = body.Value(wire.FieldAcceptedValue)
		}
	}

	rec.quorum[ctx.Sender] = struct{}{}

	if rec.quorumReached {
		return
	}
	if len(rec.quorum) < majority(len(p.accepters)) {
		return
	}
	rec.quorumReached = true

	chosenBallot := rec.ballotID
	chosenValue := rec.value
	if rec.highestAcceptedBallotID != nil {
		chosenBallot = *rec.highestAcceptedBallotID
		chosenValue = rec.highestAcceptedValue
	}
	for _, accepter := range p.accepters {
		p.Send(accepter, wire.Accept(instanceID, chosenBallot, chosenValue))
	}
}

func (p *Proposer) receiveNackPrepare(_ transport.RequestContext, body wire.Body) {
	failedInstanceID, err := body.Int64(wire.FieldFailedInstance)
	if err != nil {
		return
	}
	highestInstanceID, _ := body.Int64(wire.FieldHighestInstance)
	if highestInstanceID > p.currentInstanceID {
		p.currentInstanceID = highestInstanceID
	}

	rec, ok := p.instances[failedInstanceID]
	if !ok {
		return
	}
	newInstanceID, newRec := p.allocateInstance(rec.value, rec.client)
	p.sendPrepare(newInstanceID, newRec)
}

// receiveAccepted is a no-op: Learners count accepted messages, not
// Proposers.
func (p *Proposer) receiveAccepted(transport.RequestContext, wire.Body) {}
