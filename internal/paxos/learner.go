package paxos

import (
	"log/slog"

	"github.com/paxoslabs/engine/internal/actor"
	"github.com/paxoslabs/engine/internal/transport"
	"github.com/paxoslabs/engine/internal/wire"
)

// OnLearnFunc is invoked exactly once per instance, the first time that
// instance's value reaches quorum.
type OnLearnFunc func(instanceID int64, value interface{})

// LearnerConfig parameterizes a Learner. The accepter set is used only
// for its cardinality.
type LearnerConfig struct {
	Self      transport.Address
	Accepters []transport.Address
	OnLearn   OnLearnFunc
	Logger    *slog.Logger
}

// Learner counts accepted reports per instance and latches a value once
// a majority of Accepters agree on it.
type Learner struct {
	*actor.Base

	self      transport.Address
	accepters []transport.Address
	onLearn   OnLearnFunc
	log       *slog.Logger

	instances map[int64]*learnerInstance
}

// NewLearner constructs a Learner and wires its message-type routes.
func NewLearner(cfg LearnerConfig) *Learner {
	l := &Learner{
		Base:      actor.NewBase(cfg.Logger),
		self:      cfg.Self,
		accepters: append([]transport.Address(nil), cfg.Accepters...),
		onLearn:   cfg.OnLearn,
		log:       cfg.Logger,
		instances: make(map[int64]*learnerInstance),
	}
	l.Handle(wire.TypeAccepted, l.receiveAccepted)
	return l
}

func (l *Learner) instance(id int64) *learnerInstance {
	rec, ok := l.instances[id]
	if !ok {
		rec = newLearnerInstance()
		l.instances[id] = rec
	}
	return rec
}

// receiveAccepted tracks each Accepter's most recently reported value
// rather than accumulating every report, since an Accepter may switch
// its accepted value across ballots; only a value change moves the
// counts, which is what keeps a duplicate delivery a no-op.
func (l *Learner) receiveAccepted(ctx transport.RequestContext, body wire.Body) {
	instanceID, err := body.Int64(wire.FieldInstanceID)
	if err != nil {
		return
	}
	value := body.Value(wire.FieldValue)

	rec := l.instance(instanceID)
	from := ctx.Sender
	newKey := valueKey(value)

	if prev, ok := rec.accepters[from]; ok {
		prevKey := valueKey(prev)
		if prevKey == newKey {
			return
		}
		rec.values[prevKey]--
		if rec.values[prevKey] <= 0 {
			delete(rec.values, prevKey)
		}
	}
	rec.accepters[from] = value
	rec.values[newKey]++

	if rec.values[newKey] >= majority(len(l.accepters)) && !rec.learned {
		rec.learned = true
		if l.onLearn != nil {
			l.onLearn(instanceID, value)
		}
	}
}
