package paxos

import (
	"github.com/paxoslabs/engine/internal/transport"
	"github.com/paxoslabs/engine/internal/wire"
)

// Group-join handshake. Purely additive: a node that only ever receives
// its peer sets from static config never exercises this path. A
// late-joining node calls JoinGroup against one already-running peer to
// learn its accepter/learner set at runtime instead. The ballot-seed
// computation still requires the full, identically-ordered proposer list
// on every node; joining widens only the accepter and learner sets.

const (
	fieldAccepterList = "list_of_accepters"
	fieldLearnerList  = "list_of_learners"
)

func encodeEndpoints(addrs []transport.Address) []string {
	out := make([]string, len(addrs))
	for i, a := range addrs {
		out[i] = a.Endpoint()
	}
	return out
}

// decodeEndpoints accepts both the []interface{} shape a wire round-trip
// produces and the []string shape encodeEndpoints builds, so locally
// delivered bodies behave the same as remote ones. Malformed entries are
// skipped.
func decodeEndpoints(v interface{}, name string) []transport.Address {
	var items []string
	switch raw := v.(type) {
	case []string:
		items = raw
	case []interface{}:
		for _, item := range raw {
			if s, ok := item.(string); ok {
				items = append(items, s)
			}
		}
	default:
		return nil
	}
	out := make([]transport.Address, 0, len(items))
	for _, s := range items {
		addr, err := transport.WithName(s, name)
		if err != nil {
			continue
		}
		out = append(out, addr)
	}
	return out
}

func addAddresses(existing []transport.Address, fresh []transport.Address) []transport.Address {
	seen := make(map[transport.Address]struct{}, len(existing))
	for _, a := range existing {
		seen[a] = struct{}{}
	}
	for _, a := range fresh {
		if _, ok := seen[a]; !ok {
			existing = append(existing, a)
			seen[a] = struct{}{}
		}
	}
	return existing
}

// JoinGroup asks peer (another Proposer) to share its known Accepters.
func (p *Proposer) JoinGroup(peer transport.Address) {
	p.Send(peer, wire.Body{wire.FieldMessageType: wire.TypeJoin})
}

func (p *Proposer) receiveJoin(ctx transport.RequestContext, _ wire.Body) {
	p.Send(ctx.Sender, wire.Body{
		wire.FieldMessageType: wire.TypeAccepterList,
		fieldAccepterList:     encodeEndpoints(p.accepters),
	})
}

func (p *Proposer) receiveAccepterList(_ transport.RequestContext, body wire.Body) {
	fresh := decodeEndpoints(body.Value(fieldAccepterList), "accepter")
	p.accepters = addAddresses(p.accepters, fresh)
}

// JoinGroup asks peer (another Accepter) to share its known Learners.
func (a *Accepter) JoinGroup(peer transport.Address) {
	a.Send(peer, wire.Body{wire.FieldMessageType: wire.TypeJoin})
}

func (a *Accepter) receiveJoin(ctx transport.RequestContext, _ wire.Body) {
	a.Send(ctx.Sender, wire.Body{
		wire.FieldMessageType: wire.TypeLearnerList,
		fieldLearnerList:      encodeEndpoints(a.learners),
	})
}

func (a *Accepter) receiveLearnerList(_ transport.RequestContext, body wire.Body) {
	fresh := decodeEndpoints(body.Value(fieldLearnerList), "learner")
	a.learners = addAddresses(a.learners, fresh)
}
