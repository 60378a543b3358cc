package paxos

import (
	"log/slog"
	"time"

	"github.com/paxoslabs/engine/internal/transport"
)

// Conventional actor names every process registers under. Clients
// address their propose datagrams to "proposer".
const (
	NameProposer = "proposer"
	NameAccepter = "accepter"
	NameLearner  = "learner"
)

// EngineConfig describes one node's place in the cluster: its own
// host:port and the full peer list. Every node must be configured with
// the same list so the ballot-seed sorts agree.
type EngineConfig struct {
	Host           string
	Port           int
	Peers          []string // host:port, including self; same order on every node
	OnLearn        OnLearnFunc
	ForwardTimeout time.Duration
	Logger         *slog.Logger
}

// Engine wires one Proposer, one Accepter, and one Learner onto a shared
// transport.Server, so each process hosts all three Paxos roles behind a
// single UDP endpoint.
type Engine struct {
	Server   *transport.Server
	Proposer *Proposer
	Accepter *Accepter
	Learner  *Learner
}

// NewEngine binds a UDP socket at cfg.Host:cfg.Port and registers the
// trio of actors on it.
func NewEngine(cfg EngineConfig, opts ...transport.Option) (*Engine, error) {
	proposers := make([]transport.Address, 0, len(cfg.Peers))
	accepters := make([]transport.Address, 0, len(cfg.Peers))
	learners := make([]transport.Address, 0, len(cfg.Peers))
	for _, peer := range cfg.Peers {
		p, err := transport.WithName(peer, NameProposer)
		if err != nil {
			return nil, err
		}
		a, err := transport.WithName(peer, NameAccepter)
		if err != nil {
			return nil, err
		}
		l, err := transport.WithName(peer, NameLearner)
		if err != nil {
			return nil, err
		}
		proposers = append(proposers, p)
		accepters = append(accepters, a)
		learners = append(learners, l)
	}
	allOpts := append([]transport.Option{
		transport.WithLogger(cfg.Logger),
	}, opts...)
	server, err := transport.NewServer(cfg.Host, cfg.Port, allOpts...)
	if err != nil {
		return nil, err
	}

	self := transport.Address{Host: cfg.Host, Port: cfg.Port}
	selfProposer := self
	selfProposer.Name = NameProposer
	selfAccepter := self
	selfAccepter.Name = NameAccepter
	selfLearner := self
	selfLearner.Name = NameLearner

	proposer := NewProposer(ProposerConfig{
		Self:           selfProposer,
		Proposers:      proposers,
		Accepters:      accepters,
		ForwardTimeout: cfg.ForwardTimeout,
		Logger:         cfg.Logger,
	})
	accepter := NewAccepter(AccepterConfig{
		Self:     selfAccepter,
		Learners: learners,
		Logger:   cfg.Logger,
	})
	learner := NewLearner(LearnerConfig{
		Self:      selfLearner,
		Accepters: accepters,
		OnLearn:   cfg.OnLearn,
		Logger:    cfg.Logger,
	})

	server.Register(NameProposer, proposer)
	server.Register(NameAccepter, accepter)
	server.Register(NameLearner, learner)

	return &Engine{Server: server, Proposer: proposer, Accepter: accepter, Learner: learner}, nil
}

// ProposerAddress is the address clients should send "propose" datagrams
// to on this node.
func (e *Engine) ProposerAddress() transport.Address {
	a := e.Server.LocalAddr()
	host, port, _ := transport.ParseEndpoint(a.String())
	return transport.Address{Host: host, Port: port, Name: NameProposer}
}
