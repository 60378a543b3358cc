// Package actor implements the shared base of every Proposer, Accepter,
// and Learner: a small layer that dispatches inbound bodies by their
// message_type field and wraps the server's queue API for sends,
// requests, and responses.
package actor

import (
	"log/slog"
	"time"

	"github.com/paxoslabs/engine/internal/transport"
	"github.com/paxoslabs/engine/internal/wire"
)

// MessageFunc handles one inbound message of a given type.
type MessageFunc func(ctx transport.RequestContext, body wire.Body)

// Base wires a name and a transport.ServerHandle into a table of
// per-message-type handlers, and implements transport.Handler so any
// embedder can be registered directly on a transport.Server.
type Base struct {
	name   string
	server transport.ServerHandle
	log    *slog.Logger
	routes map[string]MessageFunc
}

// NewBase constructs a Base with an empty route table. Embedders add
// routes with Handle before the actor is registered.
func NewBase(log *slog.Logger) *Base {
	return &Base{routes: make(map[string]MessageFunc), log: log}
}

// Handle registers fn for messages whose message_type field equals typ.
func (b *Base) Handle(typ string, fn MessageFunc) {
	b.routes[typ] = fn
}

// Attach implements transport.Handler.
func (b *Base) Attach(name string, server transport.ServerHandle) {
	b.name = name
	b.server = server
}

// Name returns the local name this actor was registered under.
func (b *Base) Name() string { return b.name }

// HandleMessage implements transport.Handler: it reads message_type,
// looks up the route, and dispatches. An unknown type is logged and
// dropped rather than treated as fatal, since a peer running a newer
// protocol version should not be able to crash this node.
func (b *Base) HandleMessage(ctx transport.RequestContext, body wire.Body) {
	typ := body.MessageType()
	fn, ok := b.routes[typ]
	if !ok {
		if b.log != nil {
			b.log.Warn("actor: no handler for message type", "actor", b.name, "message_type", typ)
		}
		return
	}
	fn(ctx, body)
}

// Send queues a fire-and-forget message to recipient.
func (b *Base) Send(recipient transport.Address, body wire.Body) {
	b.server.Queue(transport.QueueRequest{
		Sender:    b.name,
		Recipient: recipient,
		Body:      body,
	})
}

// Request queues a message to recipient expecting a response or timeout
// within d, invoking exactly one of onResponse/onTimeout.
func (b *Base) Request(recipient transport.Address, body wire.Body, d time.Duration, onResponse func(wire.Body), onTimeout func()) {
	b.server.Queue(transport.QueueRequest{
		Sender:     b.name,
		Recipient:  recipient,
		Body:       body,
		Timeout:    d,
		OnResponse: onResponse,
		OnTimeout:  onTimeout,
	})
}

// Respond answers a request carried by ctx, echoing back its callback-id
// so the original requester's Request callback fires. Calling Respond on
// a RequestContext with no callback-id is a programming error in the
// caller and is silently ignored, since there is nothing on the wire to
// address a response to.
func (b *Base) Respond(ctx transport.RequestContext, body wire.Body) {
	if !ctx.HasCallback {
		return
	}
	b.server.Queue(transport.QueueRequest{
		Sender:     b.name,
		Recipient:  ctx.Sender,
		Body:       body,
		IsResponse: true,
		CallbackID: ctx.CallbackID,
	})
}
