// Package transport implements the message-passing substrate that
// multiplexes Paxos actors over a single UDP endpoint: a dispatch loop,
// an outbound queue, and a callback table with deadline-based expiration.
package transport

import (
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/paxoslabs/engine/internal/wire"
)

// MaxMessageSize bounds a single datagram. Oversize datagrams are
// truncated by the kernel and will fail to decode; the server drops them
// like any other malformed datagram.
const MaxMessageSize = 8192

// RequestContext carries the sender address and callback-id of the
// message currently being delivered, so a handler can echo a response
// back to the requester.
type RequestContext struct {
	Sender      Address
	CallbackID  string
	HasCallback bool
}

// Handler is the narrow interface the server routes messages to. An
// actor's Attach is called once at registration time with its own name
// and a ServerHandle, never the other way around, so the server never
// holds an owning reference into the actor graph.
type Handler interface {
	Attach(name string, server ServerHandle)
	HandleMessage(ctx RequestContext, body wire.Body)
}

// QueueRequest is the argument to ServerHandle.Queue, covering both
// fire-and-forget sends and requests that expect a response or timeout.
type QueueRequest struct {
	Sender     string
	Recipient  Address
	Body       wire.Body
	IsResponse bool
	// CallbackID is only meaningful when IsResponse is true: it is the
	// id being echoed back to the original requester.
	CallbackID string
	// Timeout, if positive, allocates a fresh callback-id and registers
	// OnResponse/OnTimeout against it.
	Timeout    time.Duration
	OnResponse func(wire.Body)
	OnTimeout  func()
}

// ServerHandle is the narrow API actors use to send messages, handed to
// each actor at Attach time instead of a pointer to the whole server.
type ServerHandle interface {
	Queue(req QueueRequest)
}

type outboundEntry struct {
	dest net.Addr
	data []byte
}

// Server owns one UDP socket and runs a single-threaded cooperative
// dispatch loop. All actor state reachable through it is touched only
// from the Run goroutine, so nothing here needs a mutex.
type Server struct {
	host    string
	port    int
	conn    net.PacketConn
	log     *slog.Logger
	codec   wire.Codec
	metrics *Metrics

	handlers map[string]Handler

	outbound    []outboundEntry
	writeCursor *outboundEntry
	writeOffset int

	callbacks *callbackTable
	nextID    func() string
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithCodec overrides the default wire.JSONCodec.
func WithCodec(c wire.Codec) Option {
	return func(s *Server) { s.codec = c }
}

// WithLogger attaches a structured logger; nil disables logging.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithMetrics attaches Prometheus instrumentation.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithCallbackIDFunc overrides how fresh callback-ids are minted
// (default github.com/google/uuid). Tests use this for deterministic ids.
func WithCallbackIDFunc(f func() string) Option {
	return func(s *Server) { s.nextID = f }
}

// WithConn overrides the net.PacketConn the server binds to, bypassing
// host/port. Used by tests to plug in an in-memory fake connection.
func WithConn(conn net.PacketConn) Option {
	return func(s *Server) { s.conn = conn }
}

// NewServer binds a UDP socket at host:port and returns a Server ready
// to have actors registered on it.
func NewServer(host string, port int, opts ...Option) (*Server, error) {
	s := &Server{
		host:      host,
		port:      port,
		codec:     wire.JSONCodec{},
		handlers:  make(map[string]Handler),
		callbacks: newCallbackTable(),
		nextID:    newUUID,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.conn == nil {
		conn, err := net.ListenPacket("udp", net.JoinHostPort(host, fmt.Sprint(port)))
		if err != nil {
			return nil, fmt.Errorf("transport: listen %s:%d: %w", host, port, err)
		}
		s.conn = conn
	}
	return s, nil
}

// LocalAddr reports the bound socket's network address.
func (s *Server) LocalAddr() net.Addr { return s.conn.LocalAddr() }

// Close releases the underlying socket.
func (s *Server) Close() error { return s.conn.Close() }

// Register attaches an actor under a local name. Inbound datagrams
// naming that recipient are delivered to it.
func (s *Server) Register(name string, h Handler) {
	s.handlers[name] = h
	h.Attach(name, s)
}

// Queue implements ServerHandle. A request with a positive Timeout gets
// a fresh callback-id; exactly one of OnResponse or OnTimeout will run.
func (s *Server) Queue(req QueueRequest) {
	env := wire.Envelope{
		Sender:     req.Sender,
		Recipient:  req.Recipient.Name,
		Body:       req.Body,
		IsResponse: req.IsResponse,
	}

	if req.IsResponse {
		env.HasCallback = true
		env.CallbackID = req.CallbackID
	} else if req.Timeout > 0 {
		id := s.nextID()
		s.callbacks.insert(id, &Callback{
			OnResponse: req.OnResponse,
			OnTimeout:  req.OnTimeout,
			Deadline:   time.Now().Add(req.Timeout),
		})
		env.HasCallback = true
		env.CallbackID = id
	}

	s.enqueueEnvelope(req.Recipient, env)
}

func (s *Server) enqueueEnvelope(recipient Address, env wire.Envelope) {
	data, err := s.codec.Encode(env)
	if err != nil {
		if s.log != nil {
			s.log.Error("transport: encode failed, dropping", "err", err)
		}
		s.metrics.incDropped("encode_error")
		return
	}
	dest := &net.UDPAddr{IP: net.ParseIP(recipient.Host), Port: recipient.Port}
	if dest.IP == nil {
		resolved, err := net.ResolveUDPAddr("udp", recipient.Endpoint())
		if err != nil {
			if s.log != nil {
				s.log.Error("transport: resolve failed, dropping", "recipient", recipient, "err", err)
			}
			s.metrics.incDropped("resolve_error")
			return
		}
		dest = resolved
	}
	s.outbound = append(s.outbound, outboundEntry{dest: dest, data: data})
	s.metrics.setPending(s.callbacks.len())
}
