package transport

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/paxoslabs/engine/internal/wire"
)

func newUUID() string { return uuid.NewString() }

// maxWait bounds how long a single read blocks when no deadline is
// pending, so Run keeps checking ctx.Done even when the engine is
// otherwise idle.
const maxWait = 1 * time.Second

// Run executes the dispatch loop until ctx is cancelled or the socket
// returns a non-recoverable error. Each iteration performs at most one
// of: fire an expired callback, advance a partial write, start the next
// queued write, or block for readability/next deadline.
func (s *Server) Run(ctx context.Context) error {
	buf := make([]byte, MaxMessageSize)
	for {
		if ctx.Err() != nil {
			return nil
		}

		if id, ok := s.callbacks.popExpired(time.Now()); ok {
			s.fireTimeout(id)
			continue
		}

		if s.writeCursor != nil {
			if s.advanceWrite() {
				continue
			}
			// Write would block; fall through to the multiplexed
			// wait so we don't spin on the socket.
		} else if len(s.outbound) > 0 {
			entry := s.outbound[0]
			s.outbound = s.outbound[1:]
			s.writeCursor = &entry
			s.writeOffset = 0
			continue
		}

		if err := s.waitAndRead(ctx, buf); err != nil {
			return err
		}
	}
}

// advanceWrite attempts one sendto for the remaining bytes of the
// in-flight datagram. UDP writes are atomic in practice, so this almost
// always clears the cursor in one call; the partial-write bookkeeping
// keeps per-destination FIFO intact on any transport that can report a
// short write.
func (s *Server) advanceWrite() bool {
	entry := s.writeCursor
	n, err := s.conn.WriteTo(entry.data[s.writeOffset:], entry.dest)
	if err != nil {
		if isRecoverable(err) {
			return false
		}
		if s.log != nil {
			s.log.Error("transport: send failed, dropping datagram", "dest", entry.dest, "err", err)
		}
		s.metrics.incDropped("send_error")
		s.writeCursor = nil
		s.writeOffset = 0
		return true
	}
	s.writeOffset += n
	s.metrics.incSent()
	if s.writeOffset >= len(entry.data) {
		s.writeCursor = nil
		s.writeOffset = 0
	}
	return true
}

func (s *Server) waitAndRead(ctx context.Context, buf []byte) error {
	wait := maxWait
	if deadline, ok := s.callbacks.nextDeadline(); ok {
		if until := time.Until(deadline); until < wait {
			wait = until
		}
	}
	if wait < 0 {
		wait = 0
	}
	if err := s.conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return err
	}

	n, addr, err := s.conn.ReadFrom(buf)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		if isTimeout(err) {
			return nil
		}
		if isRecoverable(err) {
			return nil
		}
		return err
	}

	s.metrics.incReceived()
	s.handleDatagram(addr, buf[:n])
	return nil
}

func (s *Server) handleDatagram(from net.Addr, data []byte) {
	env, err := s.codec.Decode(data)
	if err != nil {
		if s.log != nil {
			s.log.Debug("transport: decode failed, dropping", "from", from, "err", err)
		}
		s.metrics.incDropped("decode_error")
		return
	}

	host, port, err := splitNetAddr(from)
	if err != nil {
		if s.log != nil {
			s.log.Debug("transport: bad source address, dropping", "from", from, "err", err)
		}
		s.metrics.incDropped("bad_source")
		return
	}
	sender := Address{Host: host, Port: port, Name: env.Sender}

	if env.IsResponse {
		s.resolveResponse(env)
		return
	}

	handler, ok := s.handlers[env.Recipient]
	if !ok {
		if s.log != nil {
			s.log.Debug("transport: unknown recipient, dropping", "recipient", env.Recipient)
		}
		s.metrics.incDropped("unknown_recipient")
		return
	}

	ctx := RequestContext{Sender: sender}
	if env.HasCallback {
		ctx.HasCallback = true
		ctx.CallbackID = env.CallbackID
	}
	handler.HandleMessage(ctx, env.Body)
}

func (s *Server) resolveResponse(env wire.Envelope) {
	if !env.HasCallback {
		s.metrics.incDropped("response_without_callback")
		return
	}
	cb, ok := s.callbacks.resolve(env.CallbackID)
	if !ok {
		if s.log != nil {
			s.log.Debug("transport: stale callback, dropping", "callback_id", env.CallbackID)
		}
		s.metrics.incDropped("stale_callback")
		return
	}
	s.metrics.incCallbackOK()
	s.metrics.setPending(s.callbacks.len())
	if cb.OnResponse != nil {
		cb.OnResponse(env.Body)
	}
}

func (s *Server) fireTimeout(id string) {
	cb, ok := s.callbacks.resolve(id)
	if !ok {
		return
	}
	s.metrics.incCallbackTimeout()
	s.metrics.setPending(s.callbacks.len())
	if cb.OnTimeout != nil {
		cb.OnTimeout()
	}
}

func splitNetAddr(addr net.Addr) (string, int, error) {
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return ParseEndpoint(addr.String())
	}
	return udpAddr.IP.String(), udpAddr.Port, nil
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// isRecoverable reports whether err is a transient socket condition
// (would-block, interrupted) that the loop should retry on its next
// tick rather than treat as fatal.
func isRecoverable(err error) bool {
	return isTimeout(err)
}
