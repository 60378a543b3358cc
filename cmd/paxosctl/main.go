// Command paxosctl is a trivial blocking client: it sends one propose
// datagram at a target node and waits for the acknowledgement or a
// timeout.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/paxoslabs/engine/internal/paxos"
	"github.com/paxoslabs/engine/internal/transport"
	"github.com/paxoslabs/engine/internal/wire"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	var (
		target  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "paxosctl value",
		Short: "Send one propose datagram to a Paxos node and print the response",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return propose(target, args[0], timeout)
		},
	}

	cmd.Flags().StringVar(&target, "target", "127.0.0.1:9000", "host:port of the node's proposer")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "how long to wait for a response")

	return cmd
}

func propose(target, value string, timeout time.Duration) error {
	host, port, err := transport.ParseEndpoint(target)
	if err != nil {
		return fmt.Errorf("paxosctl: %w", err)
	}
	recipient := transport.Address{Host: host, Port: port, Name: paxos.NameProposer}

	conn, err := net.ListenPacket("udp", "0.0.0.0:0")
	if err != nil {
		return fmt.Errorf("paxosctl: %w", err)
	}
	defer conn.Close()

	server, err := transport.NewServer("", 0, transport.WithConn(conn))
	if err != nil {
		return fmt.Errorf("paxosctl: %w", err)
	}
	defer server.Close()

	done := make(chan error, 1)
	server.Register("client", clientHandler{})
	server.Queue(transport.QueueRequest{
		Sender:    "client",
		Recipient: recipient,
		Body:      wire.Propose(value),
		Timeout:   timeout,
		OnResponse: func(wire.Body) {
			fmt.Println("ok")
			done <- nil
		},
		OnTimeout: func() {
			done <- fmt.Errorf("paxosctl: timed out waiting for %s", target)
		},
	})

	go func() { _ = server.Run(context.Background()) }()
	return <-done
}

// clientHandler never receives unsolicited messages; paxosctl's only
// inbound traffic is the server-level response to its own propose.
type clientHandler struct{}

func (clientHandler) Attach(string, transport.ServerHandle) {}
func (clientHandler) HandleMessage(transport.RequestContext, wire.Body) {}
