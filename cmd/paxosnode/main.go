// Command paxosnode is the process bootstrap: it parses a peer list and
// starts one Proposer/Accepter/Learner trio bound to a single UDP
// endpoint.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/paxoslabs/engine/internal/obslog"
	"github.com/paxoslabs/engine/internal/paxos"
	"github.com/paxoslabs/engine/internal/transport"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	var (
		peersFlag      string
		metricsAddr    string
		forwardTimeout time.Duration
		logLevel       string
	)

	cmd := &cobra.Command{
		Use:   "paxosnode host:port",
		Short: "Run one Paxos Proposer/Accepter/Learner trio on a UDP endpoint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, port, err := transport.ParseEndpoint(args[0])
			if err != nil {
				return fmt.Errorf("paxosnode: %w", err)
			}
			peers, err := transport.ParseEndpoints(peersFlag)
			if err != nil {
				return fmt.Errorf("paxosnode: %w", err)
			}
			if len(peers) == 0 {
				peers = []string{args[0]}
			}

			logger := obslog.New(obslog.Options{Console: os.Stderr, Level: obslog.ParseLevel(logLevel)})

			var metrics *transport.Metrics
			if metricsAddr != "" {
				reg := prometheus.NewRegistry()
				metrics = transport.NewMetrics(reg)
				go serveMetrics(metricsAddr, reg, logger)
			}

			engine, err := paxos.NewEngine(paxos.EngineConfig{
				Host:           host,
				Port:           port,
				Peers:          peers,
				ForwardTimeout: forwardTimeout,
				Logger:         logger,
				OnLearn: func(instanceID int64, value interface{}) {
					logger.Info("value learned", "instance_id", instanceID, "value", value)
				},
			}, transport.WithMetrics(metrics))
			if err != nil {
				return fmt.Errorf("paxosnode: %w", err)
			}
			defer engine.Server.Close()

			logger.Info("paxosnode listening", "addr", engine.Server.LocalAddr(), "peers", peers)

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return engine.Server.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&peersFlag, "peers", "", "comma-separated host:port list, identical on every node (defaults to just this node)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this host:port")
	cmd.Flags().DurationVar(&forwardTimeout, "forward-timeout", 2*time.Second, "how long a non-leader proposer waits for the leader to answer a forwarded propose")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "debug, info, warn, or error")

	return cmd
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *slog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server stopped", "err", err)
	}
}
