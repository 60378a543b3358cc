package transport

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the message server's Prometheus instrumentation. A nil
// *Metrics is valid everywhere it's used (all methods are no-ops), so
// tests and the in-memory transport never need to wire a registry.
type Metrics struct {
	sent            prometheus.Counter
	received        prometheus.Counter
	dropped         *prometheus.CounterVec
	callbackTimeout prometheus.Counter
	callbackOK      prometheus.Counter
	pendingDeadline prometheus.Gauge
}

// NewMetrics registers the message server's counters and gauges on reg
// under the paxos_transport namespace.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "paxos_transport",
			Name:      "datagrams_sent_total",
			Help:      "Datagrams successfully written to the socket.",
		}),
		received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "paxos_transport",
			Name:      "datagrams_received_total",
			Help:      "Datagrams read off the socket.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "paxos_transport",
			Name:      "datagrams_dropped_total",
			Help:      "Datagrams dropped before delivery, by reason.",
		}, []string{"reason"}),
		callbackTimeout: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "paxos_transport",
			Name:      "callback_timeouts_total",
			Help:      "Pending callbacks whose deadline fired before a response arrived.",
		}),
		callbackOK: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "paxos_transport",
			Name:      "callback_responses_total",
			Help:      "Pending callbacks resolved by a matching response.",
		}),
		pendingDeadline: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "paxos_transport",
			Name:      "pending_callbacks",
			Help:      "Callbacks currently awaiting a response or timeout.",
		}),
	}
	reg.MustRegister(m.sent, m.received, m.dropped, m.callbackTimeout, m.callbackOK, m.pendingDeadline)
	return m
}

func (m *Metrics) incSent() {
	if m != nil {
		m.sent.Inc()
	}
}

func (m *Metrics) incReceived() {
	if m != nil {
		m.received.Inc()
	}
}

func (m *Metrics) incDropped(reason string) {
	if m != nil {
		m.dropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) incCallbackTimeout() {
	if m != nil {
		m.callbackTimeout.Inc()
	}
}

func (m *Metrics) incCallbackOK() {
	if m != nil {
		m.callbackOK.Inc()
	}
}

func (m *Metrics) setPending(n int) {
	if m != nil {
		m.pendingDeadline.Set(float64(n))
	}
}
