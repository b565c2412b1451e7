package rpc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus collectors of a Session.
type Metrics struct {
	// Call metrics
	Calls           *prometheus.CounterVec
	CallDuration    *prometheus.HistogramVec
	PendingRequests prometheus.Gauge

	// Connection metrics
	State              prometheus.Gauge
	Reconnects         prometheus.Counter
	ConnectionLost     prometheus.Counter
	ProtocolViolations prometheus.Counter
	NamespaceLookups   *prometheus.CounterVec

	// Subscription metrics
	Subscriptions prometheus.Gauge
	Notifications *prometheus.CounterVec
}

// NewMetrics registers the collectors with the default registerer.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry registers the collectors with registry. A nil
// registry yields collectors that are not exported anywhere.
func NewMetricsWithRegistry(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	factory := promauto.With(registry)

	return &Metrics{
		Calls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bts_rpc_calls_total",
			Help: "Calls issued through the session, by namespace, method and outcome",
		}, []string{"namespace", "method", "outcome"}),
		CallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bts_rpc_call_duration_seconds",
			Help:    "Time from Call to outcome, including time spent waiting for the session to become ready",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"namespace"}),
		PendingRequests: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bts_rpc_pending_requests",
			Help: "Requests sent and awaiting a response",
		}),
		State: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bts_rpc_session_state",
			Help: "Current session state (0 disconnected, 1 connecting, 2 authenticating, 3 ready, 4 closing)",
		}),
		Reconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "bts_rpc_reconnects_total",
			Help: "Connection attempts made after the first one",
		}),
		ConnectionLost: factory.NewCounter(prometheus.CounterOpts{
			Name: "bts_rpc_connection_lost_requests_total",
			Help: "Pending requests failed because the connection dropped",
		}),
		ProtocolViolations: factory.NewCounter(prometheus.CounterOpts{
			Name: "bts_rpc_protocol_violations_total",
			Help: "Malformed inbound envelopes",
		}),
		NamespaceLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bts_rpc_namespace_lookups_total",
			Help: "Remote namespace resolutions, by namespace",
		}, []string{"namespace"}),
		Subscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "bts_rpc_subscriptions",
			Help: "Live notification subscriptions",
		}),
		Notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bts_rpc_notifications_total",
			Help: "Uncorrelated inbound messages, by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) observeCall(namespace, method, outcome string, elapsed time.Duration) {
	m.Calls.WithLabelValues(namespace, method, outcome).Inc()
	m.CallDuration.WithLabelValues(namespace).Observe(elapsed.Seconds())
}
