package overlay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics of an Overlay. Each Overlay registers
// its metrics in its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	// Connection metrics
	PeersAccepted  prometheus.Counter
	PeersInitiated prometheus.Counter
	Handshakes     prometheus.Counter
	PeersDropped   *prometheus.CounterVec
	PeersLive      prometheus.Gauge

	// Message metrics
	MessagesReceived      *prometheus.CounterVec
	MessagesSent          *prometheus.CounterVec
	MessagesDiscarded     *prometheus.CounterVec
	PeerAddressesRejected prometheus.Counter

	// Flood metrics
	FloodRecords    prometheus.Gauge
	FloodDuplicates prometheus.Counter
}

// NewMetrics creates a Metrics instance with the given namespace.
func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		PeersAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "peers_accepted_total",
			Help:      "Total number of inbound connections accepted",
		}),
		PeersInitiated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "peers_initiated_total",
			Help:      "Total number of outbound connections initiated",
		}),
		Handshakes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_total",
			Help:      "Total number of completed handshakes",
		}),
		PeersDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "peers_dropped_total",
			Help:      "Total number of dropped peers by reason",
		}, []string{"reason"}),
		PeersLive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "peers_live",
			Help:      "Current number of registered peers",
		}),

		MessagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Total number of messages dispatched by type",
		}, []string{"type"}),
		MessagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Total number of messages sent by type",
		}, []string{"type"}),
		MessagesDiscarded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_discarded_total",
			Help:      "Total number of inbound messages discarded by type",
		}, []string{"type"}),
		PeerAddressesRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "peer_addresses_rejected_total",
			Help:      "Total number of malformed entries in Peers messages",
		}),

		FloodRecords: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "flood_records",
			Help:      "Current number of flooded messages tracked",
		}),
		FloodDuplicates: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flood_duplicates_total",
			Help:      "Total number of flooded messages received more than once",
		}),
	}
}

func (m *Metrics) recordReceived(t string) {
	m.MessagesReceived.WithLabelValues(t).Inc()
}

func (m *Metrics) recordSent(t string) {
	m.MessagesSent.WithLabelValues(t).Inc()
}

func (m *Metrics) recordDiscarded(t string) {
	m.MessagesDiscarded.WithLabelValues(t).Inc()
}

func (m *Metrics) recordDropped(reason DropReason) {
	m.PeersDropped.WithLabelValues(reason.String()).Inc()
}
