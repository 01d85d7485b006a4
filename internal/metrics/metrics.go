// Package metrics provides Prometheus metrics for badnet.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "badnet"
)

// Direction label values.
const (
	DirectionClientToServer = "client_to_server"
	DirectionServerToClient = "server_to_client"
)

// Metrics contains all Prometheus metrics for the relay.
type Metrics struct {
	// Packet metrics
	PacketsReceived  *prometheus.CounterVec
	PacketsForwarded *prometheus.CounterVec
	PacketsDropped   *prometheus.CounterVec
	PacketsSkipped   prometheus.Counter

	// Data transfer metrics
	BytesReceived  *prometheus.CounterVec
	BytesForwarded *prometheus.CounterVec
	PayloadSize    prometheus.Histogram

	// Endpoint learning
	ClientKnown prometheus.Gauge
}

// NewMetricsWithRegistry creates a new Metrics instance registered with reg.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		PacketsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_received_total",
			Help:      "Total datagrams received by direction",
		}, []string{"direction"}),
		PacketsForwarded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_forwarded_total",
			Help:      "Total datagrams forwarded by direction",
		}, []string{"direction"}),
		PacketsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_dropped_total",
			Help:      "Total datagrams dropped by the loss policy by direction",
		}, []string{"direction"}),
		PacketsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_skipped_total",
			Help:      "Total server datagrams discarded because no client was known yet",
		}),

		BytesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_received_total",
			Help:      "Total payload bytes received by direction",
		}, []string{"direction"}),
		BytesForwarded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_forwarded_total",
			Help:      "Total payload bytes forwarded by direction",
		}, []string{"direction"}),
		PayloadSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "payload_size_bytes",
			Help:      "Histogram of received datagram payload sizes",
			Buckets:   []float64{0, 64, 256, 512, 1024, 1472, 4096, 16384, 65536},
		}),

		ClientKnown: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "client_known",
			Help:      "1 once a client address has been learned, 0 before",
		}),
	}
}

// RecordReceived records a datagram arriving from the given direction.
func (m *Metrics) RecordReceived(direction string, bytes int) {
	if m == nil {
		return
	}
	m.PacketsReceived.WithLabelValues(direction).Inc()
	m.BytesReceived.WithLabelValues(direction).Add(float64(bytes))
	m.PayloadSize.Observe(float64(bytes))
}

// RecordForwarded records a datagram sent on to its destination.
func (m *Metrics) RecordForwarded(direction string, bytes int) {
	if m == nil {
		return
	}
	m.PacketsForwarded.WithLabelValues(direction).Inc()
	m.BytesForwarded.WithLabelValues(direction).Add(float64(bytes))
}

// RecordDropped records a datagram discarded by the loss policy.
func (m *Metrics) RecordDropped(direction string) {
	if m == nil {
		return
	}
	m.PacketsDropped.WithLabelValues(direction).Inc()
}

// RecordSkipped records a server datagram with nowhere to go.
func (m *Metrics) RecordSkipped() {
	if m == nil {
		return
	}
	m.PacketsSkipped.Inc()
}

// SetClientKnown sets the client learning gauge.
func (m *Metrics) SetClientKnown(known bool) {
	if m == nil {
		return
	}
	if known {
		m.ClientKnown.Set(1)
		return
	}
	m.ClientKnown.Set(0)
}
