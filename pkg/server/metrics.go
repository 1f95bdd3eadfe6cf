package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "gloomgate"

// Metrics holds the Prometheus instruments for the gateway.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
	FramesReceived    prometheus.Counter
	FramesSent        prometheus.Counter
	DispatchErrors    prometheus.Counter
	BroadcastsTotal   prometheus.Counter
	SendQueueDepth    prometheus.Histogram
}

// NewMetrics registers the gateway metrics with the given registerer.
// Passing nil uses the default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "active_connections",
			Help:      "Number of currently open websocket connections",
		}),
		ConnectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "connections_total",
			Help:      "Total number of accepted websocket connections",
		}),
		FramesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_received_total",
			Help:      "Total number of inbound frames",
		}),
		FramesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "frames_sent_total",
			Help:      "Total number of outbound frames",
		}),
		DispatchErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dispatch_errors_total",
			Help:      "Total number of requests answered with an error envelope",
		}),
		BroadcastsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "broadcasts_total",
			Help:      "Total number of broadcast envelopes fanned out",
		}),
		SendQueueDepth: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "send_queue_depth",
			Help:      "Queued frames per connection observed at enqueue time",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}
