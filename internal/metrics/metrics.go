// Package metrics collects console-side counters on a private
// prometheus registry. The preview server exposes them; the stats
// command gathers them directly.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "deepr_console"

// Metrics holds every instrument the console records.
type Metrics struct {
	Registry *prometheus.Registry

	ConnectionState   prometheus.Gauge
	ReconnectAttempts prometheus.Counter
	MessagesReceived  *prometheus.CounterVec
	MessagesDropped   *prometheus.CounterVec
	ActionsSent       *prometheus.CounterVec
	SendRejections    prometheus.Counter
	ChunksReceived    prometheus.Counter
	ReportsCompleted  prometheus.Counter
	Exports           *prometheus.CounterVec
	ExportDuration    prometheus.Histogram
	HealthPolls       *prometheus.CounterVec
}

// New creates the registry and registers every instrument on it.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		Registry: registry,

		ConnectionState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Backend connection state (0 connecting, 1 open, 2 closed pending retry).",
		}),
		ReconnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Dial attempts after the initial connect.",
		}),
		MessagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Inbound messages by type tag.",
		}, []string{"type"}),
		MessagesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Inbound messages dropped by reason.",
		}, []string{"reason"}),
		ActionsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_sent_total",
			Help:      "Outbound actions by type tag.",
		}, []string{"type"}),
		SendRejections: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_rejections_total",
			Help:      "Sends rejected because the channel was not ready.",
		}),
		ChunksReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthesis_chunks_total",
			Help:      "Streamed report chunks received.",
		}),
		ReportsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_completed_total",
			Help:      "Research runs that delivered a final result.",
		}),
		Exports: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Report exports by outcome.",
		}, []string{"outcome"}),
		ExportDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "export_duration_seconds",
			Help:      "Time spent fetching an exported report.",
			Buckets:   prometheus.DefBuckets,
		}),
		HealthPolls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "health_polls_total",
			Help:      "Backend health polls by outcome.",
		}, []string{"outcome"}),
	}
}
