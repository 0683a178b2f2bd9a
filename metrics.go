package handel

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors an Agent reports through, when
// wired via Config.Metrics. Every collector carries a constant "node"
// label so several agents in one process - as the simulation harness
// runs - don't collide on registration.
type Metrics struct {
	LevelsCompleted     prometheus.Gauge
	TodosPending        prometheus.Gauge
	SignerCount         prometheus.Gauge
	PacketsSent         prometheus.Counter
	PacketsReceived     prometheus.Counter
	VerificationsOK     prometheus.Counter
	VerificationsFailed prometheus.Counter
	TodosApplied        prometheus.Counter
	TimeToThreshold     prometheus.Histogram
}

// NewMetrics registers a fresh set of collectors for nodeID on reg.
func NewMetrics(reg prometheus.Registerer, nodeID int32) *Metrics {
	labels := prometheus.Labels{"node": fmt.Sprintf("%d", nodeID)}
	m := &Metrics{
		LevelsCompleted: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "handel_levels_completed",
			Help:        "Number of levels that have reached ReceiveCompleted.",
			ConstLabels: labels,
		}),
		TodosPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "handel_todos_pending",
			Help:        "Number of todos currently queued awaiting verification.",
			ConstLabels: labels,
		}),
		SignerCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "handel_signer_count",
			Help:        "Number of signers in the current best aggregate signature.",
			ConstLabels: labels,
		}),
		PacketsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "handel_packets_sent_total",
			Help:        "Number of packets sent to peers.",
			ConstLabels: labels,
		}),
		PacketsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "handel_packets_received_total",
			Help:        "Number of packets delivered to this agent.",
			ConstLabels: labels,
		}),
		VerificationsOK: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "handel_verifications_ok_total",
			Help:        "Number of signature verifications that succeeded.",
			ConstLabels: labels,
		}),
		VerificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "handel_verifications_failed_total",
			Help:        "Number of signature verifications that failed, by any cause.",
			ConstLabels: labels,
		}),
		TodosApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "handel_todos_applied_total",
			Help:        "Number of verified todos that actually grew the store.",
			ConstLabels: labels,
		}),
		TimeToThreshold: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "handel_time_to_threshold_seconds",
			Help:        "Wall-clock time from Start to the aggregate crossing threshold.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(
		m.LevelsCompleted,
		m.TodosPending,
		m.SignerCount,
		m.PacketsSent,
		m.PacketsReceived,
		m.VerificationsOK,
		m.VerificationsFailed,
		m.TodosApplied,
		m.TimeToThreshold,
	)
	return m
}
