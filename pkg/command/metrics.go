package command

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcomes recorded by Metrics.
const (
	outcomeOK     = "ok"
	outcomeDenied = "denied"
	outcomeError  = "error"
)

// Metrics records command pipeline activity. A nil *Metrics is a no-op.
type Metrics struct {
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	audits      *prometheus.CounterVec
}

// NewMetrics registers the pipeline collectors on reg.
// Returns nil when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	return &Metrics{
		invocations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "taverna_command_invocations_total",
				Help: "Command invocations by command and outcome",
			},
			[]string{"command", "outcome"}, // outcome: ok, denied, error
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "taverna_command_duration_seconds",
				Help:    "Command pipeline duration including hooks",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"command"},
		),
		audits: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "taverna_audit_records_total",
				Help: "Audit records published by result",
			},
			[]string{"result"}, // "sent", "failed"
		),
	}
}

func (m *Metrics) observeInvocation(command, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(command, outcome).Inc()
	m.duration.WithLabelValues(command).Observe(took.Seconds())
}

func (m *Metrics) observeAudit(sent bool) {
	if m == nil {
		return
	}
	result := "sent"
	if !sent {
		result = "failed"
	}
	m.audits.WithLabelValues(result).Inc()
}
