package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes the latest sample. A nil *Metrics is a no-op.
type Metrics struct {
	rss      prometheus.Gauge
	vms      prometheus.Gauge
	cpu      prometheus.Gauge
	warnings prometheus.Counter
	failures prometheus.Counter
}

// NewMetrics registers the monitor collectors on reg.
// Returns nil when reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	f := promauto.With(reg)
	return &Metrics{
		rss: f.NewGauge(prometheus.GaugeOpts{
			Name: "taverna_process_rss_megabytes",
			Help: "Resident set size of the bot process in megabytes",
		}),
		vms: f.NewGauge(prometheus.GaugeOpts{
			Name: "taverna_process_vms_megabytes",
			Help: "Virtual memory size of the bot process in megabytes",
		}),
		cpu: f.NewGauge(prometheus.GaugeOpts{
			Name: "taverna_process_cpu_percent",
			Help: "CPU usage of the bot process in percent",
		}),
		warnings: f.NewCounter(prometheus.CounterOpts{
			Name: "taverna_resource_warnings_total",
			Help: "Samples that breached at least one threshold",
		}),
		failures: f.NewCounter(prometheus.CounterOpts{
			Name: "taverna_resource_sample_failures_total",
			Help: "Samples that could not be taken",
		}),
	}
}

func (m *Metrics) observe(u Usage) {
	if m == nil {
		return
	}
	m.rss.Set(u.RSSMB)
	m.vms.Set(u.VMSMB)
	m.cpu.Set(u.CPUPercent)
}

func (m *Metrics) warned() {
	if m == nil {
		return
	}
	m.warnings.Inc()
}

func (m *Metrics) failed() {
	if m == nil {
		return
	}
	m.failures.Inc()
}
