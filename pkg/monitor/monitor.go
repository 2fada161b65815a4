// Package monitor periodically samples the bot's memory and CPU usage and
// warns when a threshold is exceeded.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/taverna/pkg/log"
)

// Default thresholds and interval.
const (
	DefaultRSSMB      = 500
	DefaultVMSMB      = 1000
	DefaultCPUPercent = 50
	DefaultInterval   = 20 * time.Second
)

// Thresholds are the limits above which a sample is reported.
type Thresholds struct {
	RSSMB      float64
	VMSMB      float64
	CPUPercent float64
}

// DefaultThresholds returns the default limits.
func DefaultThresholds() Thresholds {
	return Thresholds{
		RSSMB:      DefaultRSSMB,
		VMSMB:      DefaultVMSMB,
		CPUPercent: DefaultCPUPercent,
	}
}

// Breached reports whether u exceeds any limit.
func (t Thresholds) Breached(u Usage) bool {
	return u.RSSMB > t.RSSMB || u.VMSMB > t.VMSMB || u.CPUPercent > t.CPUPercent
}

// Validate rejects non-positive limits.
func (t Thresholds) Validate() error {
	if t.RSSMB <= 0 || t.VMSMB <= 0 || t.CPUPercent <= 0 {
		return fmt.Errorf("monitor: thresholds must be positive")
	}
	return nil
}

// Config holds monitor settings.
type Config struct {
	// Interval between samples.
	// Default: 20s
	Interval time.Duration

	Thresholds Thresholds
}

// DefaultConfig returns a Config with the default interval and thresholds.
func DefaultConfig() Config {
	return Config{
		Interval:   DefaultInterval,
		Thresholds: DefaultThresholds(),
	}
}

// Monitor runs the sampling loop.
type Monitor struct {
	sampler  Sampler
	interval time.Duration
	logger   log.Logger
	metrics  *Metrics

	mu         sync.RWMutex
	thresholds Thresholds
	last       Usage

	lifecycle sync.Mutex
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a monitor. Zero config fields take their defaults.
func New(sampler Sampler, cfg Config, logger log.Logger, metrics *Metrics) *Monitor {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Thresholds.RSSMB <= 0 {
		cfg.Thresholds.RSSMB = def.Thresholds.RSSMB
	}
	if cfg.Thresholds.VMSMB <= 0 {
		cfg.Thresholds.VMSMB = def.Thresholds.VMSMB
	}
	if cfg.Thresholds.CPUPercent <= 0 {
		cfg.Thresholds.CPUPercent = def.Thresholds.CPUPercent
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	return &Monitor{
		sampler:    sampler,
		interval:   cfg.Interval,
		logger:     logger,
		metrics:    metrics,
		thresholds: cfg.Thresholds,
	}
}

// Start launches the sampling loop. The first sample is taken
// immediately. Starting a running monitor is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if m.cancel != nil {
		return
	}

	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go m.loop(loopCtx)

	m.logger.Info("resource monitor started", log.Duration("interval", m.interval))
}

// Stop cancels the loop and waits for it to exit. It is idempotent.
func (m *Monitor) Stop() {
	m.lifecycle.Lock()
	defer m.lifecycle.Unlock()

	if m.cancel == nil {
		return
	}
	m.cancel()
	m.wg.Wait()
	m.cancel = nil

	m.logger.Info("resource monitor stopped")
}

// SetThresholds replaces the limits used from the next tick on.
func (m *Monitor) SetThresholds(t Thresholds) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.thresholds = t
}

// Thresholds returns the current limits.
func (m *Monitor) Thresholds() Thresholds {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.thresholds
}

// Last returns the most recent successful sample.
func (m *Monitor) Last() Usage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()

	m.checkOnce(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkOnce(ctx)
		}
	}
}

func (m *Monitor) checkOnce(ctx context.Context) {
	usage, err := m.sampler.Sample(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		m.metrics.failed()
		m.logger.Warn("resource sample failed", log.Err(err))
		return
	}

	m.mu.Lock()
	m.last = usage
	limits := m.thresholds
	m.mu.Unlock()

	m.metrics.observe(usage)

	if limits.Breached(usage) {
		m.metrics.warned()
		m.logger.Warn("high resource usage detected",
			log.Float64("rss_mb", usage.RSSMB),
			log.Float64("vms_mb", usage.VMSMB),
			log.Float64("cpu_percent", usage.CPUPercent))
	}
}
