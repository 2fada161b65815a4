package taverna

import (
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bft-labs/taverna/pkg/bot"
	"github.com/bft-labs/taverna/pkg/command"
	"github.com/bft-labs/taverna/pkg/extension"
	"github.com/bft-labs/taverna/pkg/log"
	"github.com/bft-labs/taverna/pkg/monitor"
)

// Platform is the chat transport together with its audit delivery.
type Platform interface {
	bot.Platform
	command.AuditSink
}

// Option configures optional behavior of a Bot.
type Option func(*options)

type options struct {
	logger       log.Logger
	registry     *prometheus.Registry
	platform     Platform
	sampler      monitor.Sampler
	extensions   []extension.Extension
	eventHandler EventHandler
	signals      []os.Signal
}

// WithLogger sets the logger. If not provided, a no-op logger is used.
func WithLogger(logger log.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithRegistry sets the Prometheus registry collectors are registered on
// and /metrics serves. If not provided, metrics are disabled.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithPlatform replaces the Discord session.
func WithPlatform(p Platform) Option {
	return func(o *options) { o.platform = p }
}

// WithSampler replaces the gopsutil process sampler.
func WithSampler(s monitor.Sampler) Option {
	return func(o *options) { o.sampler = s }
}

// WithExtensions makes extensions available to the catalog. Only those
// whose name appears in Config.Extensions are loaded.
func WithExtensions(exts ...extension.Extension) Option {
	return func(o *options) { o.extensions = append(o.extensions, exts...) }
}

// WithEventHandler receives lifecycle state changes.
func WithEventHandler(h EventHandler) Option {
	return func(o *options) { o.eventHandler = h }
}

// WithSignals overrides the termination signals.
func WithSignals(sigs ...os.Signal) Option {
	return func(o *options) { o.signals = sigs }
}

// registerer and gatherer keep a nil registry from becoming a typed nil.
func (o *options) registerer() prometheus.Registerer {
	if o.registry == nil {
		return nil
	}
	return o.registry
}

func (o *options) gatherer() prometheus.Gatherer {
	if o.registry == nil {
		return nil
	}
	return o.registry
}
