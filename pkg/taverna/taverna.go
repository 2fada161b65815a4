// Package taverna assembles the bot runtime: datastore, extensions,
// command pipeline, platform, resource monitor, health server and the
// shutdown coordinator. Use New, then Run.
package taverna

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/bft-labs/taverna/internal/adapters/discord"
	"github.com/bft-labs/taverna/pkg/authz"
	"github.com/bft-labs/taverna/pkg/bot"
	"github.com/bft-labs/taverna/pkg/command"
	"github.com/bft-labs/taverna/pkg/extension"
	"github.com/bft-labs/taverna/pkg/health"
	"github.com/bft-labs/taverna/pkg/lifecycle"
	"github.com/bft-labs/taverna/pkg/log"
	"github.com/bft-labs/taverna/pkg/monitor"
	"github.com/bft-labs/taverna/pkg/shutdown"
	"github.com/bft-labs/taverna/pkg/store"
	"github.com/bft-labs/taverna/plugins/admin"
)

var (
	ErrInvalidConfig  = errors.New("taverna: invalid configuration")
	ErrAlreadyRunning = errors.New("taverna: already running")
)

// Bot is an assembled bot process.
type Bot struct {
	config Config
	logger log.Logger

	store        *store.Manager
	commands     *command.Registry
	tracker      *extension.Tracker
	loader       *extension.Loader
	pipeline     *command.Pipeline
	platform     Platform
	monitor      *monitor.Monitor
	shutdown     *shutdown.Coordinator
	lifecycle    *lifecycle.DefaultManager
	orchestrator *bot.Orchestrator
	health       *health.Server

	running atomic.Bool
}

// New wires a Bot. Nothing connects until Run.
func New(cfg Config, opts ...Option) (*Bot, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := validateModuleVersions(); err != nil {
		return nil, err
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	storeCfg, err := store.ParseURL(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	storeCfg.GenerateSchemas = cfg.GenerateSchemas
	backend, err := store.NewGORMBackend(storeCfg)
	if err != nil {
		return nil, err
	}
	manager := store.NewManager(backend, logger.With(log.String("component", "store")))

	commands := command.NewRegistry()
	tracker := extension.NewTracker(logger.With(log.String("component", "readiness")))

	registry, err := extension.NewRegistry(append([]extension.Extension{admin.New(manager)}, o.extensions...)...)
	if err != nil {
		return nil, err
	}
	host := extension.NewRegistryHost(commands, logger.With(log.String("component", "extensions")))
	loader := extension.NewLoader(extension.NewCatalog(cfg.Extensions...), registry, tracker, host, logger)

	var session *discord.Session
	platform := o.platform
	if platform == nil {
		session, err = discord.New(cfg.APIKey, commands, logger.With(log.String("component", "discord")))
		if err != nil {
			return nil, err
		}
		platform = session
	}

	pipeline := command.NewPipeline(authz.NewGate(manager), manager, platform,
		logger.With(log.String("component", "commands")),
		command.WithMetrics(command.NewMetrics(o.registerer())))
	if session != nil {
		session.SetDispatcher(discord.NewDispatcher(commands, pipeline))
	}

	sampler := o.sampler
	if sampler == nil {
		sampler, err = monitor.NewProcessSampler(0)
		if err != nil {
			return nil, err
		}
	}
	mon := monitor.New(sampler, cfg.Monitor, logger.With(log.String("component", "monitor")),
		monitor.NewMetrics(o.registerer()))

	var shutdownOpts []shutdown.Option
	shutdownOpts = append(shutdownOpts, shutdown.WithTimeout(cfg.ShutdownTimeout))
	if len(o.signals) > 0 {
		shutdownOpts = append(shutdownOpts, shutdown.WithSignals(o.signals...))
	}
	coordinator := shutdown.New(logger.With(log.String("component", "shutdown")), shutdownOpts...)

	lc := lifecycle.NewManager(logger, newEventEmitter(o.eventHandler, o.registerer()))

	orchestrator := bot.New(bot.Config{
		Credential:        cfg.APIKey,
		Version:           cfg.Version,
		ReadinessInterval: cfg.ReadinessInterval,
		ReadinessTimeout:  cfg.ReadinessTimeout,
	}, platform, manager, loader, tracker,
		bot.WithMonitor(mon),
		bot.WithShutdown(coordinator),
		bot.WithLifecycle(lc),
		bot.WithLogger(logger))
	if session != nil {
		session.OnConnected(orchestrator.HandleConnected)
		session.OnGuildAvailable(func(ctx context.Context, g *store.Guild) error {
			if err := manager.EnsureGuild(ctx, g); err != nil {
				return err
			}
			return orchestrator.HandleGuildAvailable(ctx, g.ID)
		})
		session.OnMembersLoaded(orchestrator.RefreshPresence)
	}

	b := &Bot{
		config:       cfg,
		logger:       logger,
		store:        manager,
		commands:     commands,
		tracker:      tracker,
		loader:       loader,
		pipeline:     pipeline,
		platform:     platform,
		monitor:      mon,
		shutdown:     coordinator,
		lifecycle:    lc,
		orchestrator: orchestrator,
	}

	if cfg.MetricsAddr != "" {
		handler := health.NewHandler(orchestrator, tracker, manager)
		b.health = health.NewServer(health.Config{Addr: cfg.MetricsAddr}, handler, o.gatherer(),
			logger.With(log.String("component", "health")))
	}

	return b, nil
}

// Run boots the bot and blocks until it shuts down, either from a
// termination signal, from ctx being cancelled or from Shutdown. It returns
// the boot error, if any.
func (b *Bot) Run(ctx context.Context) error {
	if !b.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	b.shutdown.OnStart(func(string) { cancel() })

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		b.shutdown.Listen(gctx)
		return nil
	})

	if b.health != nil {
		b.shutdown.Register("health", b.health.Stop)
		g.Go(func() error { return b.health.Start(gctx) })
	}

	g.Go(func() error {
		err := b.orchestrator.Boot(gctx)
		if err != nil && b.shutdown.Reason() == "" {
			b.shutdown.Shutdown("boot failed")
			return err
		}
		<-gctx.Done()
		b.shutdown.Shutdown("context cancelled")
		return nil
	})

	return g.Wait()
}

// Shutdown tears the bot down and waits for the hooks to finish.
func (b *Bot) Shutdown(reason string) {
	b.shutdown.Shutdown(reason)
}

// State returns the lifecycle state.
func (b *Bot) State() lifecycle.State {
	return b.orchestrator.State()
}

// Ready reports whether the bot is serving with every extension ready.
func (b *Bot) Ready() bool {
	return b.orchestrator.Ready()
}

// StateChanged returns a channel closed on the next lifecycle transition.
func (b *Bot) StateChanged() <-chan struct{} {
	return b.lifecycle.Changed()
}

// SetThresholds changes the resource monitor limits at runtime.
func (b *Bot) SetThresholds(t monitor.Thresholds) error {
	if err := t.Validate(); err != nil {
		return err
	}
	b.monitor.SetThresholds(t)
	return nil
}

// Commands returns the command registry.
func (b *Bot) Commands() *command.Registry {
	return b.commands
}

// Pipeline returns the command pipeline.
func (b *Bot) Pipeline() *command.Pipeline {
	return b.pipeline
}

// Store returns the datastore manager.
func (b *Bot) Store() *store.Manager {
	return b.store
}

// Extensions returns the load state of every catalogued extension.
func (b *Bot) Extensions() []extension.Unit {
	return b.loader.Units()
}
