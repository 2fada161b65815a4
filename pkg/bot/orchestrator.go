package bot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bft-labs/taverna/pkg/extension"
	"github.com/bft-labs/taverna/pkg/lifecycle"
	"github.com/bft-labs/taverna/pkg/log"
	"github.com/bft-labs/taverna/pkg/shutdown"
)

var (
	ErrMissingCredential = errors.New("bot: missing launch credential")
	ErrAlreadyBooted     = errors.New("bot: already booted")
	ErrStopping          = errors.New("bot: shutdown in progress")
)

const (
	// DefaultReadinessInterval is how often readiness is re-checked.
	DefaultReadinessInterval = 500 * time.Millisecond

	// DefaultPresenceDelay batches presence refreshes while guilds stream in.
	DefaultPresenceDelay = 2 * time.Second
)

// Store is the datastore connection the bot keeps for its lifetime.
type Store interface {
	Connect(ctx context.Context) error
	Close(ctx context.Context) error
}

// Loader loads the catalogued extensions.
type Loader interface {
	LoadAll(ctx context.Context) int
	UnloadAll(ctx context.Context) error
	Units() []extension.Unit
}

// ReadinessTracker reports extension readiness.
type ReadinessTracker interface {
	AllReady() bool
	Pending() []string
}

// ResourceMonitor is started once the bot is ready.
type ResourceMonitor interface {
	Start(ctx context.Context)
	Stop()
}

// Config holds orchestrator settings.
type Config struct {
	// Credential is the platform token. Boot fails without it.
	Credential string

	// Version is announced in the bot presence.
	Version string

	// ReadinessInterval between readiness checks.
	// Default: 500ms
	ReadinessInterval time.Duration

	// ReadinessTimeout bounds the readiness wait. Zero waits forever; on
	// expiry the bot proceeds with the extensions that did load.
	ReadinessTimeout time.Duration

	// PresenceDelay is how long a presence refresh waits for further guild
	// or member updates before it is sent.
	// Default: 2s
	PresenceDelay time.Duration
}

// Orchestrator runs the boot sequence.
type Orchestrator struct {
	cfg       Config
	platform  Platform
	store     Store
	loader    Loader
	tracker   ReadinessTracker
	monitor   ResourceMonitor
	shutdown  *shutdown.Coordinator
	lifecycle *lifecycle.DefaultManager
	logger    log.Logger

	booting atomic.Bool
	booted  atomic.Bool

	// stopCtx is cancelled when shutdown starts; background work runs on it.
	stopCtx    context.Context
	stopCancel context.CancelFunc

	announceMu sync.Mutex

	presenceMu    sync.Mutex
	presenceTimer *time.Timer
}

// Option configures optional collaborators.
type Option func(*Orchestrator)

// WithMonitor sets the resource monitor started when ready.
func WithMonitor(m ResourceMonitor) Option {
	return func(o *Orchestrator) { o.monitor = m }
}

// WithShutdown sets the coordinator receiving teardown hooks.
func WithShutdown(c *shutdown.Coordinator) Option {
	return func(o *Orchestrator) { o.shutdown = c }
}

// WithLifecycle sets the state machine the orchestrator drives.
func WithLifecycle(m *lifecycle.DefaultManager) Option {
	return func(o *Orchestrator) { o.lifecycle = m }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an orchestrator.
func New(cfg Config, platform Platform, store Store, loader Loader, tracker ReadinessTracker, opts ...Option) *Orchestrator {
	if cfg.ReadinessInterval <= 0 {
		cfg.ReadinessInterval = DefaultReadinessInterval
	}
	if cfg.PresenceDelay <= 0 {
		cfg.PresenceDelay = DefaultPresenceDelay
	}

	o := &Orchestrator{
		cfg:      cfg,
		platform: platform,
		store:    store,
		loader:   loader,
		tracker:  tracker,
		logger:   log.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	o.stopCtx, o.stopCancel = context.WithCancel(context.Background())
	if o.shutdown == nil {
		o.shutdown = shutdown.New(o.logger)
	}
	if o.lifecycle == nil {
		o.lifecycle = lifecycle.NewManager(o.logger, nil)
	}

	o.shutdown.OnStart(o.beginStop)
	o.shutdown.Register("lifecycle", o.finishStop)
	return o
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() lifecycle.State {
	return o.lifecycle.State()
}

// Ready reports whether the bot is serving with every extension ready.
func (o *Orchestrator) Ready() bool {
	return o.lifecycle.State() == lifecycle.StateServing && o.tracker.AllReady()
}

// Boot runs the boot sequence and returns once the bot is serving.
//
// A missing credential or a datastore failure ends in StateFatalInit.
// While waiting for readiness Boot blocks until every extension is ready,
// the readiness timeout expires, or ctx is cancelled.
func (o *Orchestrator) Boot(ctx context.Context) error {
	if !o.booting.CompareAndSwap(false, true) {
		return ErrAlreadyBooted
	}

	o.logger.Info("starting bot", log.String("version", o.cfg.Version))

	if o.cfg.Credential == "" {
		o.fatal("missing credential")
		return ErrMissingCredential
	}

	// Each release hook is registered before its resource is acquired, so
	// a shutdown that starts mid-acquisition still releases it.
	if !o.shutdown.Register("store", o.store.Close) {
		return ErrStopping
	}
	if err := o.transition(lifecycle.StateConnectingStore, "credential present"); err != nil {
		return err
	}
	if err := o.store.Connect(ctx); err != nil {
		if o.stopCtx.Err() != nil {
			return fmt.Errorf("%w: %v", ErrStopping, err)
		}
		o.fatal("datastore connection failed")
		return fmt.Errorf("bot: connect datastore: %w", err)
	}
	o.logger.Info("database connected")
	if err := o.checkStopping(); err != nil {
		return err
	}

	if err := o.transition(lifecycle.StateLoadingExtensions, "datastore connected"); err != nil {
		return err
	}
	if !o.shutdown.Register("extensions", o.loader.UnloadAll) {
		return ErrStopping
	}
	units := o.loader.Units()
	if len(units) == 0 {
		o.logger.Warn("no extensions found to load, launching without extensions")
	}
	loaded := o.loader.LoadAll(ctx)
	o.logger.Info("extensions loaded",
		log.Int("loaded", loaded),
		log.Int("total", len(units)))

	if !o.shutdown.Register("platform", o.platform.Close) {
		return ErrStopping
	}
	if err := o.platform.Open(ctx); err != nil {
		o.fatal("platform connection failed")
		return fmt.Errorf("bot: open platform: %w", err)
	}
	if err := o.checkStopping(); err != nil {
		return err
	}

	if len(units) > 0 {
		if err := o.transition(lifecycle.StateAwaitingReadiness, "extensions loaded"); err != nil {
			return err
		}
		if err := o.awaitReadiness(ctx); err != nil {
			return err
		}
	}

	if err := o.transition(lifecycle.StateReady, "extensions ready"); err != nil {
		return err
	}
	o.logger.Info("bot is ready")

	if o.monitor != nil {
		if !o.shutdown.Register("monitor", func(context.Context) error {
			o.monitor.Stop()
			return nil
		}) {
			return ErrStopping
		}
		o.monitor.Start(o.stopCtx)
	}

	o.booted.Store(true)
	if err := o.announce(ctx); err != nil {
		o.logger.Warn("announce failed", log.Err(err))
	}

	return o.transition(lifecycle.StateServing, "announced")
}

// HandleConnected is called on every platform (re)connect. Before boot
// completes it does nothing; afterwards it repeats the announcement.
// Extensions are never reloaded.
func (o *Orchestrator) HandleConnected(ctx context.Context) error {
	if !o.booted.Load() {
		o.logger.Debug("platform connected during boot")
		return nil
	}
	o.logger.Info("platform reconnected, announcing")
	return o.announce(ctx)
}

// HandleGuildAvailable is called for every guild the platform reports,
// at startup and on join. Once booted it syncs that guild's commands and
// schedules a presence refresh; before that the boot announcement covers it.
func (o *Orchestrator) HandleGuildAvailable(ctx context.Context, guildID uint64) error {
	if !o.booted.Load() {
		return nil
	}
	o.RefreshPresence()
	if err := o.platform.SyncCommands(ctx, []uint64{guildID}); err != nil {
		return fmt.Errorf("sync commands: %w", err)
	}
	return nil
}

// RefreshPresence schedules a presence update after PresenceDelay. Calls
// made while one is pending are folded into it. It does nothing before
// boot completes or after shutdown starts.
func (o *Orchestrator) RefreshPresence() {
	if !o.booted.Load() || o.stopCtx.Err() != nil {
		return
	}

	o.presenceMu.Lock()
	defer o.presenceMu.Unlock()
	if o.presenceTimer != nil {
		return
	}
	o.presenceTimer = time.AfterFunc(o.cfg.PresenceDelay, func() {
		o.presenceMu.Lock()
		o.presenceTimer = nil
		o.presenceMu.Unlock()

		if o.stopCtx.Err() != nil {
			return
		}
		o.announceMu.Lock()
		defer o.announceMu.Unlock()
		if err := o.platform.ChangePresence(o.stopCtx, o.activity()); err != nil {
			o.logger.Warn("presence refresh failed", log.Err(err))
		}
	})
}

func (o *Orchestrator) awaitReadiness(ctx context.Context) error {
	if o.tracker.AllReady() {
		return nil
	}

	ticker := time.NewTicker(o.cfg.ReadinessInterval)
	defer ticker.Stop()

	var expired <-chan time.Time
	if o.cfg.ReadinessTimeout > 0 {
		timer := time.NewTimer(o.cfg.ReadinessTimeout)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("bot: awaiting readiness: %w", ctx.Err())
		case <-expired:
			o.logger.Warn("readiness timeout, continuing without pending extensions",
				log.Duration("timeout", o.cfg.ReadinessTimeout),
				log.Strings("pending", o.tracker.Pending()))
			return nil
		case <-ticker.C:
			if o.tracker.AllReady() {
				return nil
			}
		}
	}
}

func (o *Orchestrator) announce(ctx context.Context) error {
	o.announceMu.Lock()
	defer o.announceMu.Unlock()

	var errs []error
	if err := o.platform.ChangePresence(ctx, o.activity()); err != nil {
		errs = append(errs, fmt.Errorf("change presence: %w", err))
	}

	guildIDs := o.platform.GuildIDs()
	o.logger.Debug("syncing commands", log.Int("guilds", len(guildIDs)))
	if err := o.platform.SyncCommands(ctx, guildIDs); err != nil {
		errs = append(errs, fmt.Errorf("sync commands: %w", err))
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) activity() Activity {
	return Activity{
		Type: ActivityWatching,
		Name: fmt.Sprintf("%d users | v%s", o.platform.MemberCount(), o.cfg.Version),
	}
}

func (o *Orchestrator) checkStopping() error {
	if o.stopCtx.Err() != nil {
		return ErrStopping
	}
	return nil
}

func (o *Orchestrator) transition(to lifecycle.State, reason string) error {
	if err := o.lifecycle.TransitionTo(to, reason); err != nil {
		o.logger.Error("lifecycle transition rejected", log.Err(err))
		return fmt.Errorf("bot: %w", err)
	}
	return nil
}

func (o *Orchestrator) fatal(reason string) {
	if err := o.lifecycle.TransitionTo(lifecycle.StateFatalInit, reason); err != nil {
		o.logger.Error("lifecycle transition rejected", log.Err(err))
	}
	o.logger.Error("fatal initialization error", log.String("reason", reason))
}

func (o *Orchestrator) beginStop(reason string) {
	o.stopCancel()
	o.presenceMu.Lock()
	if o.presenceTimer != nil {
		o.presenceTimer.Stop()
		o.presenceTimer = nil
	}
	o.presenceMu.Unlock()

	if err := o.lifecycle.TransitionTo(lifecycle.StateStopping, reason); err != nil {
		o.logger.Debug("skipping stopping transition", log.Err(err))
	}
}

func (o *Orchestrator) finishStop(context.Context) error {
	if o.lifecycle.State() != lifecycle.StateStopping {
		return nil
	}
	return o.lifecycle.TransitionTo(lifecycle.StateStopped, "teardown complete")
}
