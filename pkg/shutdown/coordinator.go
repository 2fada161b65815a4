// Package shutdown runs the process teardown exactly once, whether it is
// triggered by a termination signal or by a normal exit path.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bft-labs/taverna/pkg/log"
)

// DefaultTimeout bounds the whole hook run.
const DefaultTimeout = 30 * time.Second

// Hook releases one resource.
type Hook func(ctx context.Context) error

type namedHook struct {
	name string
	fn   Hook
}

// Coordinator collects teardown hooks and runs them once.
type Coordinator struct {
	logger  log.Logger
	timeout time.Duration
	signals []os.Signal

	mu        sync.Mutex
	hooks     []namedHook
	listeners []func(reason string)
	reason    string
	started   bool

	once sync.Once
	done chan struct{}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithSignals overrides the signals Listen subscribes to.
func WithSignals(sigs ...os.Signal) Option {
	return func(c *Coordinator) { c.signals = sigs }
}

// New creates a coordinator.
func New(logger log.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	c := &Coordinator{
		logger:  logger,
		timeout: DefaultTimeout,
		signals: []os.Signal{os.Interrupt, syscall.SIGTERM},
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Register adds a hook. Hooks run in reverse registration order, so
// resources acquired first are released last. Once shutdown has started
// the hook is rejected and Register returns false; callers must then not
// acquire the resource the hook would release.
func (c *Coordinator) Register(name string, hook Hook) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		c.logger.Warn("shutdown hook registered after shutdown", log.String("hook", name))
		return false
	}
	c.hooks = append(c.hooks, namedHook{name: name, fn: hook})
	return true
}

// OnStart adds a listener called with the reason right before the hooks
// run. It returns false, and the listener is dropped, once shutdown has
// started.
func (c *Coordinator) OnStart(fn func(reason string)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return false
	}
	c.listeners = append(c.listeners, fn)
	return true
}

// Listen triggers Shutdown on the first termination signal. It returns
// when ctx is cancelled or shutdown completes.
func (c *Coordinator) Listen(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, c.signals...)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		c.logger.Info("received signal", log.String("signal", sig.String()))
		go c.Shutdown("signal " + sig.String())
		<-c.done
	case <-ctx.Done():
	case <-c.done:
	}
}

// Shutdown runs every hook once and blocks until they finish or the
// timeout elapses. Concurrent callers all return after the single run.
func (c *Coordinator) Shutdown(reason string) {
	c.once.Do(func() {
		c.run(reason)
	})
	<-c.done
}

// Done is closed once the hooks have run.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// Reason returns what triggered the shutdown, or "" while running normally.
func (c *Coordinator) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason
}

func (c *Coordinator) run(reason string) {
	c.mu.Lock()
	c.reason = reason
	c.started = true
	hooks := make([]namedHook, len(c.hooks))
	copy(hooks, c.hooks)
	listeners := append([]func(string){}, c.listeners...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(reason)
	}

	c.logger.Info("shutting down", log.String("reason", reason), log.Int("hooks", len(hooks)))

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for i := len(hooks) - 1; i >= 0; i-- {
			c.runHook(ctx, hooks[i])
		}
	}()

	select {
	case <-finished:
		c.logger.Info("shutdown complete")
	case <-ctx.Done():
		c.logger.Error("shutdown timed out", log.Duration("timeout", c.timeout))
	}

	c.mu.Lock()
	close(c.done)
	c.mu.Unlock()
}

func (c *Coordinator) runHook(ctx context.Context, h namedHook) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("shutdown hook panicked", log.String("hook", h.name), log.Any("panic", r))
		}
	}()

	start := time.Now()
	if err := h.fn(ctx); err != nil {
		c.logger.Warn("shutdown hook failed",
			log.String("hook", h.name),
			log.Err(err))
		return
	}
	c.logger.Debug("shutdown hook done",
		log.String("hook", h.name),
		log.Duration("took", time.Since(start)))
}
