package lifecycle

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bft-labs/taverna/pkg/log"
)

// Common lifecycle errors.
var (
	ErrInvalidTransition = errors.New("lifecycle: invalid transition")
	ErrShutdownTimeout   = errors.New("lifecycle: shutdown timeout")
)

// ShutdownTimeout is the default maximum time to wait for graceful shutdown.
const ShutdownTimeout = 30 * time.Second

// transitions lists the states reachable from each state, Stopping excluded.
var transitions = map[State][]State{
	StateBooting:           {StateConnectingStore, StateFatalInit},
	StateConnectingStore:   {StateLoadingExtensions, StateFatalInit},
	StateLoadingExtensions: {StateAwaitingReadiness, StateReady, StateFatalInit},
	StateAwaitingReadiness: {StateReady},
	StateReady:             {StateServing},
	StateStopping:          {StateStopped},
}

// DefaultManager implements Manager.
type DefaultManager struct {
	mu           sync.RWMutex
	state        State
	wg           sync.WaitGroup
	logger       log.Logger
	eventEmitter EventEmitter
	changed      chan struct{}
}

// NewManager creates a new lifecycle manager in StateBooting.
func NewManager(logger log.Logger, emitter EventEmitter) *DefaultManager {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &DefaultManager{
		state:        StateBooting,
		logger:       logger,
		eventEmitter: emitter,
		changed:      make(chan struct{}),
	}
}

// State returns the current lifecycle state.
func (l *DefaultManager) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to State) bool {
	if to == StateStopping {
		return !from.Terminal() && from != StateStopping
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionTo attempts to transition to a new state.
// Returns an error wrapping ErrInvalidTransition if the transition is not valid.
func (l *DefaultManager) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state
	if !CanTransition(oldState, newState) {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, oldState, newState)
	}
	l.state = newState
	changed := l.changed
	l.changed = make(chan struct{})
	l.mu.Unlock()

	close(changed)

	// Emit event outside of lock
	if l.eventEmitter != nil {
		l.eventEmitter.OnStateChange(oldState, newState, reason)
	}

	l.logger.Info("state transition",
		log.String("from", oldState.String()),
		log.String("to", newState.String()),
		log.String("reason", reason),
	)

	return nil
}

// Changed returns a channel closed on the next state transition.
func (l *DefaultManager) Changed() <-chan struct{} {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.changed
}

// AddWorker increments the worker count.
func (l *DefaultManager) AddWorker() {
	l.wg.Add(1)
}

// WorkerDone decrements the worker count.
func (l *DefaultManager) WorkerDone() {
	l.wg.Done()
}

// WaitWithTimeout waits for all workers to finish with a timeout.
// Returns ErrShutdownTimeout if the timeout expires.
func (l *DefaultManager) WaitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		l.logger.Warn("shutdown timeout, forcing exit",
			log.Duration("timeout", timeout),
		)
		return ErrShutdownTimeout
	}
}

var _ Manager = (*DefaultManager)(nil)
