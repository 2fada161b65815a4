package lifecycle

import "time"

// State represents the lifecycle state of the bot process.
type State int

const (
	StateBooting State = iota
	StateConnectingStore
	StateLoadingExtensions
	StateAwaitingReadiness
	StateReady
	StateServing
	StateFatalInit
	StateStopping
	StateStopped
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateBooting:
		return "Booting"
	case StateConnectingStore:
		return "ConnectingStore"
	case StateLoadingExtensions:
		return "LoadingExtensions"
	case StateAwaitingReadiness:
		return "AwaitingReadiness"
	case StateReady:
		return "Ready"
	case StateServing:
		return "Serving"
	case StateFatalInit:
		return "FatalInit"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateFatalInit || s == StateStopped
}

// EventEmitter is called when lifecycle state changes.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Manager manages the lifecycle state machine.
type Manager interface {
	// State returns the current lifecycle state.
	State() State

	// TransitionTo attempts to transition to a new state.
	// Returns an error if the transition is not valid.
	TransitionTo(newState State, reason string) error

	// WaitWithTimeout waits for all workers to finish with a timeout.
	// Returns ErrShutdownTimeout if the timeout expires.
	WaitWithTimeout(timeout time.Duration) error

	// AddWorker increments the worker count.
	AddWorker()

	// WorkerDone decrements the worker count.
	WorkerDone()
}
