// Package lifecycle provides the boot and shutdown state machine of the bot.
//
// The manager validates transitions, notifies an optional EventEmitter and
// tracks background workers so shutdown can wait for them.
//
// # State Machine
//
// Valid state transitions:
//   - Booting -> ConnectingStore, FatalInit
//   - ConnectingStore -> LoadingExtensions, FatalInit
//   - LoadingExtensions -> AwaitingReadiness, Ready
//   - AwaitingReadiness -> Ready
//   - Ready -> Serving
//   - any non-terminal state -> Stopping
//   - Stopping -> Stopped
//
// FatalInit and Stopped are terminal.
//
// # Usage
//
//	manager := lifecycle.NewManager(logger, nil)
//	if err := manager.TransitionTo(lifecycle.StateConnectingStore, "boot"); err != nil {
//	    return err
//	}
//
// # Version
//
// Current version: 2.0.0
// Minimum compatible version: 2.0.0
package lifecycle
