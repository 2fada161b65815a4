// Package log provides the logging abstraction shared by every taverna
// component.
//
// Components never log through a package-level logger. They receive a
// Logger from their constructor, which keeps tests silent (NoopLogger)
// and lets the binary decide the output format.
//
// # Usage
//
// Wrap a zerolog logger:
//
//	logger := log.NewZerologAdapter(log.LevelInfo)
//	store := store.NewManager(backend, logger.With(log.String("component", "store")))
//
// Use the no-op logger in tests:
//
//	logger := log.NewNoopLogger()
//
// # Version
//
// Current version: 1.1.0
// Minimum compatible version: 1.0.0
package log
