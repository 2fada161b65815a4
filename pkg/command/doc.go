// Package command defines transport-neutral bot commands and the pipeline
// every invocation runs through.
//
// A single invocation flows as:
//
//	authorization (privileged commands only)
//	  -> pre-hook: attach the guild's audit channel to the Invocation
//	  -> handler
//	  -> post-hook: emit the audit record the handler attached, if any
//
// The post-hook is deferred, so it runs after handler errors and panics.
package command
