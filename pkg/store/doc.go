// Package store owns the bot's datastore connection and its schema.
//
// A Manager wraps a Backend and guarantees at most one live connection per
// process: Connect is a no-op once connected and Close is a no-op when not
// connected, including under concurrent callers. GORMBackend is the
// production backend, supporting SQLite and PostgreSQL through the same
// code path.
//
// Query helpers on Manager (CommandRoles, LogChannel, GrantPermission, ...)
// back the authorization gate and the command audit pipeline.
package store
