// Package bot drives the bot process from launch to serving.
//
// The Orchestrator checks the launch credential, connects the datastore,
// loads every extension, connects the chat platform, waits until every
// extension reported ready, starts the resource monitor and finally
// announces the bot (presence and command sync). Reconnects of the
// platform only repeat the announcement.
//
// Teardown is delegated to a shutdown.Coordinator: each resource acquired
// during boot registers its release there, so a termination signal at any
// point releases exactly what was acquired.
package bot
