// Package extension discovers, loads and tracks the readiness of the bot's
// feature units.
//
// A Catalog lists unit ids in load order. A Registry maps ids to the Go
// values implementing them. The Loader loads every catalogued unit
// sequentially, isolating failures, and marks each success ready on a
// Tracker that health consumers and the orchestrator poll.
package extension
