package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/bft-labs/taverna/pkg/command"
	"github.com/bft-labs/taverna/pkg/log"
)

var (
	ErrUnknownExtension = errors.New("extension: unknown extension")
	ErrNoEntryPoint     = errors.New("extension: no entry point")
	ErrDuplicate        = errors.New("extension: duplicate extension")
)

// Extension is a feature unit contributing commands to the bot.
type Extension interface {
	// Name returns the unit id, matching its catalog entry.
	Name() string

	// Load registers the unit's commands on host.
	Load(ctx context.Context, host Host) error

	// Unload releases anything Load acquired.
	Unload(ctx context.Context) error
}

// Host is what a loading extension may touch.
type Host interface {
	Logger() log.Logger
	AddCommand(cmd command.Command) error
	RemoveCommand(name string)
}

// LoadError reports why a unit failed to load.
type LoadError struct {
	ID  string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("extension %s: load failed: %v", e.ID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// State is the load state of a unit.
type State int

const (
	StateUnloaded State = iota
	StateLoaded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoaded:
		return "loaded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Unit is the loader's record of one catalogued extension.
type Unit struct {
	ID    string
	State State
	Err   error
}
