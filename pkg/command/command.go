package command

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Handler runs a command and returns the reply shown to the invoker.
type Handler func(ctx context.Context, inv *Invocation) (string, error)

// OptionType is the kind of value an option accepts.
type OptionType int

const (
	OptionString OptionType = iota
	OptionInteger
	OptionChannel
	OptionRole
)

// Option describes a command argument.
type Option struct {
	Name        string
	Description string
	Type        OptionType
	Required    bool
	Choices     []string
}

// Command is a transport-neutral command definition.
type Command struct {
	Name        string
	Description string
	Options     []Option

	// Privileged commands are checked by the authorization gate.
	Privileged bool

	Handler Handler
}

// Registry holds the commands contributed by extensions.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]Command)}
}

// Add registers cmd. Names must be unique.
func (r *Registry) Add(cmd Command) error {
	if cmd.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidCommand)
	}
	if cmd.Handler == nil {
		return fmt.Errorf("%w: %s has no handler", ErrInvalidCommand, cmd.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.commands[cmd.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateCommand, cmd.Name)
	}
	r.commands[cmd.Name] = cmd
	return nil
}

// Remove unregisters a command by name.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.commands, name)
}

// Get looks a command up by name.
func (r *Registry) Get(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return cmd, ok
}

// All returns every command sorted by name.
func (r *Registry) All() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		out = append(out, cmd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
