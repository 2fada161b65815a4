package extension

import (
	"github.com/bft-labs/taverna/pkg/command"
	"github.com/bft-labs/taverna/pkg/log"
)

// RegistryHost is a Host adding commands to a command.Registry.
type RegistryHost struct {
	commands *command.Registry
	logger   log.Logger
}

// NewRegistryHost creates a host over commands.
func NewRegistryHost(commands *command.Registry, logger log.Logger) *RegistryHost {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &RegistryHost{commands: commands, logger: logger}
}

// Logger returns the logger extensions should use.
func (h *RegistryHost) Logger() log.Logger { return h.logger }

// AddCommand registers cmd.
func (h *RegistryHost) AddCommand(cmd command.Command) error {
	if err := h.commands.Add(cmd); err != nil {
		return err
	}
	h.logger.Debug("command registered",
		log.String("command", cmd.Name),
		log.Bool("privileged", cmd.Privileged))
	return nil
}

// RemoveCommand unregisters the command called name.
func (h *RegistryHost) RemoveCommand(name string) {
	h.commands.Remove(name)
	h.logger.Debug("command removed", log.String("command", name))
}

// unitHost scopes a Host to one extension and remembers what it added.
type unitHost struct {
	Host
	added []string
}

func (h *unitHost) AddCommand(cmd command.Command) error {
	if err := h.Host.AddCommand(cmd); err != nil {
		return err
	}
	h.added = append(h.added, cmd.Name)
	return nil
}

// removeAll drops every command added through h, newest first.
func (h *unitHost) removeAll() {
	for i := len(h.added) - 1; i >= 0; i-- {
		h.Host.RemoveCommand(h.added[i])
	}
	h.added = nil
}
