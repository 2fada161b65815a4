package discord

import (
	"context"

	"github.com/bft-labs/taverna/pkg/command"
)

// DefaultReply is sent when a handler succeeds without a reply.
const DefaultReply = "✅"

// Dispatcher routes invocations to registered commands through the pipeline.
type Dispatcher struct {
	commands *command.Registry
	pipeline *command.Pipeline
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(commands *command.Registry, pipeline *command.Pipeline) *Dispatcher {
	return &Dispatcher{commands: commands, pipeline: pipeline}
}

// Dispatch runs inv and returns the reply for the invoker. Failures and
// denials are private to the invoker.
func (d *Dispatcher) Dispatch(ctx context.Context, inv *command.Invocation) (reply string, private bool) {
	cmd, ok := d.commands.Get(inv.Command)
	if !ok {
		return command.MessageUnknownCommand, true
	}

	reply, err := d.pipeline.Invoke(ctx, cmd, inv)
	if err != nil {
		return command.UserMessage(err), true
	}
	if reply == "" {
		reply = DefaultReply
	}
	return reply, false
}
