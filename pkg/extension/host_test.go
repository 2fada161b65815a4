package extension

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/taverna/pkg/command"
)

func TestRegistryHostAddCommand(t *testing.T) {
	commands := command.NewRegistry()
	host := NewRegistryHost(commands, nil)
	require.NotNil(t, host.Logger())

	handler := func(context.Context, *command.Invocation) (string, error) { return "ok", nil }
	require.NoError(t, host.AddCommand(command.Command{Name: "ping", Handler: handler}))

	_, ok := commands.Get("ping")
	assert.True(t, ok)

	err := host.AddCommand(command.Command{Name: "ping", Handler: handler})
	assert.ErrorIs(t, err, command.ErrDuplicateCommand)

	host.RemoveCommand("ping")
	_, ok = commands.Get("ping")
	assert.False(t, ok)
}
