package extension

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/taverna/pkg/command"
	"github.com/bft-labs/taverna/pkg/log"
)

type fakeHost struct {
	commands *command.Registry
}

func newFakeHost() *fakeHost { return &fakeHost{commands: command.NewRegistry()} }

func (h *fakeHost) Logger() log.Logger                   { return log.NewNoopLogger() }
func (h *fakeHost) AddCommand(cmd command.Command) error { return h.commands.Add(cmd) }
func (h *fakeHost) RemoveCommand(name string)            { h.commands.Remove(name) }

type fakeExtension struct {
	name      string
	loadErr   error
	panicMsg  string
	unloadErr error
	order     *[]string

	// registerFirst adds the command before failing.
	registerFirst bool
}

func (e *fakeExtension) Name() string { return e.name }

func (e *fakeExtension) Load(_ context.Context, host Host) error {
	if e.registerFirst {
		if err := host.AddCommand(command.Command{
			Name:    e.name + "-cmd",
			Handler: func(context.Context, *command.Invocation) (string, error) { return "", nil },
		}); err != nil {
			return err
		}
	}
	if e.panicMsg != "" {
		panic(e.panicMsg)
	}
	if e.loadErr != nil {
		return e.loadErr
	}
	if e.order != nil {
		*e.order = append(*e.order, "load:"+e.name)
	}
	if e.registerFirst {
		return nil
	}
	return host.AddCommand(command.Command{
		Name:    e.name + "-cmd",
		Handler: func(context.Context, *command.Invocation) (string, error) { return "", nil },
	})
}

func (e *fakeExtension) Unload(context.Context) error {
	if e.order != nil {
		*e.order = append(*e.order, "unload:"+e.name)
	}
	return e.unloadErr
}

func TestLoaderIsolatesFailures(t *testing.T) {
	var order []string
	registry, err := NewRegistry(
		&fakeExtension{name: "economy", order: &order},
		&fakeExtension{name: "broken", loadErr: errors.New("bad config")},
		&fakeExtension{name: "explodes", panicMsg: "nil map"},
		&fakeExtension{name: "moderation", order: &order},
	)
	require.NoError(t, err)

	catalog := NewCatalog("economy", "broken", "ghost", "explodes", "moderation")
	tracker := NewTracker(nil)
	host := newFakeHost()
	loader := NewLoader(catalog, registry, tracker, host, nil)

	assert.False(t, tracker.AllReady())
	loaded := loader.LoadAll(context.Background())
	assert.Equal(t, 2, loaded)
	assert.Equal(t, []string{"load:economy", "load:moderation"}, order)

	units := loader.Units()
	require.Len(t, units, 5)
	assert.Equal(t, StateLoaded, units[0].State)
	assert.Equal(t, StateFailed, units[1].State)
	assert.Equal(t, StateFailed, units[2].State)
	assert.ErrorIs(t, units[2].Err, ErrNoEntryPoint)
	assert.Equal(t, StateFailed, units[3].State)
	var loadErr *LoadError
	require.ErrorAs(t, units[3].Err, &loadErr)
	assert.Equal(t, "explodes", loadErr.ID)
	assert.Contains(t, loadErr.Error(), "nil map")
	assert.Equal(t, StateLoaded, units[4].State)

	assert.Equal(t, map[string]bool{
		"economy": true, "broken": false, "ghost": false, "explodes": false, "moderation": true,
	}, tracker.Snapshot())
	assert.False(t, tracker.AllReady())

	_, ok := host.commands.Get("economy-cmd")
	assert.True(t, ok)
}

func TestLoaderAllLoadReady(t *testing.T) {
	registry, err := NewRegistry(&fakeExtension{name: "economy"}, &fakeExtension{name: "moderation"})
	require.NoError(t, err)

	tracker := NewTracker(nil)
	loader := NewLoader(NewCatalog("economy", "moderation"), registry, tracker, newFakeHost(), nil)
	assert.Equal(t, 2, loader.LoadAll(context.Background()))
	assert.True(t, tracker.AllReady())
}

func TestLoaderCancelledContext(t *testing.T) {
	registry, err := NewRegistry(&fakeExtension{name: "economy"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loader := NewLoader(NewCatalog("economy"), registry, NewTracker(nil), newFakeHost(), nil)
	assert.Equal(t, 0, loader.LoadAll(ctx))
	assert.Equal(t, StateUnloaded, loader.Units()[0].State)
}

func TestLoaderUnloadReverseOrder(t *testing.T) {
	var order []string
	registry, err := NewRegistry(
		&fakeExtension{name: "a", order: &order},
		&fakeExtension{name: "b", order: &order, unloadErr: errors.New("stuck")},
		&fakeExtension{name: "c", order: &order},
	)
	require.NoError(t, err)

	loader := NewLoader(NewCatalog("a", "b", "c"), registry, NewTracker(nil), newFakeHost(), nil)
	loader.LoadAll(context.Background())

	err = loader.UnloadAll(context.Background())
	assert.ErrorContains(t, err, "stuck")
	assert.Equal(t, []string{"load:a", "load:b", "load:c", "unload:c", "unload:b", "unload:a"}, order)
	for _, u := range loader.Units() {
		assert.Equal(t, StateUnloaded, u.State)
	}
	host := loader.host.(*fakeHost)
	assert.Empty(t, host.commands.All())
}

func TestLoaderDropsCommandsOfFailedUnits(t *testing.T) {
	registry, err := NewRegistry(
		&fakeExtension{name: "economy"},
		&fakeExtension{name: "ban", registerFirst: true, loadErr: errors.New("missing table")},
		&fakeExtension{name: "kick", registerFirst: true, panicMsg: "nil map"},
	)
	require.NoError(t, err)

	host := newFakeHost()
	loader := NewLoader(NewCatalog("economy", "ban", "kick"), registry, NewTracker(nil), host, nil)
	assert.Equal(t, 1, loader.LoadAll(context.Background()))

	names := make([]string, 0)
	for _, cmd := range host.commands.All() {
		names = append(names, cmd.Name)
	}
	assert.Equal(t, []string{"economy-cmd"}, names)
}

func TestCatalogDedup(t *testing.T) {
	c := NewCatalog("economy", " ", "moderation", "economy", " music ")
	assert.Equal(t, []string{"economy", "moderation", "music"}, c.IDs())
	assert.False(t, c.Empty())
	assert.True(t, NewCatalog().Empty())
}

func TestRegistryDuplicate(t *testing.T) {
	_, err := NewRegistry(&fakeExtension{name: "x"}, &fakeExtension{name: "x"})
	assert.ErrorIs(t, err, ErrDuplicate)
}
