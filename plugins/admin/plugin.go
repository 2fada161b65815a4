// Package admin is the built-in administrative extension. It lets guild
// administrators pick the audit channel and manage which roles may run
// the privileged commands.
package admin

import (
	"context"

	"github.com/bft-labs/taverna/pkg/command"
	"github.com/bft-labs/taverna/pkg/extension"
	"github.com/bft-labs/taverna/pkg/log"
	"github.com/bft-labs/taverna/pkg/store"
)

// ID is the catalog id of the extension.
const ID = "admin"

// Store is the persistence the extension needs.
type Store interface {
	TouchGuild(ctx context.Context, guildID uint64) error
	SetLogChannel(ctx context.Context, guildID uint64, channelID *uint64) error
	GrantPermission(ctx context.Context, guildID uint64, cmd store.CommandName, roleID uint64) error
	RevokePermission(ctx context.Context, guildID uint64, cmd store.CommandName, roleID uint64) error
}

// Plugin implements extension.Extension.
type Plugin struct {
	store  Store
	logger log.Logger
}

var _ extension.Extension = (*Plugin)(nil)

// New creates the extension over st.
func New(st Store) *Plugin {
	return &Plugin{store: st, logger: log.NewNoopLogger()}
}

// Name returns ID.
func (p *Plugin) Name() string { return ID }

// Load registers the administrative commands.
func (p *Plugin) Load(_ context.Context, host extension.Host) error {
	p.logger = host.Logger().With(log.String("extension", ID))
	for _, cmd := range p.commands() {
		if err := host.AddCommand(cmd); err != nil {
			return err
		}
	}
	p.logger.Debug("admin commands registered")
	return nil
}

// Unload is a no-op; the extension holds no resources.
func (p *Plugin) Unload(context.Context) error { return nil }

func (p *Plugin) commands() []command.Command {
	choices := make([]string, 0, len(store.CommandNames()))
	for _, name := range store.CommandNames() {
		choices = append(choices, string(name))
	}
	ruleOptions := []command.Option{
		{Name: "command", Description: "Comando da gestire", Type: command.OptionString, Required: true, Choices: choices},
		{Name: "role", Description: "Ruolo", Type: command.OptionRole, Required: true},
	}

	return []command.Command{
		{
			Name:        "ping",
			Description: "Controlla che il bot risponda",
			Handler:     p.ping,
		},
		{
			Name:        string(store.CommandLogChannel),
			Description: "Imposta o rimuove il canale di log",
			Options: []command.Option{
				{Name: "channel", Description: "Canale di log; vuoto per rimuoverlo", Type: command.OptionChannel},
			},
			Privileged: true,
			Handler:    p.logChannel,
		},
		{
			Name:        string(store.CommandPermissionGrant),
			Description: "Autorizza un ruolo a usare un comando",
			Options:     ruleOptions,
			Privileged:  true,
			Handler:     p.grant,
		},
		{
			Name:        string(store.CommandPermissionRevoke),
			Description: "Revoca a un ruolo l'uso di un comando",
			Options:     ruleOptions,
			Privileged:  true,
			Handler:     p.revoke,
		},
	}
}
