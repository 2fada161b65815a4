package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/bft-labs/taverna/pkg/command"
	"github.com/bft-labs/taverna/pkg/log"
	"github.com/bft-labs/taverna/pkg/store"
)

// Replies.
const (
	ReplyPong               = "🏓 Pong!"
	ReplyLogChannelCleared  = "Canale di log rimosso."
	ReplyPermissionExists   = "Il ruolo ha già accesso a questo comando."
	ReplyPermissionNotFound = "Il ruolo non ha accesso a questo comando."
)

func (p *Plugin) ping(context.Context, *command.Invocation) (string, error) {
	return ReplyPong, nil
}

func (p *Plugin) logChannel(ctx context.Context, inv *command.Invocation) (string, error) {
	guildID := *inv.GuildID
	if err := p.store.TouchGuild(ctx, guildID); err != nil {
		return "", err
	}

	if inv.Option("channel") == "" {
		if err := p.store.SetLogChannel(ctx, guildID, nil); err != nil {
			return "", err
		}
		inv.SetAudit(ReplyLogChannelCleared)
		inv.SetAuditColor(command.ColorWarning)
		return ReplyLogChannelCleared, nil
	}

	channelID, err := inv.OptionID("channel")
	if err != nil {
		return "", err
	}
	if err := p.store.SetLogChannel(ctx, guildID, &channelID); err != nil {
		return "", err
	}

	p.logger.Info("log channel set",
		log.Uint64("guild_id", guildID),
		log.Uint64("channel_id", channelID))
	msg := fmt.Sprintf("Canale di log impostato su <#%d>.", channelID)
	inv.SetAudit(msg)
	inv.SetAuditColor(command.ColorInfo)
	return msg, nil
}

// rule reads the command and role options shared by grant and revoke.
func rule(inv *command.Invocation) (store.CommandName, uint64, error) {
	name, err := store.ParseCommandName(inv.Option("command"))
	if err != nil {
		return "", 0, &command.OptionError{Name: "command", Err: err}
	}
	roleID, err := inv.OptionID("role")
	if err != nil {
		return "", 0, err
	}
	return name, roleID, nil
}

func (p *Plugin) grant(ctx context.Context, inv *command.Invocation) (string, error) {
	name, roleID, err := rule(inv)
	if err != nil {
		return "", err
	}
	guildID := *inv.GuildID
	if err := p.store.TouchGuild(ctx, guildID); err != nil {
		return "", err
	}

	err = p.store.GrantPermission(ctx, guildID, name, roleID)
	if errors.Is(err, store.ErrDuplicatePermission) {
		return ReplyPermissionExists, nil
	}
	if err != nil {
		return "", err
	}

	msg := fmt.Sprintf("Il ruolo <@&%d> può ora usare /%s.", roleID, name)
	inv.SetAudit(msg)
	inv.SetAuditColor(command.ColorSuccess)
	return msg, nil
}

func (p *Plugin) revoke(ctx context.Context, inv *command.Invocation) (string, error) {
	name, roleID, err := rule(inv)
	if err != nil {
		return "", err
	}

	err = p.store.RevokePermission(ctx, *inv.GuildID, name, roleID)
	if errors.Is(err, store.ErrPermissionNotFound) {
		return ReplyPermissionNotFound, nil
	}
	if err != nil {
		return "", err
	}

	msg := fmt.Sprintf("Il ruolo <@&%d> non può più usare /%s.", roleID, name)
	inv.SetAudit(msg)
	inv.SetAuditColor(command.ColorDanger)
	return msg, nil
}
