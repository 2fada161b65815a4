package discord

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/bft-labs/taverna/pkg/bot"
	"github.com/bft-labs/taverna/pkg/command"
	"github.com/bft-labs/taverna/pkg/store"
)

var errNoUser = errors.New("discord: interaction has no user")

func parseSnowflake(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("discord: parse snowflake %q: %w", s, err)
	}
	return id, nil
}

func formatSnowflake(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// invocationFromInteraction builds the invocation for an application
// command interaction.
func invocationFromInteraction(i *discordgo.Interaction) (*command.Invocation, error) {
	data := i.ApplicationCommandData()

	inv := &command.Invocation{
		Command: data.Name,
		Options: make(map[string]string, len(data.Options)),
	}

	if i.ChannelID != "" {
		channelID, err := parseSnowflake(i.ChannelID)
		if err != nil {
			return nil, err
		}
		inv.ChannelID = channelID
	}
	if i.GuildID != "" {
		guildID, err := parseSnowflake(i.GuildID)
		if err != nil {
			return nil, err
		}
		inv.GuildID = &guildID
	}

	user := i.User
	if i.Member != nil {
		user = i.Member.User
		inv.Actor.Administrator = i.Member.Permissions&discordgo.PermissionAdministrator != 0
		for _, raw := range i.Member.Roles {
			roleID, err := parseSnowflake(raw)
			if err != nil {
				return nil, err
			}
			inv.Actor.RoleIDs = append(inv.Actor.RoleIDs, roleID)
		}
	}
	if user == nil {
		return nil, errNoUser
	}
	actorID, err := parseSnowflake(user.ID)
	if err != nil {
		return nil, err
	}
	inv.Actor.ID = actorID
	inv.Actor.Name = user.String()
	inv.Actor.AvatarURL = user.AvatarURL("")

	for _, opt := range data.Options {
		inv.Options[opt.Name] = optionValue(opt)
	}
	return inv, nil
}

// optionValue renders an option value as the string Invocation.Option
// returns. Integers arrive as JSON numbers; channels and roles as ids.
func optionValue(opt *discordgo.ApplicationCommandInteractionDataOption) string {
	switch v := opt.Value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

var optionTypes = map[command.OptionType]discordgo.ApplicationCommandOptionType{
	command.OptionString:  discordgo.ApplicationCommandOptionString,
	command.OptionInteger: discordgo.ApplicationCommandOptionInteger,
	command.OptionChannel: discordgo.ApplicationCommandOptionChannel,
	command.OptionRole:    discordgo.ApplicationCommandOptionRole,
}

func applicationCommand(cmd command.Command) *discordgo.ApplicationCommand {
	out := &discordgo.ApplicationCommand{
		Name:        cmd.Name,
		Description: cmd.Description,
	}
	for _, opt := range cmd.Options {
		o := &discordgo.ApplicationCommandOption{
			Type:        optionTypes[opt.Type],
			Name:        opt.Name,
			Description: opt.Description,
			Required:    opt.Required,
		}
		for _, choice := range opt.Choices {
			o.Choices = append(o.Choices, &discordgo.ApplicationCommandOptionChoice{
				Name:  choice,
				Value: choice,
			})
		}
		out.Options = append(out.Options, o)
	}
	return out
}

func applicationCommands(cmds []command.Command) []*discordgo.ApplicationCommand {
	out := make([]*discordgo.ApplicationCommand, 0, len(cmds))
	for _, cmd := range cmds {
		out = append(out, applicationCommand(cmd))
	}
	return out
}

func auditEmbed(rec command.AuditRecord) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       rec.Title,
		Description: rec.Description,
		Color:       rec.Color,
		Timestamp:   rec.Timestamp.Format(time.RFC3339),
	}
	if rec.Author != "" {
		embed.Author = &discordgo.MessageEmbedAuthor{
			Name:    rec.Author,
			IconURL: rec.AuthorIconURL,
		}
	}
	if rec.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: rec.Footer}
	}
	return embed
}

func activity(a bot.Activity) *discordgo.Activity {
	out := &discordgo.Activity{Name: a.Name}
	switch a.Type {
	case bot.ActivityListening:
		out.Type = discordgo.ActivityTypeListening
	case bot.ActivityWatching:
		out.Type = discordgo.ActivityTypeWatching
	default:
		out.Type = discordgo.ActivityTypeGame
	}
	return out
}

func guildRecord(g *discordgo.Guild) (*store.Guild, error) {
	id, err := parseSnowflake(g.ID)
	if err != nil {
		return nil, err
	}
	rec := &store.Guild{ID: id}
	if g.Name != "" {
		name := g.Name
		rec.Name = &name
	}
	if g.Icon != "" {
		icon := g.Icon
		rec.IconHash = &icon
	}
	if g.OwnerID != "" {
		owner, err := parseSnowflake(g.OwnerID)
		if err != nil {
			return nil, err
		}
		rec.OwnerID = &owner
	}
	return rec, nil
}
