// Package discord adapts a discordgo session to the bot runtime: it is the
// bot.Platform, the command.AuditSink and the source of invocations.
package discord

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/bft-labs/taverna/pkg/bot"
	"github.com/bft-labs/taverna/pkg/command"
	"github.com/bft-labs/taverna/pkg/log"
	"github.com/bft-labs/taverna/pkg/store"
)

// ErrNotConnected is returned by calls needing gateway state before Open.
var ErrNotConnected = errors.New("discord: session not connected")

var (
	_ bot.Platform      = (*Session)(nil)
	_ command.AuditSink = (*Session)(nil)
)

// Session wraps a discordgo session.
type Session struct {
	session    *discordgo.Session
	commands   *command.Registry
	dispatcher *Dispatcher
	logger     log.Logger

	mu          sync.Mutex
	ctx         context.Context
	onConnected func(ctx context.Context) error
	onGuild     func(ctx context.Context, guild *store.Guild) error
	onMembers   func()
	removers    []func()
}

// New creates a session for the bot token. Nothing connects until Open;
// call SetDispatcher before that to serve commands.
func New(token string, commands *command.Registry, logger log.Logger) (*Session, error) {
	if logger == nil {
		logger = log.NewNoopLogger()
	}

	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers

	return &Session{
		session:  dg,
		commands: commands,
		logger:   logger,
		ctx:      context.Background(),
	}, nil
}

// SetDispatcher sets where command interactions are routed.
func (s *Session) SetDispatcher(d *Dispatcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatcher = d
}

// OnConnected sets the callback run on every gateway ready event,
// including reconnects.
func (s *Session) OnConnected(fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onConnected = fn
}

// OnGuildAvailable sets the callback run for every guild the gateway
// reports, on startup and on join.
func (s *Session) OnGuildAvailable(fn func(ctx context.Context, guild *store.Guild) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onGuild = fn
}

// OnMembersLoaded sets the callback run when the member list changes:
// a guild finished streaming its members, or a member joined or left.
func (s *Session) OnMembersLoaded(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onMembers = fn
}

// Open registers the event handlers and connects to the gateway.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = context.WithoutCancel(ctx)
	s.removers = append(s.removers,
		s.session.AddHandler(s.handleReady),
		s.session.AddHandler(s.handleInteraction),
		s.session.AddHandler(s.handleGuildCreate),
		s.session.AddHandler(s.handleMembersChunk),
		s.session.AddHandler(s.handleMemberAdd),
		s.session.AddHandler(s.handleMemberRemove),
	)
	s.mu.Unlock()

	if err := s.session.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	s.logger.Info("discord gateway connected")
	return nil
}

// Close removes the handlers and disconnects.
func (s *Session) Close(context.Context) error {
	s.mu.Lock()
	for _, remove := range s.removers {
		remove()
	}
	s.removers = nil
	s.mu.Unlock()

	if err := s.session.Close(); err != nil {
		return fmt.Errorf("discord: close gateway: %w", err)
	}
	s.logger.Info("discord gateway closed")
	return nil
}

// ChangePresence updates the bot's activity.
func (s *Session) ChangePresence(ctx context.Context, a bot.Activity) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.session.UpdateStatusComplex(discordgo.UpdateStatusData{
		Activities: []*discordgo.Activity{activity(a)},
		Status:     string(discordgo.StatusOnline),
	})
}

// SyncCommands overwrites the guild commands of every guild in guildIDs
// with the registered commands.
func (s *Session) SyncCommands(ctx context.Context, guildIDs []uint64) error {
	appID, err := s.applicationID()
	if err != nil {
		return err
	}

	cmds := applicationCommands(s.commands.All())
	var errs []error
	for _, guildID := range guildIDs {
		_, err := s.session.ApplicationCommandBulkOverwrite(appID, formatSnowflake(guildID), cmds,
			discordgo.WithContext(ctx))
		if err != nil {
			errs = append(errs, fmt.Errorf("guild %d: %w", guildID, err))
			continue
		}
		s.logger.Debug("commands synced",
			log.Uint64("guild_id", guildID),
			log.Int("commands", len(cmds)))
	}
	return errors.Join(errs...)
}

// GuildIDs returns the guilds in the gateway state.
func (s *Session) GuildIDs() []uint64 {
	state := s.session.State
	state.RLock()
	defer state.RUnlock()

	ids := make([]uint64, 0, len(state.Guilds))
	for _, g := range state.Guilds {
		id, err := parseSnowflake(g.ID)
		if err != nil {
			s.logger.Warn("skipping guild with malformed id", log.String("guild_id", g.ID))
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// MemberCount returns the number of distinct users across the cached
// members of every joined guild. A user in several guilds counts once.
func (s *Session) MemberCount() int {
	state := s.session.State
	state.RLock()
	defer state.RUnlock()

	seen := make(map[string]struct{})
	for _, g := range state.Guilds {
		for _, m := range g.Members {
			if m == nil || m.User == nil {
				continue
			}
			seen[m.User.ID] = struct{}{}
		}
	}
	return len(seen)
}

// SendAudit posts rec as an embed to channelID.
func (s *Session) SendAudit(ctx context.Context, channelID uint64, rec command.AuditRecord) error {
	_, err := s.session.ChannelMessageSendEmbed(formatSnowflake(channelID), auditEmbed(rec),
		discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord: send audit: %w", err)
	}
	return nil
}

func (s *Session) applicationID() (string, error) {
	state := s.session.State
	state.RLock()
	defer state.RUnlock()
	if state.User == nil {
		return "", ErrNotConnected
	}
	return state.User.ID, nil
}

func (s *Session) baseContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

func (s *Session) handleReady(_ *discordgo.Session, r *discordgo.Ready) {
	s.logger.Info("discord ready",
		log.String("session_id", r.SessionID),
		log.Int("guilds", len(r.Guilds)))

	s.mu.Lock()
	fn := s.onConnected
	s.mu.Unlock()
	if fn == nil {
		return
	}
	if err := fn(s.baseContext()); err != nil {
		s.logger.Warn("connected callback failed", log.Err(err))
	}
}

func (s *Session) handleGuildCreate(_ *discordgo.Session, gc *discordgo.GuildCreate) {
	if gc.Guild == nil {
		return
	}

	// Large guilds arrive with a partial member list.
	if len(gc.Members) < gc.MemberCount {
		if err := s.session.RequestGuildMembers(gc.ID, "", 0, "", false); err != nil {
			s.logger.Warn("member request failed", log.String("guild_id", gc.ID), log.Err(err))
		}
	}

	s.mu.Lock()
	fn := s.onGuild
	s.mu.Unlock()
	if fn == nil {
		return
	}

	guild, err := guildRecord(gc.Guild)
	if err != nil {
		s.logger.Warn("skipping guild", log.Err(err))
		return
	}
	if err := fn(s.baseContext(), guild); err != nil {
		s.logger.Warn("guild callback failed", log.Uint64("guild_id", guild.ID), log.Err(err))
	}
}

func (s *Session) handleMembersChunk(_ *discordgo.Session, c *discordgo.GuildMembersChunk) {
	if c.ChunkIndex != c.ChunkCount-1 {
		return
	}
	s.logger.Debug("guild members loaded", log.String("guild_id", c.GuildID))
	s.membersChanged()
}

func (s *Session) handleMemberAdd(_ *discordgo.Session, _ *discordgo.GuildMemberAdd) {
	s.membersChanged()
}

func (s *Session) handleMemberRemove(_ *discordgo.Session, _ *discordgo.GuildMemberRemove) {
	s.membersChanged()
}

func (s *Session) membersChanged() {
	s.mu.Lock()
	fn := s.onMembers
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (s *Session) handleInteraction(_ *discordgo.Session, ic *discordgo.InteractionCreate) {
	if ic.Type != discordgo.InteractionApplicationCommand {
		return
	}

	inv, err := invocationFromInteraction(ic.Interaction)
	if err != nil {
		s.logger.Warn("dropping malformed interaction", log.Err(err))
		return
	}

	s.mu.Lock()
	dispatcher := s.dispatcher
	ctx := s.ctx
	s.mu.Unlock()
	if dispatcher == nil {
		s.logger.Warn("no dispatcher, ignoring command", log.String("command", inv.Command))
		return
	}
	reply, private := dispatcher.Dispatch(ctx, inv)

	resp := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: reply},
	}
	if private {
		resp.Data.Flags = discordgo.MessageFlagsEphemeral
	}
	if err := s.session.InteractionRespond(ic.Interaction, resp, discordgo.WithContext(ctx)); err != nil {
		s.logger.Error("interaction response failed",
			log.String("command", inv.Command),
			log.Err(err))
	}
}
