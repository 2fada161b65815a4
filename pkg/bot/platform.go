package bot

import "context"

// ActivityType is the kind of presence shown by the platform.
type ActivityType int

const (
	ActivityPlaying ActivityType = iota
	ActivityListening
	ActivityWatching
)

// Activity is the presence announced after boot.
type Activity struct {
	Type ActivityType
	Name string
}

// Platform is the chat transport the bot runs on.
type Platform interface {
	// Open connects to the platform. Connect and reconnect events are
	// reported to the handler given to the adapter.
	Open(ctx context.Context) error

	// Close disconnects.
	Close(ctx context.Context) error

	ChangePresence(ctx context.Context, activity Activity) error

	// SyncCommands publishes the registered commands to guildIDs.
	SyncCommands(ctx context.Context, guildIDs []uint64) error

	// GuildIDs returns the guilds the bot has joined.
	GuildIDs() []uint64

	// MemberCount returns the number of users visible to the bot.
	MemberCount() int
}
