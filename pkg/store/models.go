package store

import (
	"fmt"
	"time"
)

// CommandName identifies a command whose access is governed by
// CommandPermission rows.
type CommandName string

const (
	CommandLogChannel       CommandName = "logchannel"
	CommandPermissionGrant  CommandName = "permission-grant"
	CommandPermissionRevoke CommandName = "permission-revoke"
)

// CommandNames returns every governed command.
func CommandNames() []CommandName {
	return []CommandName{
		CommandLogChannel,
		CommandPermissionGrant,
		CommandPermissionRevoke,
	}
}

// Valid reports whether c is a known command.
func (c CommandName) Valid() bool {
	for _, known := range CommandNames() {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCommandName validates s.
func ParseCommandName(s string) (CommandName, error) {
	c := CommandName(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, s)
	}
	return c, nil
}

// Guild is the per-guild configuration row.
type Guild struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Name         *string   `gorm:"size:255" json:"name,omitempty"`
	IconHash     *string   `gorm:"size:255" json:"icon_hash,omitempty"`
	OwnerID      *uint64   `json:"owner_id,omitempty"`
	LogChannelID *uint64   `json:"log_channel_id,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName returns the table name for Guild.
func (Guild) TableName() string { return "guild" }

// User is a platform user known to the bot.
type User struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement:false" json:"id"`
	Username      *string   `gorm:"size:255" json:"username,omitempty"`
	Discriminator *string   `gorm:"size:10" json:"discriminator,omitempty"`
	AvatarHash    *string   `gorm:"size:255" json:"avatar_hash,omitempty"`
	Bot           bool      `gorm:"column:is_bot;default:false" json:"is_bot"`
	Coins         int       `gorm:"column:tav_coins;default:0" json:"tav_coins"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName returns the table name for User.
func (User) TableName() string { return "user" }

// CommandPermission authorizes a role to run a command in a guild.
type CommandPermission struct {
	ID      uint        `gorm:"primaryKey" json:"id"`
	GuildID uint64      `gorm:"not null;uniqueIndex:idx_command_permission_rule;index:idx_command_permission_lookup" json:"guild_id"`
	Command CommandName `gorm:"size:255;not null;uniqueIndex:idx_command_permission_rule;index:idx_command_permission_lookup" json:"command"`
	RoleID  uint64      `gorm:"not null;uniqueIndex:idx_command_permission_rule" json:"role_id"`

	Guild *Guild `gorm:"foreignKey:GuildID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName returns the table name for CommandPermission.
func (CommandPermission) TableName() string { return "command_permission" }

// AllModels returns all GORM models for auto-migration.
func AllModels() []any {
	return []any{
		&Guild{},
		&User{},
		&CommandPermission{},
	}
}
