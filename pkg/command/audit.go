package command

import (
	"context"
	"strconv"
	"time"
)

// DefaultColor is the embed color used when a handler sets none.
const DefaultColor = 0x000000

// Common severities handlers pass to SetAuditColor.
const (
	ColorInfo    = 0x3498DB
	ColorSuccess = 0x2ECC71
	ColorWarning = 0xE67E22
	ColorDanger  = 0xE74C3C
)

// AuditRecord is the structured message published to a guild's audit channel.
type AuditRecord struct {
	Title         string
	Description   string
	Color         int
	Timestamp     time.Time
	Author        string
	AuthorIconURL string
	Footer        string
}

// NewAuditRecord builds the record for an invocation.
func NewAuditRecord(inv *Invocation, message string, color int, now time.Time) AuditRecord {
	return AuditRecord{
		Title:         inv.Command,
		Description:   message,
		Color:         color,
		Timestamp:     now.UTC(),
		Author:        inv.Actor.Name,
		AuthorIconURL: inv.Actor.AvatarURL,
		Footer:        "ID: " + strconv.FormatUint(inv.Actor.ID, 10),
	}
}

// AuditSink delivers audit records to a channel.
type AuditSink interface {
	SendAudit(ctx context.Context, channelID uint64, record AuditRecord) error
}

// GuildConfigSource resolves the audit channel configured for a guild.
// A nil id with a nil error means the guild has none.
type GuildConfigSource interface {
	LogChannel(ctx context.Context, guildID uint64) (*uint64, error)
}
