package command

import (
	"strconv"
	"strings"
)

// Actor is the member invoking a command.
type Actor struct {
	ID            uint64
	Name          string
	AvatarURL     string
	Administrator bool
	RoleIDs       []uint64
}

// Invocation carries the state of one command execution from the
// authorization check to the audit post-hook. It is never persisted.
type Invocation struct {
	Command   string
	Actor     Actor
	GuildID   *uint64
	ChannelID uint64
	Options   map[string]string

	// LogChannelID is set by the pipeline's pre-hook when the guild has an
	// audit channel configured.
	LogChannelID *uint64

	auditMessage string
	auditSet     bool
	auditColor   *int
}

// InGuild reports whether the invocation happened inside a guild.
func (i *Invocation) InGuild() bool {
	return i.GuildID != nil
}

// Option returns the raw value of a named option, or "" when absent.
func (i *Invocation) Option(name string) string {
	if i.Options == nil {
		return ""
	}
	return strings.TrimSpace(i.Options[name])
}

// OptionID parses a named option as a snowflake id.
func (i *Invocation) OptionID(name string) (uint64, error) {
	raw := i.Option(name)
	if raw == "" {
		return 0, &OptionError{Name: name, Err: ErrMissingOption}
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, &OptionError{Name: name, Err: err}
	}
	return id, nil
}

// SetAudit attaches the message the post-hook should publish. An empty
// message still produces a record.
func (i *Invocation) SetAudit(message string) {
	i.auditMessage = message
	i.auditSet = true
}

// SetAuditColor overrides DefaultColor for the published record.
func (i *Invocation) SetAuditColor(color int) {
	i.auditColor = &color
}

// Audit returns the attached audit message and color.
func (i *Invocation) Audit() (message string, color int, ok bool) {
	if !i.auditSet {
		return "", 0, false
	}
	color = DefaultColor
	if i.auditColor != nil {
		color = *i.auditColor
	}
	return i.auditMessage, color, true
}
