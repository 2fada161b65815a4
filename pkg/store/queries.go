package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommandRoles returns the role ids authorized for command in guildID.
// Unknown command names have no rules.
func (m *Manager) CommandRoles(ctx context.Context, guildID uint64, command string) ([]uint64, error) {
	db, err := m.DB()
	if err != nil {
		return nil, err
	}

	var roles []uint64
	err = db.WithContext(ctx).
		Model(&CommandPermission{}).
		Where("guild_id = ? AND command = ?", guildID, command).
		Order("role_id").
		Pluck("role_id", &roles).Error
	if err != nil {
		return nil, fmt.Errorf("store: command roles: %w", err)
	}
	return roles, nil
}

// LogChannel returns the audit channel of guildID, or nil when the guild
// is unknown or has none.
func (m *Manager) LogChannel(ctx context.Context, guildID uint64) (*uint64, error) {
	guild, err := m.Guild(ctx, guildID)
	if errors.Is(err, ErrGuildNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return guild.LogChannelID, nil
}

// Guild fetches a guild row.
func (m *Manager) Guild(ctx context.Context, guildID uint64) (*Guild, error) {
	db, err := m.DB()
	if err != nil {
		return nil, err
	}

	var guild Guild
	if err := db.WithContext(ctx).Where("id = ?", guildID).First(&guild).Error; err != nil {
		return nil, convertNotFoundError(err, ErrGuildNotFound)
	}
	return &guild, nil
}

// EnsureGuild inserts guild, refreshing name, icon and owner when it
// already exists. The log channel is left untouched.
func (m *Manager) EnsureGuild(ctx context.Context, guild *Guild) error {
	db, err := m.DB()
	if err != nil {
		return err
	}

	err = db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "icon_hash", "owner_id"}),
	}).Create(guild).Error
	if err != nil {
		return fmt.Errorf("store: ensure guild: %w", err)
	}
	return nil
}

// TouchGuild inserts an empty row for guildID unless one exists.
func (m *Manager) TouchGuild(ctx context.Context, guildID uint64) error {
	db, err := m.DB()
	if err != nil {
		return err
	}

	err = db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&Guild{ID: guildID}).Error
	if err != nil {
		return fmt.Errorf("store: touch guild: %w", err)
	}
	return nil
}

// SetLogChannel sets or clears (nil) the audit channel of guildID.
func (m *Manager) SetLogChannel(ctx context.Context, guildID uint64, channelID *uint64) error {
	db, err := m.DB()
	if err != nil {
		return err
	}

	res := db.WithContext(ctx).
		Model(&Guild{}).
		Where("id = ?", guildID).
		Update("log_channel_id", channelID)
	if res.Error != nil {
		return fmt.Errorf("store: set log channel: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrGuildNotFound
	}
	return nil
}

// GrantPermission authorizes roleID to run command in guildID.
func (m *Manager) GrantPermission(ctx context.Context, guildID uint64, command CommandName, roleID uint64) error {
	if !command.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
	db, err := m.DB()
	if err != nil {
		return err
	}

	perm := &CommandPermission{GuildID: guildID, Command: command, RoleID: roleID}
	if err := db.WithContext(ctx).Create(perm).Error; err != nil {
		if isUniqueConstraintError(err) {
			return ErrDuplicatePermission
		}
		return fmt.Errorf("store: grant permission: %w", err)
	}
	return nil
}

// RevokePermission removes a rule granted by GrantPermission.
func (m *Manager) RevokePermission(ctx context.Context, guildID uint64, command CommandName, roleID uint64) error {
	if !command.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCommand, command)
	}
	db, err := m.DB()
	if err != nil {
		return err
	}

	res := db.WithContext(ctx).
		Where("guild_id = ? AND command = ? AND role_id = ?", guildID, command, roleID).
		Delete(&CommandPermission{})
	if res.Error != nil {
		return fmt.Errorf("store: revoke permission: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrPermissionNotFound
	}
	return nil
}

// Permissions lists every rule of guildID.
func (m *Manager) Permissions(ctx context.Context, guildID uint64) ([]CommandPermission, error) {
	db, err := m.DB()
	if err != nil {
		return nil, err
	}

	var perms []CommandPermission
	err = db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order("command, role_id").
		Find(&perms).Error
	if err != nil {
		return nil, fmt.Errorf("store: list permissions: %w", err)
	}
	return perms, nil
}

// DeleteGuild removes a guild; its permission rules cascade.
func (m *Manager) DeleteGuild(ctx context.Context, guildID uint64) error {
	db, err := m.DB()
	if err != nil {
		return err
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Backends without enforced foreign keys still drop the rules.
		if err := tx.Where("guild_id = ?", guildID).Delete(&CommandPermission{}).Error; err != nil {
			return err
		}
		res := tx.Where("id = ?", guildID).Delete(&Guild{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrGuildNotFound
		}
		return nil
	})
}
