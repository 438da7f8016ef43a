package repository

import (
	"context"
	"errors"
	"time"

	"communitycore/internal/model"

	"gorm.io/gorm"
)

type LinkRepository struct {
	db *gorm.DB
}

func NewLinkRepository(db *gorm.DB) *LinkRepository {
	return &LinkRepository{db: db}
}

// FindActiveByDiscordID 查询 (guild, server, discordID) 的有效绑定，不存在返回 nil, nil
func (r *LinkRepository) FindActiveByDiscordID(ctx context.Context, tx *gorm.DB, guildID string, serverID int64, discordID string) (*model.PlayerLink, error) {
	var link model.PlayerLink
	err := pick(r.db, tx).WithContext(ctx).
		Where("guild_id = ? AND server_id = ? AND discord_id = ? AND is_active = ?", guildID, serverID, discordID, true).
		Order("id DESC").
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

// FindActiveByIGN 按角色名（忽略大小写，精确匹配）查询有效绑定
func (r *LinkRepository) FindActiveByIGN(ctx context.Context, tx *gorm.DB, guildID string, serverID int64, ign string) (*model.PlayerLink, error) {
	var link model.PlayerLink
	err := pick(r.db, tx).WithContext(ctx).
		Where("guild_id = ? AND server_id = ? AND LOWER(ign) = LOWER(?) AND is_active = ?", guildID, serverID, ign, true).
		Order("id DESC").
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

// FindActiveOnServerByIGN 只按服务器查询（击杀日志里没有公会信息）
func (r *LinkRepository) FindActiveOnServerByIGN(ctx context.Context, tx *gorm.DB, serverID int64, ign string) (*model.PlayerLink, error) {
	var link model.PlayerLink
	err := pick(r.db, tx).WithContext(ctx).
		Where("server_id = ? AND LOWER(ign) = LOWER(?) AND is_active = ?", serverID, ign, true).
		Order("id DESC").
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &link, nil
}

// ListActiveByDiscordID 用户在公会内所有服务器的有效绑定，按服务器名称排序
func (r *LinkRepository) ListActiveByDiscordID(ctx context.Context, tx *gorm.DB, guildID, discordID string) ([]model.PlayerLink, error) {
	var links []model.PlayerLink
	err := pick(r.db, tx).WithContext(ctx).
		Model(&model.PlayerLink{}).
		Select("player_link.*").
		Joins("JOIN game_server ON game_server.id = player_link.server_id").
		Where("player_link.guild_id = ? AND player_link.discord_id = ? AND player_link.is_active = ?", guildID, discordID, true).
		Order("game_server.nickname ASC").
		Order("player_link.id ASC").
		Find(&links).Error
	return links, err
}

// ListActiveByServer 服务器上的全部有效绑定
func (r *LinkRepository) ListActiveByServer(ctx context.Context, serverID int64) ([]model.PlayerLink, error) {
	var links []model.PlayerLink
	err := r.db.WithContext(ctx).
		Where("server_id = ? AND is_active = ?", serverID, true).
		Order("ign ASC").
		Find(&links).Error
	return links, err
}

func (r *LinkRepository) Create(ctx context.Context, tx *gorm.DB, link *model.PlayerLink) error {
	return pick(r.db, tx).WithContext(ctx).Create(link).Error
}

// UpdateIGN 重新绑定时更新角色名和绑定时间
func (r *LinkRepository) UpdateIGN(ctx context.Context, tx *gorm.DB, id int64, ign string, now time.Time) error {
	return pick(r.db, tx).WithContext(ctx).
		Model(&model.PlayerLink{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]interface{}{
			"ign":       ign,
			"linked_at": now,
		}).Error
}

// Deactivate 软失效单条绑定，返回受影响行数
func (r *LinkRepository) Deactivate(ctx context.Context, tx *gorm.DB, id int64, now time.Time) (int64, error) {
	result := pick(r.db, tx).WithContext(ctx).
		Model(&model.PlayerLink{}).
		Where("id = ? AND is_active = ?", id, true).
		Updates(map[string]interface{}{
			"is_active":   false,
			"unlinked_at": now,
		})
	return result.RowsAffected, result.Error
}

// DeactivateAll 软失效用户在公会内的全部绑定
func (r *LinkRepository) DeactivateAll(ctx context.Context, guildID, discordID string, now time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&model.PlayerLink{}).
		Where("guild_id = ? AND discord_id = ? AND is_active = ?", guildID, discordID, true).
		Updates(map[string]interface{}{
			"is_active":   false,
			"unlinked_at": now,
		})
	return result.RowsAffected, result.Error
}
