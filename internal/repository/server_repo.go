package repository

import (
	"context"
	"errors"

	"communitycore/internal/model"

	"gorm.io/gorm"
)

// ServerRepository 服务器目录（只读）
type ServerRepository struct {
	db *gorm.DB
}

func NewServerRepository(db *gorm.DB) *ServerRepository {
	return &ServerRepository{db: db}
}

// Lookup 按公会和服务器昵称（忽略大小写）查找，不存在返回 nil, nil
func (r *ServerRepository) Lookup(ctx context.Context, guildID, nickname string) (*model.GameServer, error) {
	var server model.GameServer
	err := r.db.WithContext(ctx).
		Where("guild_id = ? AND LOWER(nickname) = LOWER(?)", guildID, nickname).
		First(&server).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &server, nil
}

func (r *ServerRepository) Get(ctx context.Context, id int64) (*model.GameServer, error) {
	var server model.GameServer
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&server).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &server, nil
}

func (r *ServerRepository) ListByGuild(ctx context.Context, guildID string) ([]model.GameServer, error) {
	var servers []model.GameServer
	err := r.db.WithContext(ctx).
		Where("guild_id = ?", guildID).
		Order("nickname ASC").
		Find(&servers).Error
	return servers, err
}
