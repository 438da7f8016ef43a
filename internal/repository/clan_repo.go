package repository

import (
	"context"

	"communitycore/internal/model"

	"gorm.io/gorm"
)

// ClanRepository 只提供战队名查询，战队成员的增删改由外部模块负责
type ClanRepository struct {
	db *gorm.DB
}

func NewClanRepository(db *gorm.DB) *ClanRepository {
	return &ClanRepository{db: db}
}

// ClanName 玩家所在战队名，不在任何战队时返回空串
func (r *ClanRepository) ClanName(ctx context.Context, playerID int64) (string, error) {
	var names []string
	err := r.db.WithContext(ctx).
		Model(&model.Clan{}).
		Joins("JOIN clan_member ON clan_member.clan_id = clan.id").
		Where("clan_member.player_id = ?", playerID).
		Limit(1).
		Pluck("clan.name", &names).Error
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", nil
	}
	return names[0], nil
}
